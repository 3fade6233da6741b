package vectorindex

import (
	"container/heap"
	"context"
	"math"
	"math/rand"
	"slices"

	"github.com/DRSN-tech/recommender/pkg/vecmath"
)

const (
	defaultM              = 32
	defaultEfConstruction = 40
	defaultEfSearch       = 16
)

// HNSW — иерархический граф близости. Узлы верхних слоёв выбираются
// случайно с экспоненциально убывающей вероятностью.
type HNSW struct {
	store
	m              int
	mMax0          int
	efConstruction int
	efSearch       int
	levelMult      float64
	seed           int64

	levels   []int
	links    [][][]int32 // links[node][level]
	entry    int32
	maxLevel int
}

func NewHNSW(dim, m, efConstruction, efSearch int, seed int64) *HNSW {
	if m <= 1 {
		m = defaultM
	}
	if efConstruction <= 0 {
		efConstruction = defaultEfConstruction
	}
	if efSearch <= 0 {
		efSearch = defaultEfSearch
	}

	return &HNSW{
		store:          store{dim: dim},
		m:              m,
		mMax0:          2 * m,
		efConstruction: max(efConstruction, m),
		efSearch:       efSearch,
		levelMult:      1 / math.Log(float64(m)),
		seed:           seed,
		entry:          -1,
	}
}

func (h *HNSW) Strategy() Strategy { return StrategyHNSW }
func (h *HNSW) Dim() int           { return h.dim }
func (h *HNSW) Len() int           { return h.n }
func (h *HNSW) EfSearch() int      { return h.efSearch }

// SetEfSearch меняет ширину поиска. Не вызывать во время поиска.
func (h *HNSW) SetEfSearch(ef int) {
	if ef > 0 {
		h.efSearch = ef
	}
}

func (h *HNSW) Build(ctx context.Context, vectors [][]float32) error {
	if err := checkVectors(h.dim, vectors); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(h.seed))
	h.reset(len(vectors))
	h.levels = make([]int, 0, len(vectors))
	h.links = make([][][]int32, 0, len(vectors))
	h.entry = -1
	h.maxLevel = 0

	for i, v := range vectors {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		h.insert(v, h.randomLevel(rng))
	}
	return nil
}

func (h *HNSW) Reconstruct(pos int) ([]float32, error) {
	return h.reconstruct(pos)
}

func (h *HNSW) Search(query []float32, k int) ([]SearchResult, error) {
	if err := checkQuery(h.dim, query, k); err != nil {
		return nil, err
	}
	if h.n == 0 {
		return []SearchResult{}, nil
	}
	if k >= h.n {
		return h.scanAll(query, k), nil
	}

	ep := h.entry
	for level := h.maxLevel; level > 0; level-- {
		ep = h.greedy(query, ep, level)
	}

	found := h.searchLayer(query, ep, max(h.efSearch, k), 0)
	if len(found) > k {
		found = found[:k]
	}
	return found, nil
}

func (h *HNSW) BatchSearch(ctx context.Context, queries [][]float32, k int) ([][]SearchResult, error) {
	return batchSearch(ctx, h, queries, k)
}

func (h *HNSW) randomLevel(rng *rand.Rand) int {
	// 1-Float64 лежит в (0, 1], логарифм конечен
	return int(-math.Log(1-rng.Float64()) * h.levelMult)
}

func (h *HNSW) maxConn(level int) int {
	if level == 0 {
		return h.mMax0
	}
	return h.m
}

func (h *HNSW) insert(v []float32, level int) {
	node := int32(h.append(v))
	h.levels = append(h.levels, level)
	h.links = append(h.links, make([][]int32, level+1))

	if h.entry < 0 {
		h.entry = node
		h.maxLevel = level
		return
	}

	ep := h.entry
	for l := h.maxLevel; l > level; l-- {
		ep = h.greedy(v, ep, l)
	}

	for l := min(level, h.maxLevel); l >= 0; l-- {
		candidates := h.searchLayer(v, ep, h.efConstruction, l)
		neighbors := h.selectNeighbors(candidates, h.m)

		h.links[node][l] = make([]int32, 0, len(neighbors))
		for _, nb := range neighbors {
			h.links[node][l] = append(h.links[node][l], int32(nb.Position))
			h.connect(int32(nb.Position), node, l)
		}
		ep = int32(candidates[0].Position)
	}

	if level > h.maxLevel {
		h.maxLevel = level
		h.entry = node
	}
}

// connect добавляет обратную связь и прореживает список соседей при переполнении.
func (h *HNSW) connect(from, to int32, level int) {
	links := append(h.links[from][level], to)
	if len(links) <= h.maxConn(level) {
		h.links[from][level] = links
		return
	}

	base := h.vector(int(from))
	candidates := make([]SearchResult, len(links))
	for i, id := range links {
		candidates[i] = SearchResult{Position: int(id), Score: vecmath.Dot(base, h.vector(int(id)))}
	}
	slices.SortFunc(candidates, compareResults)

	kept := h.selectNeighbors(candidates, h.maxConn(level))
	pruned := links[:0]
	for _, c := range kept {
		pruned = append(pruned, int32(c.Position))
	}
	h.links[from][level] = pruned
}

// selectNeighbors — эвристика выбора разнообразных соседей: кандидат отбрасывается,
// если он ближе к уже выбранному соседу, чем к базовой точке. Свободные места
// добиваются отброшенными кандидатами. candidates отсортированы по убыванию сходства.
func (h *HNSW) selectNeighbors(candidates []SearchResult, m int) []SearchResult {
	if len(candidates) <= m {
		return candidates
	}

	selected := make([]SearchResult, 0, m)
	var discarded []SearchResult
	for _, c := range candidates {
		if len(selected) >= m {
			break
		}
		cv := h.vector(c.Position)
		keep := true
		for _, s := range selected {
			if vecmath.Dot(cv, h.vector(s.Position)) > c.Score {
				keep = false
				break
			}
		}
		if keep {
			selected = append(selected, c)
		} else {
			discarded = append(discarded, c)
		}
	}

	for _, c := range discarded {
		if len(selected) >= m {
			break
		}
		selected = append(selected, c)
	}
	return selected
}

// greedy спускается к локально ближайшему узлу на одном слое.
func (h *HNSW) greedy(query []float32, ep int32, level int) int32 {
	cur := ep
	curScore := vecmath.Dot(query, h.vector(int(cur)))
	for changed := true; changed; {
		changed = false
		for _, nb := range h.links[cur][level] {
			if s := vecmath.Dot(query, h.vector(int(nb))); s > curScore {
				cur, curScore = nb, s
				changed = true
			}
		}
	}
	return cur
}

// searchLayer возвращает до ef ближайших узлов слоя по убыванию сходства.
func (h *HNSW) searchLayer(query []float32, ep int32, ef int, level int) []SearchResult {
	visited := newBitset(h.n)
	visited.set(int(ep))

	start := SearchResult{Position: int(ep), Score: vecmath.Dot(query, h.vector(int(ep)))}
	candidates := &bestHeap{start}
	results := &worstHeap{start}

	for candidates.Len() > 0 {
		c := heap.Pop(candidates).(SearchResult)
		if results.Len() >= ef && better((*results)[0], c) {
			break
		}

		for _, nb := range h.links[c.Position][level] {
			if visited.has(int(nb)) {
				continue
			}
			visited.set(int(nb))

			r := SearchResult{Position: int(nb), Score: vecmath.Dot(query, h.vector(int(nb)))}
			if results.Len() < ef || better(r, (*results)[0]) {
				heap.Push(candidates, r)
				heap.Push(results, r)
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := []SearchResult(*results)
	slices.SortFunc(out, compareResults)
	return out
}

// bestHeap держит лучший результат в корне.
type bestHeap []SearchResult

func (b bestHeap) Len() int           { return len(b) }
func (b bestHeap) Less(i, j int) bool { return better(b[i], b[j]) }
func (b bestHeap) Swap(i, j int)      { b[i], b[j] = b[j], b[i] }
func (b *bestHeap) Push(x any)        { *b = append(*b, x.(SearchResult)) }
func (b *bestHeap) Pop() any {
	old := *b
	n := len(old)
	x := old[n-1]
	*b = old[:n-1]
	return x
}

type bitset []uint64

func newBitset(n int) bitset { return make(bitset, (n+63)/64) }

func (b bitset) set(i int)      { b[i/64] |= 1 << (uint(i) % 64) }
func (b bitset) has(i int) bool { return b[i/64]&(1<<(uint(i)%64)) != 0 }
