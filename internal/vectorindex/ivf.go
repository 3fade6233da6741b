package vectorindex

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/vecmath"
)

const (
	defaultNList           = 100
	defaultNProbe          = 10
	defaultTrainIterations = 25
	// maxPointsPerCentroid ограничивает обучающую выборку k-means.
	maxPointsPerCentroid = 256
)

// IVF разбивает векторы на кластеры сферическим k-means и при поиске
// просматривает только nprobe ближайших к запросу кластеров.
type IVF struct {
	store
	nlist      int
	nprobe     int
	iterations int
	seed       int64

	centroids [][]float32
	lists     [][]int32
	trained   bool
}

func NewIVF(dim, nlist, nprobe, iterations int, seed int64) *IVF {
	if nlist <= 0 {
		nlist = defaultNList
	}
	if nprobe <= 0 {
		nprobe = defaultNProbe
	}
	if iterations <= 0 {
		iterations = defaultTrainIterations
	}

	return &IVF{
		store:      store{dim: dim},
		nlist:      nlist,
		nprobe:     nprobe,
		iterations: iterations,
		seed:       seed,
	}
}

func (v *IVF) Strategy() Strategy { return StrategyIVF }
func (v *IVF) Dim() int           { return v.dim }
func (v *IVF) Len() int           { return v.n }

// Trained сообщает, обучены ли центроиды.
func (v *IVF) Trained() bool { return v.trained }

// NList возвращает фактическое число кластеров после обучения.
func (v *IVF) NList() int { return len(v.centroids) }

func (v *IVF) NProbe() int { return v.nprobe }

// SetNProbe меняет число просматриваемых кластеров. Не вызывать во время поиска.
func (v *IVF) SetNProbe(nprobe int) {
	if nprobe > 0 {
		v.nprobe = nprobe
	}
}

// Train обучает центроиды и очищает списки. Число кластеров не превышает число векторов.
func (v *IVF) Train(ctx context.Context, vectors [][]float32) error {
	if err := checkVectors(v.dim, vectors); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(v.seed))
	nlist := min(v.nlist, len(vectors))

	sample := vectors
	if limit := nlist * maxPointsPerCentroid; len(vectors) > limit {
		sample = make([][]float32, limit)
		for i, idx := range rng.Perm(len(vectors))[:limit] {
			sample[i] = vectors[idx]
		}
	}

	centroids := make([][]float32, nlist)
	for c, idx := range rng.Perm(len(sample))[:nlist] {
		centroids[c], _ = vecmath.Normalized(sample[idx])
	}

	assign := make([]int, len(sample))
	for i := range assign {
		assign[i] = -1
	}

	for it := 0; it < v.iterations && nlist > 0; it++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		changed := 0
		for i, x := range sample {
			if c := nearestCentroid(centroids, x); c != assign[i] {
				assign[i] = c
				changed++
			}
		}
		if changed == 0 {
			break
		}

		sums := make([][]float32, nlist)
		for c := range sums {
			sums[c] = make([]float32, v.dim)
		}
		counts := make([]int, nlist)
		for i, x := range sample {
			vecmath.Add(sums[assign[i]], x)
			counts[assign[i]]++
		}

		for c := range sums {
			if counts[c] == 0 {
				// пустой кластер получает случайную точку выборки
				copy(sums[c], sample[rng.Intn(len(sample))])
			}
			if vecmath.Normalize(sums[c]) {
				centroids[c] = sums[c]
			}
		}
	}

	v.centroids = centroids
	v.lists = make([][]int32, nlist)
	v.reset(0)
	v.trained = true
	return nil
}

// Add добавляет векторы в конец индекса. Требует предварительного Train.
func (v *IVF) Add(ctx context.Context, vectors [][]float32) error {
	if !v.trained {
		return e.ErrNotTrained
	}
	if err := checkVectors(v.dim, vectors); err != nil {
		return err
	}
	if len(vectors) > 0 && len(v.centroids) == 0 {
		return fmt.Errorf("index was trained on an empty set: %w", e.ErrNotTrained)
	}

	for i, x := range vectors {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		pos := v.append(x)
		c := nearestCentroid(v.centroids, x)
		v.lists[c] = append(v.lists[c], int32(pos))
	}
	return nil
}

func (v *IVF) Build(ctx context.Context, vectors [][]float32) error {
	if err := v.Train(ctx, vectors); err != nil {
		return err
	}
	v.data = make([]float32, 0, len(vectors)*v.dim)
	return v.Add(ctx, vectors)
}

func (v *IVF) Reconstruct(pos int) ([]float32, error) {
	return v.reconstruct(pos)
}

func (v *IVF) Search(query []float32, k int) ([]SearchResult, error) {
	if err := checkQuery(v.dim, query, k); err != nil {
		return nil, err
	}
	if v.n == 0 {
		return []SearchResult{}, nil
	}
	if k >= v.n {
		return v.scanAll(query, k), nil
	}

	probe := newTopK(min(v.nprobe, len(v.centroids)))
	for c, centroid := range v.centroids {
		probe.push(c, vecmath.Dot(query, centroid))
	}

	t := newTopK(k)
	for _, p := range probe.results() {
		for _, pos := range v.lists[p.Position] {
			t.push(int(pos), vecmath.Dot(query, v.vector(int(pos))))
		}
	}
	return t.results(), nil
}

func (v *IVF) BatchSearch(ctx context.Context, queries [][]float32, k int) ([][]SearchResult, error) {
	return batchSearch(ctx, v, queries, k)
}

func nearestCentroid(centroids [][]float32, x []float32) int {
	best, bestScore := 0, vecmath.Dot(centroids[0], x)
	for c := 1; c < len(centroids); c++ {
		if s := vecmath.Dot(centroids[c], x); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best
}
