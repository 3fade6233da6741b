package vectorindex

import (
	"container/heap"
	"slices"
)

// better задаёт порядок выдачи: сходство по убыванию, при равенстве меньшая позиция.
func better(a, b SearchResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Position < b.Position
}

func compareResults(a, b SearchResult) int {
	switch {
	case better(a, b):
		return -1
	case better(b, a):
		return 1
	default:
		return 0
	}
}

// worstHeap держит худший результат в корне.
type worstHeap []SearchResult

func (h worstHeap) Len() int           { return len(h) }
func (h worstHeap) Less(i, j int) bool { return better(h[j], h[i]) }
func (h worstHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *worstHeap) Push(x any)        { *h = append(*h, x.(SearchResult)) }
func (h *worstHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topK накапливает k лучших результатов.
type topK struct {
	k int
	h worstHeap
}

func newTopK(k int) *topK {
	return &topK{k: k, h: make(worstHeap, 0, k)}
}

func (t *topK) push(pos int, score float32) {
	r := SearchResult{Position: pos, Score: score}
	if len(t.h) < t.k {
		heap.Push(&t.h, r)
		return
	}
	if better(r, t.h[0]) {
		t.h[0] = r
		heap.Fix(&t.h, 0)
	}
}

func (t *topK) results() []SearchResult {
	out := make([]SearchResult, len(t.h))
	copy(out, t.h)
	slices.SortFunc(out, compareResults)
	return out
}
