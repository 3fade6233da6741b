package vectorindex

import (
	"context"
	"fmt"

	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/vecmath"
)

// ctxCheckEvery — как часто долгие циклы проверяют отмену контекста.
const ctxCheckEvery = 1024

// store — плоское хранилище векторов, общее для всех стратегий.
type store struct {
	dim  int
	n    int
	data []float32
}

func (s *store) vector(pos int) []float32 {
	return s.data[pos*s.dim : (pos+1)*s.dim]
}

func (s *store) reset(capacity int) {
	s.n = 0
	s.data = make([]float32, 0, capacity*s.dim)
}

func (s *store) append(v []float32) int {
	s.data = append(s.data, v...)
	s.n++
	return s.n - 1
}

func (s *store) reconstruct(pos int) ([]float32, error) {
	if pos < 0 || pos >= s.n {
		return nil, fmt.Errorf("position %d of %d: %w", pos, s.n, e.ErrInvalidPosition)
	}
	out := make([]float32, s.dim)
	copy(out, s.vector(pos))
	return out, nil
}

// scanAll — точный перебор всех векторов.
func (s *store) scanAll(query []float32, k int) []SearchResult {
	t := newTopK(min(k, s.n))
	for pos := 0; pos < s.n; pos++ {
		t.push(pos, vecmath.Dot(query, s.vector(pos)))
	}
	return t.results()
}

// Flat — точный поиск полным перебором
type Flat struct {
	store
}

func NewFlat(dim int) *Flat {
	return &Flat{store: store{dim: dim}}
}

func (f *Flat) Strategy() Strategy { return StrategyFlat }
func (f *Flat) Dim() int           { return f.dim }
func (f *Flat) Len() int           { return f.n }

func (f *Flat) Build(ctx context.Context, vectors [][]float32) error {
	if err := checkVectors(f.dim, vectors); err != nil {
		return err
	}

	f.reset(len(vectors))
	for i, v := range vectors {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		f.append(v)
	}
	return nil
}

func (f *Flat) Reconstruct(pos int) ([]float32, error) {
	return f.reconstruct(pos)
}

func (f *Flat) Search(query []float32, k int) ([]SearchResult, error) {
	if err := checkQuery(f.dim, query, k); err != nil {
		return nil, err
	}
	if f.n == 0 {
		return []SearchResult{}, nil
	}
	return f.scanAll(query, k), nil
}

func (f *Flat) BatchSearch(ctx context.Context, queries [][]float32, k int) ([][]SearchResult, error) {
	return batchSearch(ctx, f, queries, k)
}
