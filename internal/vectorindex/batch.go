package vectorindex

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// batchSearch распараллеливает одиночные запросы по числу процессоров.
// Порядок ответов совпадает с порядком запросов.
func batchSearch(ctx context.Context, idx Index, queries [][]float32, k int) ([][]SearchResult, error) {
	out := make([][]SearchResult, len(queries))
	if len(queries) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, q := range queries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := idx.Search(q, k)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
