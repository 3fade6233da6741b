package vectorindex

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/DRSN-tech/recommender/pkg/e"
)

// BenchmarkResult — замер пакетного поиска по индексу
type BenchmarkResult struct {
	Strategy     Strategy
	Vectors      int
	Queries      int
	K            int
	BuildTime    time.Duration
	SearchTime   time.Duration
	AvgLatencyMS float64
	QPS          float64
	RecallAtK    float64 // доля точных соседей, найденных индексом
}

// RecallAtK считает средний recall@k приближённой выдачи относительно точной.
func RecallAtK(exact, approx [][]SearchResult, k int) float64 {
	if len(exact) == 0 || k <= 0 {
		return 0
	}

	var total float64
	for i := range exact {
		truth := make(map[int]struct{}, k)
		for j, r := range exact[i] {
			if j >= k {
				break
			}
			truth[r.Position] = struct{}{}
		}
		if len(truth) == 0 {
			total++
			continue
		}

		hits := 0
		if i < len(approx) {
			for j, r := range approx[i] {
				if j >= k {
					break
				}
				if _, ok := truth[r.Position]; ok {
					hits++
				}
			}
		}
		total += float64(hits) / float64(len(truth))
	}
	return total / float64(len(exact))
}

// SampleQueries выбирает n векторов корпуса в качестве запросов.
func SampleQueries(vectors [][]float32, n int, seed int64) [][]float32 {
	n = min(n, len(vectors))
	rng := rand.New(rand.NewSource(seed))
	out := make([][]float32, n)
	for i, idx := range rng.Perm(len(vectors))[:n] {
		out[i] = vectors[idx]
	}
	return out
}

// Compare строит индекс для каждой конфигурации и сравнивает его с точным перебором.
func Compare(ctx context.Context, configs []Config, vectors, queries [][]float32, k int) ([]BenchmarkResult, error) {
	if len(vectors) == 0 {
		return nil, e.ErrEmptyVectors
	}
	if k <= 0 {
		return nil, fmt.Errorf("k=%d: %w", k, e.ErrInvalidArgument)
	}

	exact := NewFlat(len(vectors[0]))
	if err := exact.Build(ctx, vectors); err != nil {
		return nil, err
	}
	truth, err := exact.BatchSearch(ctx, queries, k)
	if err != nil {
		return nil, err
	}

	results := make([]BenchmarkResult, 0, len(configs))
	for _, cfg := range configs {
		idx, err := New(cfg)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		if err := idx.Build(ctx, vectors); err != nil {
			return nil, fmt.Errorf("build %s: %w", cfg.Strategy, err)
		}
		buildTime := time.Since(start)

		res, err := Benchmark(ctx, idx, queries, k)
		if err != nil {
			return nil, err
		}
		res.BuildTime = buildTime

		approx, err := idx.BatchSearch(ctx, queries, k)
		if err != nil {
			return nil, err
		}
		res.RecallAtK = RecallAtK(truth, approx, k)
		results = append(results, res)
	}
	return results, nil
}

// Benchmark измеряет время пакетного поиска.
func Benchmark(ctx context.Context, idx Index, queries [][]float32, k int) (BenchmarkResult, error) {
	start := time.Now()
	if _, err := idx.BatchSearch(ctx, queries, k); err != nil {
		return BenchmarkResult{}, err
	}
	elapsed := time.Since(start)

	res := BenchmarkResult{
		Strategy:   idx.Strategy(),
		Vectors:    idx.Len(),
		Queries:    len(queries),
		K:          k,
		SearchTime: elapsed,
	}
	if len(queries) > 0 {
		res.AvgLatencyMS = float64(elapsed.Microseconds()) / 1000 / float64(len(queries))
	}
	if elapsed > 0 {
		res.QPS = float64(len(queries)) / elapsed.Seconds()
	}
	return res, nil
}
