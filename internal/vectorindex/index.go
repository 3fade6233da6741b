// Package vectorindex реализует поиск ближайших соседей по скалярному произведению
// нормализованных векторов: точный перебор (flat), инвертированные списки (ivf)
// и иерархический граф малого мира (hnsw).
//
// Индекс адресует векторы позициями 0..N-1 в порядке добавления.
// После Build индекс только читается и безопасен для конкурентного поиска.
package vectorindex

import (
	"context"
	"fmt"
	"strings"

	"github.com/DRSN-tech/recommender/pkg/e"
)

// Strategy — алгоритм поиска
type Strategy string

const (
	StrategyFlat Strategy = "flat"
	StrategyIVF  Strategy = "ivf"
	StrategyHNSW Strategy = "hnsw"
)

// ParseStrategy разбирает название стратегии без учёта регистра.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case StrategyFlat, StrategyIVF, StrategyHNSW:
		return st, nil
	default:
		return "", fmt.Errorf("%q: %w", s, e.ErrUnknownStrategy)
	}
}

// SearchResult — найденный вектор и его сходство с запросом
type SearchResult struct {
	Position int
	Score    float32
}

// Index — общий контракт всех стратегий.
type Index interface {
	Strategy() Strategy
	Dim() int
	Len() int
	// Build заменяет содержимое индекса векторами в переданном порядке.
	Build(ctx context.Context, vectors [][]float32) error
	// Reconstruct возвращает копию сохранённого вектора.
	Reconstruct(pos int) ([]float32, error)
	// Search возвращает не более k результатов по убыванию сходства.
	Search(query []float32, k int) ([]SearchResult, error)
	// BatchSearch выполняет Search для каждого запроса.
	BatchSearch(ctx context.Context, queries [][]float32, k int) ([][]SearchResult, error)
}

// Config — параметры построения индекса
type Config struct {
	Strategy        Strategy
	Dim             int
	NList           int // ivf: число кластеров
	NProbe          int // ivf: число просматриваемых кластеров
	M               int // hnsw: число связей на узел
	EfConstruction  int // hnsw: ширина поиска при вставке
	EfSearch        int // hnsw: ширина поиска при запросе
	TrainIterations int // ivf: итерации k-means
	Seed            int64
}

// DefaultConfig возвращает параметры по умолчанию для стратегии.
func DefaultConfig(strategy Strategy, dim int) Config {
	return Config{
		Strategy:        strategy,
		Dim:             dim,
		NList:           100,
		NProbe:          10,
		M:               32,
		EfConstruction:  40,
		EfSearch:        16,
		TrainIterations: 25,
		Seed:            42,
	}
}

// New создаёт пустой индекс по конфигурации.
func New(cfg Config) (Index, error) {
	if cfg.Dim <= 0 {
		return nil, fmt.Errorf("dim %d: %w", cfg.Dim, e.ErrInvalidArgument)
	}

	switch cfg.Strategy {
	case StrategyFlat:
		return NewFlat(cfg.Dim), nil
	case StrategyIVF:
		return NewIVF(cfg.Dim, cfg.NList, cfg.NProbe, cfg.TrainIterations, cfg.Seed), nil
	case StrategyHNSW:
		return NewHNSW(cfg.Dim, cfg.M, cfg.EfConstruction, cfg.EfSearch, cfg.Seed), nil
	default:
		return nil, fmt.Errorf("%q: %w", cfg.Strategy, e.ErrUnknownStrategy)
	}
}

func checkQuery(dim int, query []float32, k int) error {
	if k <= 0 {
		return fmt.Errorf("k=%d: %w", k, e.ErrInvalidArgument)
	}
	if len(query) != dim {
		return fmt.Errorf("query has %d dims, index has %d: %w", len(query), dim, e.ErrDimMismatch)
	}
	return nil
}

func checkVectors(dim int, vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("vector %d has %d dims, index has %d: %w", i, len(v), dim, e.ErrDimMismatch)
		}
	}
	return nil
}
