package usecase

import (
	"context"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/lifecycle"
)

// CacheStatus — исход чтения из кэша рекомендаций
type CacheStatus int

const (
	CacheMiss CacheStatus = iota
	CacheHit
	CacheBackendError
)

func (s CacheStatus) String() string {
	switch s {
	case CacheHit:
		return "hit"
	case CacheBackendError:
		return "backend_error"
	default:
		return "miss"
	}
}

// CacheLookup — результат чтения из кэша. Entry заполнен только при CacheHit, Err — только при CacheBackendError.
type CacheLookup struct {
	Status CacheStatus
	Entry  *domain.CacheEntry
	Err    error
}

// CacheRepository хранит готовые выдачи по ключу (товар, k).
type CacheRepository interface {
	GetRecommendations(ctx context.Context, itemID string, k int) CacheLookup
	SetRecommendations(ctx context.Context, itemID string, k int, entry *domain.CacheEntry) error
	Ping(ctx context.Context) error
}

// GenerationProvider выдаёт текущее поколение индекса с удержанием ссылки.
type GenerationProvider interface {
	Acquire() (*lifecycle.Generation, error)
}
