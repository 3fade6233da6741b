package usecase

import (
	"time"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/lifecycle"
)

// RECOMMEND USECASE

// RecommendReq — запрос похожих вариантов для одного товара.
type RecommendReq struct {
	ItemID string
	K      int
}

// RecommendRes — ранжированная выдача.
type RecommendRes struct {
	QueryItemID  string
	Items        []domain.Recommendation
	TotalResults int
	FromCache    bool
	GenerationID string
	ResponseTime time.Duration
}

// BatchRecommendReq — запрос рекомендаций для нескольких товаров с общим k.
type BatchRecommendReq struct {
	ItemIDs []string
	K       int
}

// BatchRecommendRes — выдачи по каждому найденному товару. Неизвестные товары в Results отсутствуют.
type BatchRecommendRes struct {
	Results      map[string]*RecommendRes
	TotalQueries int
	GenerationID string
	ResponseTime time.Duration
}

// StatsRes — сводка по обслуживаемому индексу и настройкам выдачи.
type StatsRes struct {
	Ready        bool
	Generation   *lifecycle.GenerationInfo // nil, пока индекс не поднят
	CacheBackend string
	CacheTTL     time.Duration
	DefaultK     int
	MaxK         int
	OverFetch    int
	MaxBatch     int
}

// Значения HealthRes.Status
const (
	StatusHealthy     = "healthy"
	StatusDegraded    = "degraded"
	StatusUnavailable = "unavailable"
)

// Значения HealthRes.Cache
const (
	CacheStateOK          = "ok"
	CacheStateUnavailable = "unavailable"
	CacheStateDisabled    = "disabled"
)

// HealthRes — состояние сервиса. Недоступный кэш делает сервис degraded, отсутствие индекса — unavailable.
type HealthRes struct {
	Status       string
	IndexReady   bool
	IndexSize    int
	Dim          int
	GenerationID string
	Cache        string
	Timestamp    time.Time
}
