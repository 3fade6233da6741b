package http

import (
	"time"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/usecase"
)

type RecommendationItem struct {
	VariantID       string  `json:"variant_id"`
	SimilarityScore float32 `json:"similarity_score"`
}

type RecommendResponse struct {
	QueryVariantID  string               `json:"query_variant_id"`
	Recommendations []RecommendationItem `json:"recommendations"`
	TotalResults    int                  `json:"total_results"`
	FromCache       bool                 `json:"from_cache"`
	ResponseTimeMs  float64              `json:"response_time_ms"`
}

type BatchRecommendRequest struct {
	ProductIDs []string `json:"product_ids" validate:"required,min=1,max=50,dive,required"`
	K          *int     `json:"k,omitempty" validate:"omitempty,min=1"`
}

type BatchItemResult struct {
	Recommendations []RecommendationItem `json:"recommendations"`
	TotalResults    int                  `json:"total_results"`
}

type BatchRecommendResponse struct {
	Results        map[string]BatchItemResult `json:"results"`
	ResponseTimeMs float64                    `json:"response_time_ms"`
	TotalQueries   int                        `json:"total_queries"`
}

type HealthResponse struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	IndexReady   bool      `json:"index_ready"`
	IndexSize    int       `json:"index_size"`
	Dimension    int       `json:"embedding_dimension"`
	GenerationID string    `json:"generation_id,omitempty"`
	Cache        string    `json:"cache"`
}

type StatsResponse struct {
	Ready           bool       `json:"ready"`
	GenerationID    string     `json:"generation_id,omitempty"`
	IndexType       string     `json:"index_type,omitempty"`
	TotalProducts   int        `json:"total_products"`
	CatalogSize     int        `json:"catalog_size"`
	Dimension       int        `json:"embedding_dimension"`
	BuiltAt         *time.Time `json:"built_at,omitempty"`
	Source          string     `json:"source,omitempty"`
	CacheBackend    string     `json:"cache_backend"`
	CacheTTLSeconds float64    `json:"cache_ttl_seconds"`
	DefaultK        int        `json:"default_k"`
	MaxK            int        `json:"max_k"`
	OverFetch       int        `json:"over_fetch"`
	MaxBatch        int        `json:"max_batch"`
}

type RebuildResponse struct {
	Queued bool   `json:"queued"`
	Status string `json:"status"`
}

func toRecommendationItems(recs []domain.Recommendation) []RecommendationItem {
	res := make([]RecommendationItem, len(recs))
	for i, r := range recs {
		res[i] = RecommendationItem{VariantID: r.ItemID, SimilarityScore: r.Score}
	}

	return res
}

func toRecommendResponse(res *usecase.RecommendRes) *RecommendResponse {
	return &RecommendResponse{
		QueryVariantID:  res.QueryItemID,
		Recommendations: toRecommendationItems(res.Items),
		TotalResults:    res.TotalResults,
		FromCache:       res.FromCache,
		ResponseTimeMs:  millis(res.ResponseTime),
	}
}

func toBatchRecommendResponse(res *usecase.BatchRecommendRes) *BatchRecommendResponse {
	results := make(map[string]BatchItemResult, len(res.Results))
	for id, r := range res.Results {
		results[id] = BatchItemResult{
			Recommendations: toRecommendationItems(r.Items),
			TotalResults:    r.TotalResults,
		}
	}

	return &BatchRecommendResponse{
		Results:        results,
		ResponseTimeMs: millis(res.ResponseTime),
		TotalQueries:   res.TotalQueries,
	}
}

func toHealthResponse(res *usecase.HealthRes) *HealthResponse {
	return &HealthResponse{
		Status:       res.Status,
		Timestamp:    res.Timestamp,
		IndexReady:   res.IndexReady,
		IndexSize:    res.IndexSize,
		Dimension:    res.Dim,
		GenerationID: res.GenerationID,
		Cache:        res.Cache,
	}
}

func toStatsResponse(res *usecase.StatsRes) *StatsResponse {
	out := &StatsResponse{
		Ready:           res.Ready,
		CacheBackend:    res.CacheBackend,
		CacheTTLSeconds: res.CacheTTL.Seconds(),
		DefaultK:        res.DefaultK,
		MaxK:            res.MaxK,
		OverFetch:       res.OverFetch,
		MaxBatch:        res.MaxBatch,
	}

	if g := res.Generation; g != nil {
		builtAt := g.BuiltAt
		out.GenerationID = g.ID
		out.IndexType = string(g.Strategy)
		out.TotalProducts = g.Vectors
		out.CatalogSize = g.CatalogSize
		out.Dimension = g.Dim
		out.BuiltAt = &builtAt
		out.Source = string(g.Source)
	}

	return out
}
