package converter

import "time"

// RecommendationsRedisModel — выдача, сохранённая в Redis по ключу rec:{item}:{k}.
type RecommendationsRedisModel struct {
	ItemID       string                     `json:"query_variant_id"`
	K            int                        `json:"k"`
	Items        []RecommendationRedisModel `json:"recommendations"`
	TotalResults int                        `json:"total_results"`
	GenerationID string                     `json:"generation_id"`
	CachedAt     time.Time                  `json:"cached_at"`
}

type RecommendationRedisModel struct {
	ItemID string  `json:"variant_id"`
	Score  float32 `json:"similarity_score"`
}
