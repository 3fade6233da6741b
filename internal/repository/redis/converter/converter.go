package converter

import "github.com/DRSN-tech/recommender/internal/domain"

// RecommendationConverter преобразует записи кэша между domain и моделью Redis.
type RecommendationConverter struct{}

func NewRecommendationConverter() RecommendationConverter {
	return RecommendationConverter{}
}

func (RecommendationConverter) ToRedisModel(entity *domain.CacheEntry) *RecommendationsRedisModel {
	items := make([]RecommendationRedisModel, len(entity.Items))
	for i, it := range entity.Items {
		items[i] = RecommendationRedisModel{ItemID: it.ItemID, Score: it.Score}
	}

	return &RecommendationsRedisModel{
		ItemID:       entity.ItemID,
		K:            entity.K,
		Items:        items,
		TotalResults: entity.TotalResults,
		GenerationID: entity.GenerationID,
		CachedAt:     entity.CachedAt,
	}
}

func (RecommendationConverter) ToEntity(model *RecommendationsRedisModel) *domain.CacheEntry {
	items := make([]domain.Recommendation, len(model.Items))
	for i, it := range model.Items {
		items[i] = domain.NewRecommendation(it.ItemID, it.Score)
	}

	entry := domain.NewCacheEntry(model.ItemID, model.K, items, model.GenerationID, model.CachedAt)
	entry.TotalResults = model.TotalResults
	return entry
}
