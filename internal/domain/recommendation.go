package domain

import "time"

// Recommendation — один похожий вариант в выдаче
type Recommendation struct {
	ItemID string
	Score  float32
}

func NewRecommendation(itemID string, score float32) Recommendation {
	return Recommendation{ItemID: itemID, Score: score}
}

// CacheEntry — сохранённый результат рекомендаций для пары (товар, k)
type CacheEntry struct {
	ItemID       string
	K            int
	Items        []Recommendation
	TotalResults int
	GenerationID string
	CachedAt     time.Time
}

func NewCacheEntry(itemID string, k int, items []Recommendation, generationID string, cachedAt time.Time) *CacheEntry {
	return &CacheEntry{
		ItemID:       itemID,
		K:            k,
		Items:        items,
		TotalResults: len(items),
		GenerationID: generationID,
		CachedAt:     cachedAt,
	}
}

// Expired сообщает, что запись старше ttl на момент now.
func (c *CacheEntry) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(c.CachedAt) >= ttl
}
