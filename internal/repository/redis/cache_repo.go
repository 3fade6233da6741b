package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/repository/redis/converter"
	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/DRSN-tech/recommender/pkg/clients"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/jimlawless/whereami"
	r "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
)

const dropTimeout = time.Second

// CacheRepo хранит выдачи рекомендаций в Redis. Обращения идут через
// circuit breaker: при разомкнутой цепи Redis не опрашивается.
type CacheRepo struct {
	client  *clients.RedisClient
	conv    converter.RecommendationConverter
	breaker *gobreaker.CircuitBreaker[[]byte]
	cfg     *cfg.CacheCfg
	logger  logger.Logger
	now     func() time.Time
}

func NewCacheRepo(client *clients.RedisClient, conv converter.RecommendationConverter,
	cfg *cfg.CacheCfg, logger logger.Logger) *CacheRepo {
	repo := &CacheRepo{
		client: client,
		conv:   conv,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}

	repo.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= max(cfg.BreakerFailures, 1)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf("circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return repo
}

// GetRecommendations читает выдачу по ключу (товар, k). Повреждённые, чужие
// и просроченные записи считаются промахом.
func (c *CacheRepo) GetRecommendations(ctx context.Context, itemID string, k int) usecase.CacheLookup {
	key := recommendationsKey(itemID, k)

	data, err := c.breaker.Execute(func() ([]byte, error) {
		data, err := c.client.Client.Get(ctx, key).Bytes()
		if errors.Is(err, r.Nil) {
			return nil, nil
		}
		return data, err
	})
	if err != nil {
		return usecase.CacheLookup{
			Status: usecase.CacheBackendError,
			Err:    e.Wrap(whereami.WhereAmI(), fmt.Errorf("%w: %w", e.ErrCacheUnavailable, err)),
		}
	}
	if data == nil {
		return usecase.CacheLookup{Status: usecase.CacheMiss}
	}

	model, err := c.unmarshalRecommendations(data)
	if err != nil {
		c.logger.Warnf("Redis unmarshal failed: %v", e.Wrap(whereami.WhereAmI(), err))
		c.drop(key)
		return usecase.CacheLookup{Status: usecase.CacheMiss}
	}

	if model.ItemID != itemID || model.K != k {
		c.logger.Warnf("Cache key mismatch: key: %s, model: %s/%d", key, model.ItemID, model.K)
		c.drop(key)
		return usecase.CacheLookup{Status: usecase.CacheMiss}
	}

	entry := c.conv.ToEntity(model)
	if entry.Expired(c.now(), c.cfg.TTL) {
		return usecase.CacheLookup{Status: usecase.CacheMiss}
	}

	return usecase.CacheLookup{Status: usecase.CacheHit, Entry: entry}
}

// SetRecommendations сохраняет выдачу с TTL из конфигурации.
func (c *CacheRepo) SetRecommendations(ctx context.Context, itemID string, k int, entry *domain.CacheEntry) error {
	data, err := json.Marshal(c.conv.ToRedisModel(entry))
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	key := recommendationsKey(itemID, k)
	_, err = c.breaker.Execute(func() ([]byte, error) {
		return nil, c.client.Client.Set(ctx, key, data, c.cfg.TTL).Err()
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), fmt.Errorf("%w: %w", e.ErrCacheUnavailable, err))
	}

	return nil
}

func (c *CacheRepo) Ping(ctx context.Context) error {
	return c.client.Ping(ctx)
}

// drop удаляет негодную запись, не дожидаясь TTL.
func (c *CacheRepo) drop(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), dropTimeout)
	defer cancel()

	if err := c.client.Client.Del(ctx, key).Err(); err != nil {
		c.logger.Warnf("Redis DEL failed: %v", e.Wrap(whereami.WhereAmI(), err))
	}
}

func (c *CacheRepo) unmarshalRecommendations(data []byte) (*converter.RecommendationsRedisModel, error) {
	var model converter.RecommendationsRedisModel
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, err
	}

	return &model, nil
}

// recommendationsKey возвращает Redis-ключ выдачи
func recommendationsKey(itemID string, k int) string {
	return fmt.Sprintf("rec:%s:%d", itemID, k)
}
