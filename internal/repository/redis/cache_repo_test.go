package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/repository/redis/converter"
	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/DRSN-tech/recommender/pkg/clients"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*CacheRepo, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := clients.NewRedisClient(&cfg.RedisCfg{
		Addr:        srv.Addr(),
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
		Timeout:     100 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })

	repo := NewCacheRepo(client, converter.NewRecommendationConverter(), &cfg.CacheCfg{
		Backend:         "redis",
		TTL:             time.Hour,
		Timeout:         50 * time.Millisecond,
		BreakerFailures: 3,
		BreakerTimeout:  time.Minute,
	}, logger.NewNopLogger())
	return repo, srv
}

func sampleEntry(now time.Time) *domain.CacheEntry {
	return domain.NewCacheEntry("q", 2, []domain.Recommendation{
		domain.NewRecommendation("a", 0.93),
		domain.NewRecommendation("b", 0.81),
	}, "gen-1", now)
}

func TestCacheRepoRoundTrip(t *testing.T) {
	repo, srv := newTestRepo(t)
	ctx := context.Background()

	res := repo.GetRecommendations(ctx, "q", 2)
	assert.Equal(t, usecase.CacheMiss, res.Status)

	now := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, repo.SetRecommendations(ctx, "q", 2, sampleEntry(now)))

	assert.True(t, srv.Exists("rec:q:2"))
	assert.Equal(t, time.Hour, srv.TTL("rec:q:2"))

	res = repo.GetRecommendations(ctx, "q", 2)
	require.Equal(t, usecase.CacheHit, res.Status)
	assert.Equal(t, sampleEntry(now).Items, res.Entry.Items)
	assert.Equal(t, 2, res.Entry.TotalResults)
	assert.Equal(t, "gen-1", res.Entry.GenerationID)
	assert.True(t, now.Equal(res.Entry.CachedAt))

	assert.Equal(t, usecase.CacheMiss, repo.GetRecommendations(ctx, "q", 3).Status)
}

func TestCacheRepoExpiry(t *testing.T) {
	repo, srv := newTestRepo(t)
	ctx := context.Background()

	now := time.Now()
	repo.now = func() time.Time { return now }
	require.NoError(t, repo.SetRecommendations(ctx, "q", 2, sampleEntry(now)))

	// запись ещё лежит в Redis, но уже старше TTL
	now = now.Add(time.Hour)
	assert.Equal(t, usecase.CacheMiss, repo.GetRecommendations(ctx, "q", 2).Status)

	srv.FastForward(2 * time.Hour)
	assert.False(t, srv.Exists("rec:q:2"))
}

func TestCacheRepoDropsBrokenEntries(t *testing.T) {
	repo, srv := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, srv.Set("rec:q:2", "{not json"))
	assert.Equal(t, usecase.CacheMiss, repo.GetRecommendations(ctx, "q", 2).Status)
	assert.False(t, srv.Exists("rec:q:2"))

	require.NoError(t, srv.Set("rec:q:2", `{"query_variant_id":"other","k":2}`))
	assert.Equal(t, usecase.CacheMiss, repo.GetRecommendations(ctx, "q", 2).Status)
	assert.False(t, srv.Exists("rec:q:2"))
}

func TestCacheRepoBackendFailureOpensBreaker(t *testing.T) {
	repo, srv := newTestRepo(t)
	ctx := context.Background()
	srv.Close()

	for i := 0; i < 3; i++ {
		res := repo.GetRecommendations(ctx, "q", 2)
		require.Equal(t, usecase.CacheBackendError, res.Status)
		assert.ErrorIs(t, res.Err, e.ErrCacheUnavailable)
	}

	res := repo.GetRecommendations(ctx, "q", 2)
	require.Equal(t, usecase.CacheBackendError, res.Status)
	assert.True(t, errors.Is(res.Err, gobreaker.ErrOpenState))

	err := repo.SetRecommendations(ctx, "q", 2, sampleEntry(time.Now()))
	assert.ErrorIs(t, err, e.ErrCacheUnavailable)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)

	assert.Error(t, repo.Ping(ctx))
}

func TestRecommendationsKey(t *testing.T) {
	assert.Equal(t, "rec:v-42:10", recommendationsKey("v-42", 10))
}
