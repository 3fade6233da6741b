package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/lifecycle"
	"github.com/DRSN-tech/recommender/internal/metrics"
	"github.com/DRSN-tech/recommender/internal/vectorindex"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
)

const healthPingTimeout = time.Second

// RecommendUseCase строит выдачу похожих товаров поверх текущего поколения индекса.
type RecommendUseCase struct {
	generations GenerationProvider
	cacheRepo   CacheRepository // nil — кэш отключён
	recCfg      *cfg.RecommendCfg
	cacheCfg    *cfg.CacheCfg
	logger      logger.Logger
	now         func() time.Time
}

func NewRecommendUC(
	generations GenerationProvider,
	cacheRepo CacheRepository,
	recCfg *cfg.RecommendCfg,
	cacheCfg *cfg.CacheCfg,
	logger logger.Logger,
) *RecommendUseCase {
	return &RecommendUseCase{
		generations: generations,
		cacheRepo:   cacheRepo,
		recCfg:      recCfg,
		cacheCfg:    cacheCfg,
		logger:      logger,
		now:         time.Now,
	}
}

// Recommend возвращает до K похожих вариантов: не больше одного на родительский товар,
// варианты того же пола впереди.
func (u *RecommendUseCase) Recommend(ctx context.Context, req *RecommendReq) (res *RecommendRes, err error) {
	const op = "RecommendUseCase.Recommend"

	start := time.Now()
	defer func() {
		metrics.RequestsTotal.WithLabelValues("recommend", outcome(err)).Inc()
	}()

	if err = u.validateK(req.K); err != nil {
		return nil, e.Wrap(op, err)
	}
	if req.ItemID == "" {
		return nil, e.Wrap(op, fmt.Errorf("empty item id: %w", e.ErrInvalidArgument))
	}

	if entry, ok := u.lookup(ctx, req.ItemID, req.K); ok {
		return &RecommendRes{
			QueryItemID:  req.ItemID,
			Items:        entry.Items,
			TotalResults: len(entry.Items),
			FromCache:    true,
			GenerationID: entry.GenerationID,
			ResponseTime: time.Since(start),
		}, nil
	}

	gen, err := u.generations.Acquire()
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	defer gen.Release()

	pos, ok := gen.Registry().Position(req.ItemID)
	if !ok {
		return nil, e.Wrap(op, fmt.Errorf("item %q: %w", req.ItemID, e.ErrNotFound))
	}

	query, err := gen.Index().Reconstruct(pos)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	mult := u.recCfg.OverFetch
	results, err := u.search(gen, query, req.K*mult+1)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	items, err := u.rank(gen, NewQueryContext(gen.Catalog(), req.ItemID), query, req.K, results, mult)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	u.store(ctx, req.ItemID, req.K, items, gen.ID())

	return &RecommendRes{
		QueryItemID:  req.ItemID,
		Items:        items,
		TotalResults: len(items),
		GenerationID: gen.ID(),
		ResponseTime: time.Since(start),
	}, nil
}

// RecommendBatch обслуживает несколько товаров одним поколением и одним пакетным поиском.
// Неизвестные товары пропускаются, кэш не используется.
func (u *RecommendUseCase) RecommendBatch(ctx context.Context, req *BatchRecommendReq) (res *BatchRecommendRes, err error) {
	const op = "RecommendUseCase.RecommendBatch"

	start := time.Now()
	defer func() {
		metrics.RequestsTotal.WithLabelValues("recommend_batch", outcome(err)).Inc()
	}()

	switch {
	case len(req.ItemIDs) == 0:
		return nil, e.Wrap(op, e.ErrEmptyBatch)
	case len(req.ItemIDs) > u.recCfg.MaxBatch:
		return nil, e.Wrap(op, fmt.Errorf("%d items, max %d: %w", len(req.ItemIDs), u.recCfg.MaxBatch, e.ErrBatchTooLarge))
	}
	if err = u.validateK(req.K); err != nil {
		return nil, e.Wrap(op, err)
	}

	gen, err := u.generations.Acquire()
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	defer gen.Release()

	var (
		ids     = dedupe(req.ItemIDs)
		found   = make([]string, 0, len(ids))
		queries = make([][]float32, 0, len(ids))
	)
	for _, id := range ids {
		pos, ok := gen.Registry().Position(id)
		if !ok {
			u.logger.Debugf("batch: item %q is not indexed, skipping", id)
			continue
		}

		vec, err := gen.Index().Reconstruct(pos)
		if err != nil {
			return nil, e.Wrap(op, err)
		}
		found = append(found, id)
		queries = append(queries, vec)
	}

	results := make(map[string]*RecommendRes, len(found))
	if len(queries) > 0 {
		mult := u.recCfg.OverFetch

		searchStart := time.Now()
		hits, err := gen.Index().BatchSearch(ctx, queries, req.K*mult+1)
		if err != nil {
			return nil, e.Wrap(op, err)
		}
		metrics.SearchDuration.WithLabelValues(string(gen.Strategy())).Observe(time.Since(searchStart).Seconds())

		for i, id := range found {
			items, err := u.rank(gen, NewQueryContext(gen.Catalog(), id), queries[i], req.K, hits[i], mult)
			if err != nil {
				return nil, e.Wrap(op, err)
			}
			results[id] = &RecommendRes{
				QueryItemID:  id,
				Items:        items,
				TotalResults: len(items),
				GenerationID: gen.ID(),
			}
		}
	}

	return &BatchRecommendRes{
		Results:      results,
		TotalQueries: len(ids),
		GenerationID: gen.ID(),
		ResponseTime: time.Since(start),
	}, nil
}

// Stats возвращает сводку по текущему поколению. Отсутствие поколения ошибкой не считается.
func (u *RecommendUseCase) Stats(ctx context.Context) (*StatsRes, error) {
	const op = "RecommendUseCase.Stats"

	res := &StatsRes{
		CacheBackend: u.cacheCfg.Backend,
		CacheTTL:     u.cacheCfg.TTL,
		DefaultK:     u.recCfg.DefaultK,
		MaxK:         u.recCfg.MaxK,
		OverFetch:    u.recCfg.OverFetch,
		MaxBatch:     u.recCfg.MaxBatch,
	}

	gen, err := u.generations.Acquire()
	switch {
	case errors.Is(err, e.ErrIndexUnavailable):
		return res, nil
	case err != nil:
		return nil, e.Wrap(op, err)
	}
	defer gen.Release()

	info := gen.Info()
	res.Ready = true
	res.Generation = &info
	return res, nil
}

func (u *RecommendUseCase) Health(ctx context.Context) *HealthRes {
	res := &HealthRes{
		Status:    StatusHealthy,
		Cache:     CacheStateDisabled,
		Timestamp: u.now().UTC(),
	}

	if gen, err := u.generations.Acquire(); err == nil {
		res.IndexReady = true
		res.IndexSize = gen.Len()
		res.Dim = gen.Index().Dim()
		res.GenerationID = gen.ID()
		gen.Release()
	} else {
		res.Status = StatusUnavailable
	}

	if u.cacheRepo != nil {
		pingCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
		defer cancel()

		if err := u.cacheRepo.Ping(pingCtx); err != nil {
			u.logger.Warnf("cache ping failed: %v", err)
			res.Cache = CacheStateUnavailable
			if res.Status == StatusHealthy {
				res.Status = StatusDegraded
			}
		} else {
			res.Cache = CacheStateOK
		}
	}

	return res
}

// rank ранжирует выдачу и, если после группировки вариантов не хватает,
// повторяет поиск с удвоенным множителем, пока не упрётся в потолок или размер индекса.
func (u *RecommendUseCase) rank(
	gen *lifecycle.Generation,
	q QueryContext,
	query []float32,
	k int,
	results []vectorindex.SearchResult,
	mult int,
) ([]domain.Recommendation, error) {
	for {
		items := RankCandidates(q, BuildCandidates(gen.Registry(), gen.Catalog(), results), k)
		if len(items) >= k || len(results) < k*mult+1 || mult >= u.recCfg.MaxOverFetch {
			return items, nil
		}

		mult = min(mult*2, u.recCfg.MaxOverFetch)
		u.logger.Debugf("only %d of %d results for %q, widening search to x%d", len(items), k, q.ItemID, mult)

		var err error
		results, err = u.search(gen, query, k*mult+1)
		if err != nil {
			return nil, err
		}
	}
}

func (u *RecommendUseCase) search(gen *lifecycle.Generation, query []float32, k int) ([]vectorindex.SearchResult, error) {
	start := time.Now()
	results, err := gen.Index().Search(query, k)
	if err != nil {
		return nil, err
	}
	metrics.SearchDuration.WithLabelValues(string(gen.Strategy())).Observe(time.Since(start).Seconds())
	return results, nil
}

// lookup читает кэш. Ошибка хранилища и просроченная запись считаются промахом.
func (u *RecommendUseCase) lookup(ctx context.Context, itemID string, k int) (*domain.CacheEntry, bool) {
	if u.cacheRepo == nil {
		metrics.CacheLookupsTotal.WithLabelValues(metrics.CacheMiss).Inc()
		return nil, false
	}

	cacheCtx, cancel := u.cacheCtx(ctx)
	defer cancel()

	res := u.cacheRepo.GetRecommendations(cacheCtx, itemID, k)
	switch res.Status {
	case CacheHit:
		if res.Entry != nil && !res.Entry.Expired(u.now(), u.cacheCfg.TTL) {
			metrics.CacheLookupsTotal.WithLabelValues(metrics.CacheHit).Inc()
			return res.Entry, true
		}
	case CacheBackendError:
		metrics.CacheLookupsTotal.WithLabelValues(metrics.CacheBackendError).Inc()
		u.logger.Warnf("cache lookup for %q failed, serving from index: %v", itemID, res.Err)
		return nil, false
	}

	metrics.CacheLookupsTotal.WithLabelValues(metrics.CacheMiss).Inc()
	return nil, false
}

func (u *RecommendUseCase) store(ctx context.Context, itemID string, k int, items []domain.Recommendation, generationID string) {
	if u.cacheRepo == nil {
		return
	}

	cacheCtx, cancel := u.cacheCtx(ctx)
	defer cancel()

	entry := domain.NewCacheEntry(itemID, k, items, generationID, u.now())
	if err := u.cacheRepo.SetRecommendations(cacheCtx, itemID, k, entry); err != nil {
		u.logger.Warnf("failed to cache recommendations for %q: %v", itemID, err)
	}
}

func (u *RecommendUseCase) cacheCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if u.cacheCfg.Timeout > 0 {
		return context.WithTimeout(ctx, u.cacheCfg.Timeout)
	}
	return context.WithCancel(ctx)
}

func (u *RecommendUseCase) validateK(k int) error {
	if k < 1 || k > u.recCfg.MaxK {
		return fmt.Errorf("k must be in [1, %d], got %d: %w", u.recCfg.MaxK, k, e.ErrInvalidArgument)
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// outcome классифицирует ошибку для метрик.
func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, e.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, e.ErrInvalidArgument), errors.Is(err, e.ErrDimMismatch):
		return metrics.OutcomeBadRequest
	case errors.Is(err, e.ErrIndexUnavailable):
		return metrics.OutcomeUnavailable
	default:
		return metrics.OutcomeError
	}
}
