package http

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/lifecycle"
	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/DRSN-tech/recommender/internal/vectorindex"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecommendUC struct {
	recErr   error
	lastReq  *usecase.RecommendReq
	batchReq *usecase.BatchRecommendReq
	health   *usecase.HealthRes
}

func (f *fakeRecommendUC) Recommend(_ context.Context, req *usecase.RecommendReq) (*usecase.RecommendRes, error) {
	f.lastReq = req
	if f.recErr != nil {
		return nil, f.recErr
	}

	return &usecase.RecommendRes{
		QueryItemID:  req.ItemID,
		Items:        []domain.Recommendation{domain.NewRecommendation("v2", 0.9), domain.NewRecommendation("v3", 0.5)},
		TotalResults: 2,
		FromCache:    true,
		ResponseTime: 1500 * time.Microsecond,
	}, nil
}

func (f *fakeRecommendUC) RecommendBatch(_ context.Context, req *usecase.BatchRecommendReq) (*usecase.BatchRecommendRes, error) {
	f.batchReq = req
	return &usecase.BatchRecommendRes{
		Results: map[string]*usecase.RecommendRes{
			req.ItemIDs[0]: {QueryItemID: req.ItemIDs[0], Items: []domain.Recommendation{domain.NewRecommendation("v9", 0.7)}, TotalResults: 1},
		},
		TotalQueries: len(req.ItemIDs),
	}, nil
}

func (f *fakeRecommendUC) Stats(context.Context) (*usecase.StatsRes, error) {
	return &usecase.StatsRes{
		Ready: true,
		Generation: &lifecycle.GenerationInfo{
			ID:       "g1",
			Strategy: vectorindex.StrategyFlat,
			Vectors:  3,
			Dim:      4,
			BuiltAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			Source:   lifecycle.SourceBuild,
		},
		CacheBackend: "redis",
		CacheTTL:     time.Hour,
		DefaultK:     5,
		MaxK:         100,
	}, nil
}

func (f *fakeRecommendUC) Health(context.Context) *usecase.HealthRes {
	if f.health != nil {
		return f.health
	}
	return &usecase.HealthRes{Status: usecase.StatusHealthy, IndexReady: true, Cache: usecase.CacheStateOK}
}

type fakeAdmin struct{ calls int }

func (f *fakeAdmin) TriggerRebuild() bool {
	f.calls++
	return f.calls == 1
}

func newTestRouter(uc *fakeRecommendUC, admin *fakeAdmin) http.Handler {
	r := NewRouter(chi.NewMux(), &cfg.HTTPConfig{}, logger.NewNopLogger())
	r.Init(uc, admin, &cfg.RecommendCfg{DefaultK: 5, MaxK: 100, MaxBatch: 50})
	return r.Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRecommend(t *testing.T) {
	uc := &fakeRecommendUC{}
	h := newTestRouter(uc, &fakeAdmin{})

	rec := do(t, h, http.MethodGet, "/api/v1/recommend/v1?k=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(HeaderProcessTime))

	var res RecommendResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "v1", res.QueryVariantID)
	assert.Equal(t, 2, res.TotalResults)
	assert.True(t, res.FromCache)
	assert.InDelta(t, 1.5, res.ResponseTimeMs, 1e-9)
	require.Len(t, res.Recommendations, 2)
	assert.Equal(t, "v2", res.Recommendations[0].VariantID)
	assert.Equal(t, 2, uc.lastReq.K)
}

func TestRecommendDefaultK(t *testing.T) {
	uc := &fakeRecommendUC{}
	h := newTestRouter(uc, &fakeAdmin{})

	rec := do(t, h, http.MethodGet, "/api/v1/recommend/v1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, uc.lastReq.K)
}

func TestRecommendBadK(t *testing.T) {
	h := newTestRouter(&fakeRecommendUC{}, &fakeAdmin{})

	rec := do(t, h, http.MethodGet, "/api/v1/recommend/v1?k=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecommendErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"not found", e.Wrap("RecommendUC.Recommend", e.ErrNotFound), http.StatusNotFound},
		{"invalid", fmt.Errorf("%w: k out of range", e.ErrInvalidArgument), http.StatusBadRequest},
		{"unavailable", e.Wrap("Manager.Acquire", e.ErrIndexUnavailable), http.StatusServiceUnavailable},
		{"internal", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(&fakeRecommendUC{recErr: tt.err}, &fakeAdmin{})

			rec := do(t, h, http.MethodGet, "/api/v1/recommend/v1", "")
			assert.Equal(t, tt.code, rec.Code)

			var res ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			assert.Equal(t, tt.code, res.Code)
			assert.NotEmpty(t, res.Message)
		})
	}
}

func TestInternalErrorHidesDetails(t *testing.T) {
	code, msg := ToHTTPResponse(fmt.Errorf("pg: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, e.ErrInternalServerError.Error(), msg)
}

func TestRecommendBatch(t *testing.T) {
	uc := &fakeRecommendUC{}
	h := newTestRouter(uc, &fakeAdmin{})

	rec := do(t, h, http.MethodPost, "/api/v1/recommend/batch", `{"product_ids":["a","b"],"k":3}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res BatchRecommendResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 2, res.TotalQueries)
	require.Contains(t, res.Results, "a")
	assert.Equal(t, 1, res.Results["a"].TotalResults)
	assert.Equal(t, 3, uc.batchReq.K)
}

func TestRecommendBatchValidation(t *testing.T) {
	ids := make([]string, 51)
	for i := range ids {
		ids[i] = fmt.Sprintf("%q", fmt.Sprintf("v%d", i))
	}

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"product_ids":`},
		{"empty", `{"product_ids":[]}`},
		{"missing", `{"k":3}`},
		{"blank id", `{"product_ids":[""]}`},
		{"zero k", `{"product_ids":["a"],"k":0}`},
		{"too many", `{"product_ids":[` + strings.Join(ids, ",") + `]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &fakeRecommendUC{}
			h := newTestRouter(uc, &fakeAdmin{})

			rec := do(t, h, http.MethodPost, "/api/v1/recommend/batch", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, uc.batchReq)
		})
	}
}

func TestRecommendBatchDefaultK(t *testing.T) {
	uc := &fakeRecommendUC{}
	h := newTestRouter(uc, &fakeAdmin{})

	rec := do(t, h, http.MethodPost, "/api/v1/recommend/batch", `{"product_ids":["a"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, uc.batchReq.K)
}

func TestHealth(t *testing.T) {
	h := newTestRouter(&fakeRecommendUC{}, &fakeAdmin{})
	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	down := &fakeRecommendUC{health: &usecase.HealthRes{Status: usecase.StatusUnavailable, Cache: usecase.CacheStateDisabled}}
	rec = do(t, newTestRouter(down, &fakeAdmin{}), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var res HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, usecase.StatusUnavailable, res.Status)
	assert.False(t, res.IndexReady)
}

func TestStats(t *testing.T) {
	h := newTestRouter(&fakeRecommendUC{}, &fakeAdmin{})

	rec := do(t, h, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Ready)
	assert.Equal(t, "g1", res.GenerationID)
	assert.Equal(t, "flat", res.IndexType)
	assert.Equal(t, 3, res.TotalProducts)
	assert.Equal(t, float64(3600), res.CacheTTLSeconds)
	require.NotNil(t, res.BuiltAt)
}

func TestRebuildIndex(t *testing.T) {
	admin := &fakeAdmin{}
	h := newTestRouter(&fakeRecommendUC{}, admin)

	rec := do(t, h, http.MethodPost, "/api/v1/admin/index/rebuild", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var res RebuildResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Queued)

	rec = do(t, h, http.MethodPost, "/api/v1/admin/index/rebuild", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.Queued)
	assert.Equal(t, 2, admin.calls)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(&fakeRecommendUC{}, &fakeAdmin{})

	rec := do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
