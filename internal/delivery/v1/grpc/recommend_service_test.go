package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type fakeRecommendUC struct {
	err      error
	lastReq  *usecase.RecommendReq
	batchReq *usecase.BatchRecommendReq
}

func (f *fakeRecommendUC) Recommend(_ context.Context, req *usecase.RecommendReq) (*usecase.RecommendRes, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &usecase.RecommendRes{
		QueryItemID:  req.ItemID,
		Items:        []domain.Recommendation{domain.NewRecommendation("v2", 0.5)},
		TotalResults: 1,
		GenerationID: "g1",
	}, nil
}

func (f *fakeRecommendUC) RecommendBatch(_ context.Context, req *usecase.BatchRecommendReq) (*usecase.BatchRecommendRes, error) {
	f.batchReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &usecase.BatchRecommendRes{
		Results: map[string]*usecase.RecommendRes{
			"a": {QueryItemID: "a", Items: []domain.Recommendation{domain.NewRecommendation("b", 0.25)}, TotalResults: 1},
		},
		TotalQueries: len(req.ItemIDs),
		GenerationID: "g1",
	}, nil
}

func (f *fakeRecommendUC) Stats(context.Context) (*usecase.StatsRes, error) { return &usecase.StatsRes{}, nil }
func (f *fakeRecommendUC) Health(context.Context) *usecase.HealthRes      { return &usecase.HealthRes{} }

func startServer(t *testing.T, uc usecase.RecommendUC) (*GRPCServer, *grpc.ClientConn) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(&cfg.GRPCConfig{NetworkMode: "tcp"}, logger.NewNopLogger())
	srv.RegisterServices(uc, &cfg.RecommendCfg{DefaultK: 5, MaxK: 100})
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})

	return srv, conn
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestRecommend(t *testing.T) {
	uc := &fakeRecommendUC{}
	_, conn := startServer(t, uc)
	client := NewRecommenderClient(conn)

	out, err := client.Recommend(context.Background(), mustStruct(t, map[string]any{"item_id": "v1", "k": 3}))
	require.NoError(t, err)

	m := out.AsMap()
	assert.Equal(t, "v1", m["query_item_id"])
	assert.Equal(t, float64(1), m["total_results"])
	assert.Equal(t, "g1", m["generation_id"])
	recs := m["recommendations"].([]any)
	require.Len(t, recs, 1)
	assert.Equal(t, "v2", recs[0].(map[string]any)["variant_id"])
	assert.Equal(t, 3, uc.lastReq.K)
}

func TestRecommendDefaultK(t *testing.T) {
	uc := &fakeRecommendUC{}
	_, conn := startServer(t, uc)

	_, err := NewRecommenderClient(conn).Recommend(context.Background(), mustStruct(t, map[string]any{"item_id": "v1"}))
	require.NoError(t, err)
	assert.Equal(t, 5, uc.lastReq.K)
}

func TestRecommendInvalidRequest(t *testing.T) {
	uc := &fakeRecommendUC{}
	_, conn := startServer(t, uc)
	client := NewRecommenderClient(conn)

	_, err := client.Recommend(context.Background(), mustStruct(t, map[string]any{"k": 3}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Recommend(context.Background(), mustStruct(t, map[string]any{"item_id": "v1", "k": 2.5}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Nil(t, uc.lastReq)
}

func TestRecommendErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{e.Wrap("RecommendUC.Recommend", e.ErrNotFound), codes.NotFound},
		{e.ErrInvalidArgument, codes.InvalidArgument},
		{e.Wrap("Manager.Acquire", e.ErrIndexUnavailable), codes.Unavailable},
		{assert.AnError, codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			_, conn := startServer(t, &fakeRecommendUC{err: tt.err})

			_, err := NewRecommenderClient(conn).Recommend(context.Background(), mustStruct(t, map[string]any{"item_id": "v1"}))
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}

func TestRecommendBatch(t *testing.T) {
	uc := &fakeRecommendUC{}
	_, conn := startServer(t, uc)

	out, err := NewRecommenderClient(conn).RecommendBatch(context.Background(),
		mustStruct(t, map[string]any{"item_ids": []any{"a", "zzz"}, "k": 2}))
	require.NoError(t, err)

	m := out.AsMap()
	assert.Equal(t, float64(2), m["total_queries"])
	results := m["results"].(map[string]any)
	assert.Contains(t, results, "a")
	assert.NotContains(t, results, "zzz")
	assert.Equal(t, []string{"a", "zzz"}, uc.batchReq.ItemIDs)

	_, err = NewRecommenderClient(conn).RecommendBatch(context.Background(),
		mustStruct(t, map[string]any{"item_ids": []any{"a", 7}}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestHealthFollowsServing(t *testing.T) {
	srv, conn := startServer(t, &fakeRecommendUC{})
	client := healthpb.NewHealthClient(conn)

	res, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, res.GetStatus())

	srv.SetServing(true)

	res, err = client.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, res.GetStatus())
}
