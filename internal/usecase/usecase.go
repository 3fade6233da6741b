package usecase

import "context"

type RecommendUC interface {
	Recommend(ctx context.Context, req *RecommendReq) (*RecommendRes, error)
	RecommendBatch(ctx context.Context, req *BatchRecommendReq) (*BatchRecommendRes, error)
	Stats(ctx context.Context) (*StatsRes, error)
	Health(ctx context.Context) *HealthRes
}

// IndexAdminUC ставит перестроение индекса в очередь.
type IndexAdminUC interface {
	TriggerRebuild() bool
}
