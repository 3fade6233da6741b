package grpc

import (
	"context"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"google.golang.org/protobuf/types/known/structpb"
)

type RecommendService struct {
	recUC  usecase.RecommendUC
	recCfg *cfg.RecommendCfg
	logger logger.Logger
}

func NewRecommendService(recUC usecase.RecommendUC, recCfg *cfg.RecommendCfg, logger logger.Logger) *RecommendService {
	return &RecommendService{recUC: recUC, recCfg: recCfg, logger: logger}
}

// Recommend принимает {item_id, k?} и отвечает {query_item_id, recommendations, total_results, from_cache, generation_id}.
func (g *RecommendService) Recommend(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "grpc.Recommend"

	itemID, err := stringField(req, "item_id")
	if err != nil {
		return nil, GRPCErrorResponse(err)
	}
	k, err := intField(req, "k", g.recCfg.DefaultK)
	if err != nil {
		return nil, GRPCErrorResponse(err)
	}

	res, err := g.recUC.Recommend(ctx, &usecase.RecommendReq{ItemID: itemID, K: k})
	if err != nil {
		g.logger.Warnf("%s: %s", op, err.Error())
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	out, err := structpb.NewStruct(map[string]any{
		"query_item_id":   res.QueryItemID,
		"recommendations": toRecommendationList(res.Items),
		"total_results":   res.TotalResults,
		"from_cache":      res.FromCache,
		"generation_id":   res.GenerationID,
	})
	if err != nil {
		g.logger.Errorf(e.Wrap(op, err), "%s", op)
		return nil, GRPCErrorResponse(err)
	}

	return out, nil
}

// RecommendBatch принимает {item_ids, k?}. Неизвестные товары в results не попадают.
func (g *RecommendService) RecommendBatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "grpc.RecommendBatch"

	ids, err := stringListField(req, "item_ids")
	if err != nil {
		return nil, GRPCErrorResponse(err)
	}
	k, err := intField(req, "k", g.recCfg.DefaultK)
	if err != nil {
		return nil, GRPCErrorResponse(err)
	}

	res, err := g.recUC.RecommendBatch(ctx, &usecase.BatchRecommendReq{ItemIDs: ids, K: k})
	if err != nil {
		g.logger.Warnf("%s: %s", op, err.Error())
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	results := make(map[string]any, len(res.Results))
	for id, r := range res.Results {
		results[id] = map[string]any{
			"recommendations": toRecommendationList(r.Items),
			"total_results":   r.TotalResults,
		}
	}

	out, err := structpb.NewStruct(map[string]any{
		"results":       results,
		"total_queries": res.TotalQueries,
		"generation_id": res.GenerationID,
	})
	if err != nil {
		g.logger.Errorf(e.Wrap(op, err), "%s", op)
		return nil, GRPCErrorResponse(err)
	}

	return out, nil
}

func toRecommendationList(recs []domain.Recommendation) []any {
	res := make([]any, len(recs))
	for i, r := range recs {
		res[i] = map[string]any{
			"variant_id":       r.ItemID,
			"similarity_score": float64(r.Score),
		}
	}

	return res
}
