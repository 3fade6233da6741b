package qdrant

import (
	"context"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

// EmbeddingRepo выгружает эмбеддинги вариантов из коллекции Qdrant.
type EmbeddingRepo struct {
	client *qdrant.Client
	cfg    *cfg.QdrantCfg
	logger logger.Logger
}

func NewEmbeddingRepo(client *qdrant.Client, cfg *cfg.QdrantCfg, logger logger.Logger) *EmbeddingRepo {
	return &EmbeddingRepo{
		client: client,
		cfg:    cfg,
		logger: logger,
	}
}

// Snapshot постранично выгружает все точки коллекции вместе с векторами и payload.
// Точки без вектора или идентификатора пропускаются.
func (q *EmbeddingRepo) Snapshot(ctx context.Context) ([]domain.Embedding, error) {
	var (
		out     []domain.Embedding
		offset  *qdrant.PointId
		limit   = q.cfg.ScrollLimit
		skipped int
	)

	for {
		resp, err := q.client.GetPointsClient().Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: q.cfg.CollectionName,
			Offset:         offset,
			Limit:          &limit,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		for _, p := range resp.GetResult() {
			emb, ok := toEmbedding(p, q.cfg.IDPayloadKey)
			if !ok {
				skipped++
				continue
			}
			out = append(out, emb)
		}

		offset = resp.GetNextPageOffset()
		if offset == nil {
			break
		}
	}

	if skipped > 0 {
		q.logger.Warnf("qdrant snapshot: skipped %d points without id or vector", skipped)
	}
	q.logger.Debugf("qdrant snapshot: %d embeddings from %q", len(out), q.cfg.CollectionName)

	return out, nil
}
