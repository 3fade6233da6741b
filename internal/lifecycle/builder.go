package lifecycle

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/DRSN-tech/recommender/internal/catalog"
	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/registry"
	"github.com/DRSN-tech/recommender/internal/vectorindex"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/DRSN-tech/recommender/pkg/vecmath"
	"github.com/google/uuid"
)

// normTolerance — допустимое отклонение нормы входного вектора от единицы.
const normTolerance = 1e-3

// PrepareVectors проверяет размерность и нормализует векторы снимка.
// Нулевые и невалидные векторы пропускаются с предупреждением.
func PrepareVectors(embeddings []domain.Embedding, dim int, log logger.Logger) ([]string, [][]float32, error) {
	ids := make([]string, 0, len(embeddings))
	vectors := make([][]float32, 0, len(embeddings))

	var (
		skipped      int
		renormalized int
		minNorm      = float32(math.Inf(1))
		maxNorm      float32
	)

	for _, emb := range embeddings {
		if len(emb.Vector) != dim {
			return nil, nil, fmt.Errorf("item %q has %d dims, want %d: %w", emb.ItemID, len(emb.Vector), dim, e.ErrDimMismatch)
		}

		norm := vecmath.Norm(emb.Vector)
		v, ok := vecmath.Normalized(emb.Vector)
		if !ok {
			skipped++
			log.Warnf("skipping item %q: vector cannot be normalized", emb.ItemID)
			continue
		}
		if math.Abs(float64(norm)-1) > normTolerance {
			renormalized++
		}
		minNorm = min(minNorm, norm)
		maxNorm = max(maxNorm, norm)

		ids = append(ids, emb.ItemID)
		vectors = append(vectors, v)
	}

	if len(vectors) > 0 {
		log.Infof("prepared %d vectors (skipped %d, renormalized %d), norm range [%.4f, %.4f]",
			len(vectors), skipped, renormalized, minNorm, maxNorm)
	} else {
		log.Warnf("snapshot produced no usable vectors (skipped %d)", skipped)
	}

	return ids, vectors, nil
}

// BuildGeneration строит индекс и реестр по одному упорядоченному снимку.
func BuildGeneration(ctx context.Context, cfg vectorindex.Config, embeddings []domain.Embedding, cat *catalog.Store, log logger.Logger) (*Generation, error) {
	const op = "lifecycle.BuildGeneration"

	ids, vectors, err := PrepareVectors(embeddings, cfg.Dim, log)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	reg, err := registry.New(ids)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	idx, err := vectorindex.New(cfg)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	start := time.Now()
	if err := idx.Build(ctx, vectors); err != nil {
		return nil, e.Wrap(op, err)
	}
	log.Infof("built %s index over %d vectors in %s", idx.Strategy(), idx.Len(), time.Since(start).Round(time.Millisecond))

	return newGeneration(uuid.NewString(), idx, reg, cat, time.Now().UTC(), SourceBuild), nil
}
