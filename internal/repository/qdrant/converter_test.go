package qdrant

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
)

func point(id *qdrant.PointId, payload map[string]any, vector []float32) *qdrant.RetrievedPoint {
	p := &qdrant.RetrievedPoint{Id: id, Payload: qdrant.NewValueMap(payload)}
	if vector != nil {
		p.Vectors = &qdrant.VectorsOutput{
			VectorsOptions: &qdrant.VectorsOutput_Vector{Vector: &qdrant.VectorOutput{Data: vector}},
		}
	}
	return p
}

func TestToEmbedding(t *testing.T) {
	vec := []float32{0.6, 0.8}

	emb, ok := toEmbedding(point(qdrant.NewIDNum(7), map[string]any{"variant_id": "v-1"}, vec), "variant_id")
	assert.True(t, ok)
	assert.Equal(t, "v-1", emb.ItemID)
	assert.Equal(t, vec, emb.Vector)

	emb, ok = toEmbedding(point(qdrant.NewIDNum(7), map[string]any{"variant_id": 42}, vec), "variant_id")
	assert.True(t, ok)
	assert.Equal(t, "42", emb.ItemID)

	emb, ok = toEmbedding(point(qdrant.NewIDNum(7), map[string]any{"name": "shirt"}, vec), "variant_id")
	assert.True(t, ok)
	assert.Equal(t, "7", emb.ItemID)

	uuid := "5c56c793-69f3-4fbf-87e6-c4bf54c28c26"
	emb, ok = toEmbedding(point(qdrant.NewIDUUID(uuid), nil, vec), "")
	assert.True(t, ok)
	assert.Equal(t, uuid, emb.ItemID)
}

func TestToEmbeddingSkipsPointsWithoutVector(t *testing.T) {
	_, ok := toEmbedding(point(qdrant.NewIDNum(1), map[string]any{"variant_id": "v"}, nil), "variant_id")
	assert.False(t, ok)
}
