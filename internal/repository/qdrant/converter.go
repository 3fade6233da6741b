package qdrant

import (
	"strconv"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/qdrant/go-client/qdrant"
)

// toEmbedding берёт идентификатор варианта из payload, если его нет, то из id точки.
func toEmbedding(p *qdrant.RetrievedPoint, idKey string) (domain.Embedding, bool) {
	vector := p.GetVectors().GetVector().GetData()
	if len(vector) == 0 {
		return domain.Embedding{}, false
	}

	id := payloadID(p.GetPayload(), idKey)
	if id == "" {
		id = pointID(p.GetId())
	}
	if id == "" {
		return domain.Embedding{}, false
	}

	return domain.NewEmbedding(id, vector), true
}

func payloadID(payload map[string]*qdrant.Value, key string) string {
	if key == "" {
		return ""
	}

	v, ok := payload[key]
	if !ok {
		return ""
	}

	switch v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return v.GetStringValue()
	case *qdrant.Value_IntegerValue:
		return strconv.FormatInt(v.GetIntegerValue(), 10)
	default:
		return ""
	}
}

func pointID(id *qdrant.PointId) string {
	switch id.GetPointIdOptions().(type) {
	case *qdrant.PointId_Uuid:
		return id.GetUuid()
	case *qdrant.PointId_Num:
		return strconv.FormatUint(id.GetNum(), 10)
	default:
		return ""
	}
}
