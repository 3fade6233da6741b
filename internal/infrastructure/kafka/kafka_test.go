package kafka

import (
	"errors"
	"testing"
	"time"

	"github.com/DRSN-tech/recommender/internal/lifecycle"
	"github.com/DRSN-tech/recommender/internal/vectorindex"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestGenerationPayload(t *testing.T) {
	builtAt := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	info := lifecycle.GenerationInfo{
		ID:          "0b7c7f0e-gen",
		Strategy:    vectorindex.StrategyHNSW,
		Vectors:     1200,
		Dim:         512,
		CatalogSize: 1180,
		Fingerprint: 0xabc,
		BuiltAt:     builtAt,
		Source:      lifecycle.SourceBuild,
	}

	data, err := GenerationPayload(info, builtAt.Add(time.Second))
	require.NoError(t, err)

	var event structpb.Struct
	require.NoError(t, proto.Unmarshal(data, &event))
	fields := event.AsMap()

	assert.Equal(t, EventGenerationPublished, fields["event_type"])
	assert.Equal(t, "0b7c7f0e-gen", fields["generation_id"])
	assert.Equal(t, "hnsw", fields["strategy"])
	assert.Equal(t, float64(1200), fields["vectors"])
	assert.Equal(t, float64(512), fields["dim"])
	assert.Equal(t, "abc", fields["fingerprint"])
	assert.Equal(t, "2026-02-03T04:05:06Z", fields["built_at"])
	assert.Equal(t, "2026-02-03T04:05:07Z", fields["event_timestamp"])
	assert.NotEmpty(t, fields["event_id"])
}

type countingTrigger struct {
	calls   int
	pending bool
}

func (c *countingTrigger) TriggerRebuild() bool {
	c.calls++
	if c.pending {
		return false
	}
	c.pending = true
	return true
}

func TestCatalogConsumerHandleTriggersRebuild(t *testing.T) {
	trigger := &countingTrigger{}
	c := &CatalogConsumer{trigger: trigger, logger: logger.NewNopLogger()}

	c.handle(kafka.Message{Topic: "catalog.changes", Offset: 1})
	c.handle(kafka.Message{Topic: "catalog.changes", Offset: 2})

	assert.Equal(t, 2, trigger.calls)
	assert.True(t, trigger.pending)
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(errors.New("dial tcp 10.0.0.1:9092: connect: connection refused")))
	assert.True(t, isRetryableError(errors.New("[5] Leader Not Available: the cluster is in the middle of a leadership election")))
	assert.False(t, isRetryableError(errors.New("[29] Topic Authorization Failed")))
	assert.False(t, isRetryableError(nil))
}
