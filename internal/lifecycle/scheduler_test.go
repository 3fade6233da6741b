package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchedulerRejectsBadSpec(t *testing.T) {
	m := newTestManager(t, &fakeEmbeddings{}, nil, nil)
	_, err := NewScheduler("every tuesday", m, logger.NewNopLogger())
	assert.Error(t, err)
}

func TestSchedulerStartStop(t *testing.T) {
	m := newTestManager(t, &fakeEmbeddings{}, nil, nil)
	s, err := NewScheduler("@every 1h", m, logger.NewNopLogger())
	require.NoError(t, err)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
