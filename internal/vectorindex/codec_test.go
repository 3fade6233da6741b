package vectorindex

import (
	"bytes"
	"context"
	"math/rand"
	"testing"

	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(31))
	vectors := randomUnitVectors(rng, 250, 8)
	queries := vectors[:15]

	for _, st := range []Strategy{StrategyFlat, StrategyIVF, StrategyHNSW} {
		t.Run(string(st), func(t *testing.T) {
			cfg := DefaultConfig(st, 8)
			cfg.NList, cfg.NProbe, cfg.M = 10, 3, 8

			idx, err := New(cfg)
			require.NoError(t, err)
			require.NoError(t, idx.Build(ctx, vectors))

			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, idx, 0xfeed))

			restored, hdr, err := Decode(&buf)
			require.NoError(t, err)
			assert.Equal(t, st, hdr.Strategy)
			assert.Equal(t, uint64(0xfeed), hdr.Fingerprint)
			assert.Equal(t, idx.Len(), restored.Len())
			assert.Equal(t, idx.Dim(), restored.Dim())

			want, err := idx.BatchSearch(ctx, queries, 10)
			require.NoError(t, err)
			got, err := restored.BatchSearch(ctx, queries, 10)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			v, err := restored.Reconstruct(3)
			require.NoError(t, err)
			assert.Equal(t, vectors[3], v)
		})
	}
}

func TestCodecEmptyIndex(t *testing.T) {
	idx := NewFlat(4)
	require.NoError(t, idx.Build(context.Background(), nil))

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, idx, 1))

	restored, _, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 0, restored.Len())
}

func TestCodecRejectsGarbage(t *testing.T) {
	_, _, err := Decode(bytes.NewReader([]byte("not an index")))
	assert.ErrorIs(t, err, e.ErrCorruptIndex)
}

func TestCodecRejectsUntrainedIVF(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, NewIVF(4, 2, 1, 5, 1), 0)
	assert.ErrorIs(t, err, e.ErrNotTrained)
}

func TestRecallAtK(t *testing.T) {
	exact := [][]SearchResult{{{Position: 1}, {Position: 2}}, {{Position: 3}, {Position: 4}}}
	approx := [][]SearchResult{{{Position: 2}, {Position: 1}}, {{Position: 3}, {Position: 9}}}

	assert.InDelta(t, 0.75, RecallAtK(exact, approx, 2), 1e-9)
	assert.Equal(t, 0.0, RecallAtK(nil, nil, 2))
}

func TestCompare(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	vectors := randomUnitVectors(rng, 200, 8)
	queries := SampleQueries(vectors, 20, 1)

	flat := DefaultConfig(StrategyFlat, 8)
	results, err := Compare(context.Background(), []Config{flat}, vectors, queries, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1.0, results[0].RecallAtK)
	assert.Equal(t, 200, results[0].Vectors)
	assert.Equal(t, 20, results[0].Queries)

	_, err = Compare(context.Background(), []Config{flat}, nil, queries, 5)
	assert.ErrorIs(t, err, e.ErrEmptyVectors)
}
