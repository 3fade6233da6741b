package minio

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/internal/lifecycle"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut string // суффикс ключа, на котором Put падает
	deletes []string
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: make(map[string][]byte)}
}

func (m *memoryObjects) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failPut != "" && strings.HasSuffix(key, m.failPut) {
		return errors.New("minio: connection reset")
	}
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *memoryObjects) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[key]
	if !ok {
		return nil, e.ErrObjectNotFound
	}
	return data, nil
}

func (m *memoryObjects) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deletes = append(m.deletes, key)
	delete(m.objects, key)
	return nil
}

func (m *memoryObjects) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

func newTestInfra(objects ObjectRepository) *ArtifactInfrastructure {
	return NewArtifactInfrastructure(objects, &cfg.MinIOCfg{Prefix: "generations"}, logger.NewNopLogger(), context.Background())
}

func testArtifact(id string) *lifecycle.Artifact {
	return &lifecycle.Artifact{
		GenerationID: id,
		BuiltAt:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Index:        []byte("index-bytes-" + id),
		Mapping:      []byte(`{"generation_id":"` + id + `"}`),
	}
}

func TestArtifactSaveAndLoadLatest(t *testing.T) {
	objects := newMemoryObjects()
	infra := newTestInfra(objects)
	ctx := context.Background()

	_, err := infra.LoadLatest(ctx)
	assert.ErrorIs(t, err, e.ErrArtifactNotFound)

	require.NoError(t, infra.Save(ctx, testArtifact("g1")))
	require.NoError(t, infra.Save(ctx, testArtifact("g2")))

	assert.True(t, objects.has("generations/g2/index.bin"))
	assert.True(t, objects.has("generations/g2/mapping.json"))
	assert.True(t, objects.has("generations/LATEST"))

	got, err := infra.LoadLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, testArtifact("g2"), got)
}

func TestArtifactLoadIncomplete(t *testing.T) {
	objects := newMemoryObjects()
	infra := newTestInfra(objects)
	ctx := context.Background()

	require.NoError(t, infra.Save(ctx, testArtifact("g1")))
	require.NoError(t, objects.Delete(ctx, "generations/g1/mapping.json"))

	_, err := infra.LoadLatest(ctx)
	assert.ErrorIs(t, err, e.ErrArtifactIncomplete)
}

func TestArtifactSaveRejectsHalfArtifact(t *testing.T) {
	infra := newTestInfra(newMemoryObjects())

	art := testArtifact("g1")
	art.Mapping = nil
	assert.ErrorIs(t, infra.Save(context.Background(), art), e.ErrArtifactIncomplete)
}

func TestArtifactSaveFailureCleansUpAndKeepsLatest(t *testing.T) {
	objects := newMemoryObjects()
	infra := newTestInfra(objects)
	ctx := context.Background()

	require.NoError(t, infra.Save(ctx, testArtifact("g1")))

	objects.failPut = "mapping.json"
	require.Error(t, infra.Save(ctx, testArtifact("g2")))

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, infra.WaitForCleanup(waitCtx))

	assert.False(t, objects.has("generations/g2/index.bin"))

	got, err := infra.LoadLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "g1", got.GenerationID)
}
