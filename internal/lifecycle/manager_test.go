package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/vectorindex"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/DRSN-tech/recommender/pkg/vecmath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 8

type fakeEmbeddings struct {
	mu       sync.Mutex
	items    []domain.Embedding
	err      error
	failures int // сколько первых вызовов вернут errSnapshot
	calls    int
	block    chan struct{}
}

var errSnapshot = errors.New("qdrant is down")

func (f *fakeEmbeddings) Snapshot(ctx context.Context) ([]domain.Embedding, error) {
	f.mu.Lock()
	f.calls++
	calls, failures, err, block := f.calls, f.failures, f.err, f.block
	items := append([]domain.Embedding(nil), f.items...)
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if calls <= failures {
		return nil, errSnapshot
	}
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (f *fakeEmbeddings) set(items []domain.Embedding) {
	f.mu.Lock()
	f.items = items
	f.mu.Unlock()
}

type fakeCatalog struct {
	items []domain.CatalogAttributes
}

func (f *fakeCatalog) LoadAll(context.Context) ([]domain.CatalogAttributes, error) {
	return f.items, nil
}

type memoryArtifacts struct {
	mu     sync.Mutex
	latest *Artifact
	saves  int
}

func (m *memoryArtifacts) Save(_ context.Context, a *Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest = a
	m.saves++
	return nil
}

func (m *memoryArtifacts) LoadLatest(context.Context) (*Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latest == nil {
		return nil, e.ErrArtifactNotFound
	}
	return m.latest, nil
}

type recordingPublisher struct {
	mu    sync.Mutex
	infos []GenerationInfo
}

func (p *recordingPublisher) PublishGeneration(_ context.Context, info GenerationInfo) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.infos = append(p.infos, info)
	return nil
}

func randomEmbeddings(seed int64, n int) []domain.Embedding {
	rng := rand.New(rand.NewSource(seed))
	out := make([]domain.Embedding, n)
	for i := range out {
		v := make([]float32, testDim)
		for j := range v {
			v[j] = float32(rng.NormFloat64())
		}
		vecmath.Normalize(v)
		out[i] = domain.NewEmbedding(fmt.Sprintf("sku-%03d", i), v)
	}
	return out
}

func testRebuildCfg() *cfg.RebuildCfg {
	return &cfg.RebuildCfg{
		MaxRetries:  3,
		BackoffBase: time.Millisecond,
		BackoffMax:  5 * time.Millisecond,
	}
}

func newTestManager(t *testing.T, embeddings *fakeEmbeddings, artifacts ArtifactRepository, publisher GenerationPublisher) *Manager {
	t.Helper()
	indexCfg := vectorindex.DefaultConfig(vectorindex.StrategyFlat, testDim)
	return NewManager(testRebuildCfg(), indexCfg, embeddings, &fakeCatalog{}, artifacts, publisher, logger.NewNopLogger())
}

func TestAcquireBeforeFirstBuild(t *testing.T) {
	m := newTestManager(t, &fakeEmbeddings{}, nil, nil)

	_, err := m.Acquire()
	assert.ErrorIs(t, err, e.ErrIndexUnavailable)
	assert.False(t, m.Ready())
}

func TestRebuildServesNewGeneration(t *testing.T) {
	pub := &recordingPublisher{}
	m := newTestManager(t, &fakeEmbeddings{items: randomEmbeddings(1, 50)}, nil, pub)

	var seen []GenerationInfo
	m.Subscribe(func(info GenerationInfo) { seen = append(seen, info) })

	require.NoError(t, m.Rebuild(context.Background()))

	gen, err := m.Acquire()
	require.NoError(t, err)
	defer gen.Release()

	assert.Equal(t, 50, gen.Len())
	assert.Equal(t, SourceBuild, gen.Source())
	assert.Equal(t, vectorindex.StrategyFlat, gen.Strategy())

	require.Len(t, seen, 1)
	assert.Equal(t, gen.ID(), seen[0].ID)
	require.Len(t, pub.infos, 1)
	assert.Equal(t, 50, pub.infos[0].Vectors)
}

func TestRebuildFailureKeepsCurrent(t *testing.T) {
	src := &fakeEmbeddings{items: randomEmbeddings(1, 20)}
	m := newTestManager(t, src, nil, nil)
	require.NoError(t, m.Rebuild(context.Background()))

	before, err := m.Acquire()
	require.NoError(t, err)
	before.Release()

	src.err = errSnapshot
	err = m.Rebuild(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, e.ErrBuildFailed)
	assert.ErrorIs(t, err, errSnapshot)

	after, err := m.Acquire()
	require.NoError(t, err)
	defer after.Release()
	assert.Equal(t, before.ID(), after.ID())
}

func TestRebuildRejectsBadSnapshots(t *testing.T) {
	wrongDim := randomEmbeddings(1, 3)
	wrongDim[1].Vector = wrongDim[1].Vector[:4]

	dup := randomEmbeddings(2, 3)
	dup[2].ItemID = dup[0].ItemID

	cases := []struct {
		name  string
		items []domain.Embedding
		want  error
	}{
		{"dimension", wrongDim, e.ErrDimMismatch},
		{"duplicate", dup, e.ErrDuplicateID},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newTestManager(t, &fakeEmbeddings{items: tc.items}, nil, nil)
			err := m.Rebuild(context.Background())
			assert.ErrorIs(t, err, e.ErrBuildFailed)
			assert.ErrorIs(t, err, tc.want)
			assert.False(t, m.Ready())
		})
	}
}

func TestRebuildSkipsZeroVectors(t *testing.T) {
	items := randomEmbeddings(3, 5)
	items[2].Vector = make([]float32, testDim)

	m := newTestManager(t, &fakeEmbeddings{items: items}, nil, nil)
	require.NoError(t, m.Rebuild(context.Background()))

	gen, err := m.Acquire()
	require.NoError(t, err)
	defer gen.Release()

	assert.Equal(t, 4, gen.Len())
	_, ok := gen.Registry().Position(items[2].ItemID)
	assert.False(t, ok)
	pos, ok := gen.Registry().Position(items[3].ItemID)
	require.True(t, ok)
	assert.Equal(t, 2, pos)
}

func TestRetiredGenerationReleasedAfterLastReader(t *testing.T) {
	m := newTestManager(t, &fakeEmbeddings{items: randomEmbeddings(1, 10)}, nil, nil)
	require.NoError(t, m.Rebuild(context.Background()))

	old, err := m.Acquire()
	require.NoError(t, err)

	require.NoError(t, m.Rebuild(context.Background()))
	assert.False(t, old.Released(), "generation must stay alive while a reader holds it")

	// поиск по удерживаемому поколению продолжает работать
	v, err := old.Index().Reconstruct(0)
	require.NoError(t, err)
	_, err = old.Index().Search(v, 3)
	require.NoError(t, err)

	old.Release()
	assert.True(t, old.Released())

	cur, err := m.Acquire()
	require.NoError(t, err)
	defer cur.Release()
	assert.NotEqual(t, old.ID(), cur.ID())
	assert.False(t, cur.Released())
}

func TestUnreadGenerationReleasedOnSwap(t *testing.T) {
	m := newTestManager(t, &fakeEmbeddings{items: randomEmbeddings(1, 10)}, nil, nil)
	require.NoError(t, m.Rebuild(context.Background()))

	first, err := m.Acquire()
	require.NoError(t, err)
	first.Release()

	require.NoError(t, m.Rebuild(context.Background()))
	assert.True(t, first.Released())
}

func TestConcurrentQueriesDuringSwap(t *testing.T) {
	src := &fakeEmbeddings{items: randomEmbeddings(1, 200)}
	m := newTestManager(t, src, nil, nil)
	require.NoError(t, m.Rebuild(context.Background()))

	var (
		wg       sync.WaitGroup
		failures atomic.Int64
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				gen, err := m.Acquire()
				if err != nil {
					failures.Add(1)
					return
				}
				v, err := gen.Index().Reconstruct((i + j) % gen.Len())
				if err == nil {
					_, err = gen.Index().Search(v, 5)
				}
				if err != nil {
					failures.Add(1)
				}
				gen.Release()
			}
		}()
	}

	for i := 0; i < 3; i++ {
		src.set(randomEmbeddings(int64(i+10), 200))
		require.NoError(t, m.Rebuild(context.Background()))
	}
	wg.Wait()

	assert.Zero(t, failures.Load())
}

func TestRebuildInProgress(t *testing.T) {
	src := &fakeEmbeddings{items: randomEmbeddings(1, 10), block: make(chan struct{})}
	m := newTestManager(t, src, nil, nil)

	done := make(chan error, 1)
	go func() { done <- m.Rebuild(context.Background()) }()

	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.calls == 1
	}, time.Second, time.Millisecond)

	err := m.Rebuild(context.Background())
	assert.ErrorIs(t, err, e.ErrRebuildInProgress)

	close(src.block)
	require.NoError(t, <-done)
}

func TestRebuildCancelledKeepsCurrent(t *testing.T) {
	src := &fakeEmbeddings{items: randomEmbeddings(1, 10)}
	m := newTestManager(t, src, nil, nil)
	require.NoError(t, m.Rebuild(context.Background()))
	before, _ := m.Acquire()
	before.Release()

	src.block = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Rebuild(ctx)
	assert.ErrorIs(t, err, e.ErrBuildFailed)
	assert.ErrorIs(t, err, context.Canceled)

	after, err := m.Acquire()
	require.NoError(t, err)
	defer after.Release()
	assert.Equal(t, before.ID(), after.ID())
}

func TestRebuildIsIdempotent(t *testing.T) {
	src := &fakeEmbeddings{items: randomEmbeddings(5, 100)}
	m := NewManager(testRebuildCfg(), vectorindex.Config{
		Strategy: vectorindex.StrategyHNSW, Dim: testDim, M: 8, EfConstruction: 32, EfSearch: 16, Seed: 1,
	}, src, &fakeCatalog{}, nil, nil, logger.NewNopLogger())

	search := func() [][]vectorindex.SearchResult {
		require.NoError(t, m.Rebuild(context.Background()))
		gen, err := m.Acquire()
		require.NoError(t, err)
		defer gen.Release()

		var out [][]vectorindex.SearchResult
		for pos := 0; pos < 10; pos++ {
			v, err := gen.Index().Reconstruct(pos)
			require.NoError(t, err)
			res, err := gen.Index().Search(v, 5)
			require.NoError(t, err)
			out = append(out, res)
		}
		return out
	}

	assert.Equal(t, search(), search())
}

func TestPersistAndLoadLatest(t *testing.T) {
	arts := &memoryArtifacts{}
	src := &fakeEmbeddings{items: randomEmbeddings(7, 60)}
	builder := newTestManager(t, src, arts, nil)
	require.NoError(t, builder.Rebuild(context.Background()))
	require.Equal(t, 1, arts.saves)

	built, err := builder.Acquire()
	require.NoError(t, err)
	defer built.Release()

	loader := newTestManager(t, &fakeEmbeddings{}, arts, nil)
	require.NoError(t, loader.LoadLatest(context.Background()))

	loaded, err := loader.Acquire()
	require.NoError(t, err)
	defer loaded.Release()

	assert.Equal(t, built.ID(), loaded.ID())
	assert.Equal(t, SourceArtifact, loaded.Source())
	assert.Equal(t, built.Registry().IDs(), loaded.Registry().IDs())

	for pos := 0; pos < 5; pos++ {
		q, err := built.Index().Reconstruct(pos)
		require.NoError(t, err)
		want, err := built.Index().Search(q, 10)
		require.NoError(t, err)
		got, err := loaded.Index().Search(q, 10)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestLoadLatestRejectsBrokenArtifacts(t *testing.T) {
	arts := &memoryArtifacts{}
	m := newTestManager(t, &fakeEmbeddings{items: randomEmbeddings(7, 20)}, arts, nil)
	require.NoError(t, m.Rebuild(context.Background()))
	good := arts.latest

	other := newTestManager(t, &fakeEmbeddings{items: randomEmbeddings(8, 20)[:15]}, &memoryArtifacts{}, nil)
	gen, err := other.Build(context.Background())
	require.NoError(t, err)
	foreign, err := EncodeArtifact(gen)
	require.NoError(t, err)

	cases := []struct {
		name string
		art  *Artifact
		want error
	}{
		{"missing mapping", &Artifact{GenerationID: good.GenerationID, Index: good.Index}, e.ErrArtifactIncomplete},
		{"missing index", &Artifact{GenerationID: good.GenerationID, Mapping: good.Mapping}, e.ErrArtifactIncomplete},
		{"foreign mapping", &Artifact{GenerationID: good.GenerationID, Index: good.Index, Mapping: foreign.Mapping}, e.ErrArtifactMismatch},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			loader := newTestManager(t, &fakeEmbeddings{}, &memoryArtifacts{latest: tc.art}, nil)
			err := loader.LoadLatest(context.Background())
			assert.ErrorIs(t, err, tc.want)
			assert.False(t, loader.Ready())
		})
	}
}

func TestBootstrapFallsBackToBuild(t *testing.T) {
	rc := testRebuildCfg()
	rc.LoadOnStart = true

	m := NewManager(rc, vectorindex.DefaultConfig(vectorindex.StrategyFlat, testDim),
		&fakeEmbeddings{items: randomEmbeddings(1, 10)}, &fakeCatalog{}, &memoryArtifacts{}, nil, logger.NewNopLogger())

	require.NoError(t, m.Bootstrap(context.Background()))
	gen, err := m.Acquire()
	require.NoError(t, err)
	defer gen.Release()
	assert.Equal(t, SourceBuild, gen.Source())
}

func TestBootstrapPrefersArtifact(t *testing.T) {
	arts := &memoryArtifacts{}
	seed := newTestManager(t, &fakeEmbeddings{items: randomEmbeddings(1, 10)}, arts, nil)
	require.NoError(t, seed.Rebuild(context.Background()))

	rc := testRebuildCfg()
	rc.LoadOnStart = true
	src := &fakeEmbeddings{items: randomEmbeddings(1, 10)}
	m := NewManager(rc, vectorindex.DefaultConfig(vectorindex.StrategyFlat, testDim),
		src, &fakeCatalog{}, arts, nil, logger.NewNopLogger())

	require.NoError(t, m.Bootstrap(context.Background()))
	gen, err := m.Acquire()
	require.NoError(t, err)
	defer gen.Release()
	assert.Equal(t, SourceArtifact, gen.Source())
	assert.Zero(t, src.calls)
}

func TestTriggerRebuildCoalesces(t *testing.T) {
	m := newTestManager(t, &fakeEmbeddings{}, nil, nil)
	assert.True(t, m.TriggerRebuild())
	assert.False(t, m.TriggerRebuild())
}

func TestRunRetriesFailedRebuild(t *testing.T) {
	src := &fakeEmbeddings{items: randomEmbeddings(1, 10), failures: 2}
	m := newTestManager(t, src, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	require.True(t, m.TriggerRebuild())
	require.Eventually(t, m.Ready, 2*time.Second, 5*time.Millisecond)

	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Equal(t, 3, src.calls)
}
