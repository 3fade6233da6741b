package lifecycle

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/DRSN-tech/recommender/internal/catalog"
	"github.com/DRSN-tech/recommender/internal/metrics"
	"github.com/DRSN-tech/recommender/internal/registry"
	"github.com/DRSN-tech/recommender/internal/vectorindex"
)

// Source — откуда взялось поколение
type Source string

const (
	SourceBuild    Source = "build"
	SourceArtifact Source = "artifact"
)

// Generation — неизменяемый набор индекса, реестра и каталога, построенных из одного снимка.
// Читатели держат ссылку между Manager.Acquire и Release.
type Generation struct {
	id       string
	index    vectorindex.Index
	registry *registry.Registry
	catalog  *catalog.Store
	builtAt  time.Time
	source   Source

	refs        atomic.Int64
	retired     atomic.Bool
	released    atomic.Bool
	releaseOnce sync.Once
}

func newGeneration(id string, idx vectorindex.Index, reg *registry.Registry, cat *catalog.Store, builtAt time.Time, source Source) *Generation {
	metrics.GenerationsLive.Inc()
	return &Generation{
		id:       id,
		index:    idx,
		registry: reg,
		catalog:  cat,
		builtAt:  builtAt,
		source:   source,
	}
}

func (g *Generation) ID() string                     { return g.id }
func (g *Generation) Index() vectorindex.Index       { return g.index }
func (g *Generation) Registry() *registry.Registry   { return g.registry }
func (g *Generation) Catalog() *catalog.Store        { return g.catalog }
func (g *Generation) BuiltAt() time.Time             { return g.builtAt }
func (g *Generation) Source() Source                 { return g.source }
func (g *Generation) Strategy() vectorindex.Strategy { return g.index.Strategy() }
func (g *Generation) Len() int                       { return g.index.Len() }

// Info возвращает сводку поколения для событий и статистики.
func (g *Generation) Info() GenerationInfo {
	return GenerationInfo{
		ID:          g.id,
		Strategy:    g.index.Strategy(),
		Vectors:     g.index.Len(),
		Dim:         g.index.Dim(),
		CatalogSize: g.catalog.Len(),
		Fingerprint: g.registry.Fingerprint(),
		BuiltAt:     g.builtAt,
		Source:      g.source,
	}
}

// Release отпускает ссылку, полученную через Manager.Acquire.
func (g *Generation) Release() {
	if g.refs.Add(-1) == 0 && g.retired.Load() {
		g.release()
	}
}

// Released сообщает, что поколение выведено из оборота и все читатели его отпустили.
func (g *Generation) Released() bool {
	return g.released.Load()
}

func (g *Generation) acquire() {
	g.refs.Add(1)
}

// retire вызывается после замены поколения; новых читателей у него уже не будет.
func (g *Generation) retire() {
	g.retired.Store(true)
	if g.refs.Load() == 0 {
		g.release()
	}
}

func (g *Generation) release() {
	g.releaseOnce.Do(func() {
		g.released.Store(true)
		metrics.GenerationsLive.Dec()
	})
}

// GenerationInfo — сводка поколения
type GenerationInfo struct {
	ID          string
	Strategy    vectorindex.Strategy
	Vectors     int
	Dim         int
	CatalogSize int
	Fingerprint uint64
	BuiltAt     time.Time
	Source      Source
}
