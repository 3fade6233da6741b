// Package lifecycle строит поколения индекса, атомарно подменяет текущее поколение
// и освобождает старое, когда его отпустит последний читатель.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DRSN-tech/recommender/internal/catalog"
	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/metrics"
	"github.com/DRSN-tech/recommender/internal/vectorindex"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
)

// EmbeddingSource отдаёт согласованный снимок всех эмбеддингов.
type EmbeddingSource interface {
	Snapshot(ctx context.Context) ([]domain.Embedding, error)
}

// CatalogSource отдаёт снимок атрибутов каталога.
type CatalogSource interface {
	LoadAll(ctx context.Context) ([]domain.CatalogAttributes, error)
}

// ArtifactRepository хранит сериализованные поколения.
type ArtifactRepository interface {
	Save(ctx context.Context, artifact *Artifact) error
	LoadLatest(ctx context.Context) (*Artifact, error)
}

// GenerationPublisher оповещает внешние системы о новом поколении.
type GenerationPublisher interface {
	PublishGeneration(ctx context.Context, info GenerationInfo) error
}

// Manager владеет текущим поколением индекса.
type Manager struct {
	mu      sync.RWMutex
	current *Generation

	buildMu sync.Mutex

	cfg        *cfg.RebuildCfg
	indexCfg   vectorindex.Config
	embeddings EmbeddingSource
	catalog    CatalogSource
	artifacts  ArtifactRepository  // nil — артефакты не сохраняются
	publisher  GenerationPublisher // nil — события не публикуются

	trigger chan struct{}

	subsMu      sync.Mutex
	subscribers []func(GenerationInfo)

	logger logger.Logger
}

func NewManager(
	rebuildCfg *cfg.RebuildCfg,
	indexCfg vectorindex.Config,
	embeddings EmbeddingSource,
	catalog CatalogSource,
	artifacts ArtifactRepository,
	publisher GenerationPublisher,
	logger logger.Logger,
) *Manager {
	return &Manager{
		cfg:        rebuildCfg,
		indexCfg:   indexCfg,
		embeddings: embeddings,
		catalog:    catalog,
		artifacts:  artifacts,
		publisher:  publisher,
		trigger:    make(chan struct{}, 1),
		logger:     logger,
	}
}

// Acquire возвращает текущее поколение с удержанием ссылки. Вызывающий обязан вызвать Release.
func (m *Manager) Acquire() (*Generation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return nil, e.ErrIndexUnavailable
	}
	m.current.acquire()
	return m.current, nil
}

// Ready сообщает, есть ли обслуживаемое поколение.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current != nil
}

// Subscribe регистрирует обработчик, вызываемый после каждой замены поколения.
func (m *Manager) Subscribe(fn func(GenerationInfo)) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// Build снимает данные с источников и строит поколение, не подменяя текущее.
func (m *Manager) Build(ctx context.Context) (*Generation, error) {
	const op = "Manager.Build"

	if m.embeddings == nil || m.catalog == nil {
		return nil, e.Wrap(op, e.ErrSourceNotConfigured)
	}

	embeddings, err := m.embeddings.Snapshot(ctx)
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("embedding snapshot: %w", err))
	}

	attrs, err := m.catalog.LoadAll(ctx)
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("catalog snapshot: %w", err))
	}
	m.logger.Infof("snapshot: %d embeddings, %d catalog rows", len(embeddings), len(attrs))

	gen, err := BuildGeneration(ctx, m.indexCfg, embeddings, catalog.NewStore(attrs), m.logger)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	return gen, nil
}

// Rebuild строит новое поколение и делает его текущим. При любой ошибке
// текущее поколение не меняется, а ошибка оборачивает ErrBuildFailed.
func (m *Manager) Rebuild(ctx context.Context) error {
	const op = "Manager.Rebuild"

	if !m.buildMu.TryLock() {
		return e.Wrap(op, e.ErrRebuildInProgress)
	}
	defer m.buildMu.Unlock()

	if m.cfg.BuildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.BuildTimeout)
		defer cancel()
	}

	start := time.Now()
	gen, err := m.Build(ctx)
	if err == nil && ctx.Err() != nil {
		gen.retire()
		err = ctx.Err()
	}
	if err != nil {
		metrics.RebuildsTotal.WithLabelValues("failed").Inc()
		m.logger.Errorf(err, "index rebuild failed, keeping current generation")
		return e.Wrap(op, fmt.Errorf("%w: %w", e.ErrBuildFailed, err))
	}

	m.swap(gen)
	metrics.RebuildsTotal.WithLabelValues("success").Inc()
	metrics.RebuildDuration.Observe(time.Since(start).Seconds())
	m.logger.Infof("generation %s is live: %d vectors, strategy %s, built in %s",
		gen.ID(), gen.Len(), gen.Strategy(), time.Since(start).Round(time.Millisecond))

	m.persist(ctx, gen)
	m.publish(ctx, gen)
	return nil
}

// LoadLatest подменяет текущее поколение последним сохранённым артефактом.
func (m *Manager) LoadLatest(ctx context.Context) error {
	const op = "Manager.LoadLatest"

	if m.artifacts == nil || m.catalog == nil {
		return e.Wrap(op, e.ErrSourceNotConfigured)
	}

	m.buildMu.Lock()
	defer m.buildMu.Unlock()

	art, err := m.artifacts.LoadLatest(ctx)
	if err != nil {
		return e.Wrap(op, err)
	}

	idx, reg, err := DecodeArtifact(art)
	if err != nil {
		return e.Wrap(op, err)
	}
	if idx.Dim() != m.indexCfg.Dim {
		return e.Wrap(op, fmt.Errorf("artifact has %d dims, configured %d: %w", idx.Dim(), m.indexCfg.Dim, e.ErrDimMismatch))
	}

	attrs, err := m.catalog.LoadAll(ctx)
	if err != nil {
		return e.Wrap(op, fmt.Errorf("catalog snapshot: %w", err))
	}

	gen := newGeneration(art.GenerationID, idx, reg, catalog.NewStore(attrs), art.BuiltAt, SourceArtifact)
	m.swap(gen)
	m.logger.Infof("generation %s loaded from artifact: %d vectors, strategy %s", gen.ID(), gen.Len(), gen.Strategy())
	return nil
}

// Bootstrap поднимает первое поколение: из артефакта, если разрешено, иначе сборкой.
func (m *Manager) Bootstrap(ctx context.Context) error {
	const op = "Manager.Bootstrap"

	if m.cfg.LoadOnStart && m.artifacts != nil {
		err := m.LoadLatest(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, e.ErrArtifactNotFound) {
			m.logger.Infof("no index artifact yet, building from sources")
		} else {
			m.logger.Warnf("failed to load index artifact, building from sources: %v", err)
		}
	}

	if err := m.Rebuild(ctx); err != nil {
		return e.Wrap(op, err)
	}
	return nil
}

// Close выводит текущее поколение из оборота.
func (m *Manager) Close() {
	m.mu.Lock()
	old := m.current
	m.current = nil
	m.mu.Unlock()

	if old != nil {
		old.retire()
	}
}

func (m *Manager) swap(gen *Generation) {
	m.mu.Lock()
	old := m.current
	m.current = gen
	m.mu.Unlock()

	metrics.GenerationVectors.Set(float64(gen.Len()))
	if old != nil {
		old.retire()
		m.logger.Debugf("generation %s retired", old.ID())
	}

	m.subsMu.Lock()
	subs := append([]func(GenerationInfo){}, m.subscribers...)
	m.subsMu.Unlock()

	info := gen.Info()
	for _, fn := range subs {
		fn(info)
	}
}

func (m *Manager) persist(ctx context.Context, gen *Generation) {
	if m.artifacts == nil {
		return
	}

	art, err := EncodeArtifact(gen)
	if err != nil {
		m.logger.Errorf(err, "failed to encode generation %s", gen.ID())
		return
	}
	if err := m.artifacts.Save(ctx, art); err != nil {
		m.logger.Warnf("generation %s is served but was not persisted: %v", gen.ID(), err)
		return
	}
	m.logger.Infof("generation %s persisted (%d bytes index, %d bytes mapping)", gen.ID(), len(art.Index), len(art.Mapping))
}

func (m *Manager) publish(ctx context.Context, gen *Generation) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.PublishGeneration(ctx, gen.Info()); err != nil {
		m.logger.Warnf("failed to publish generation %s: %v", gen.ID(), err)
	}
}
