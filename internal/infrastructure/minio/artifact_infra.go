package minio

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/internal/lifecycle"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/jitter"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
)

const (
	indexObject   = "index.bin"
	mappingObject = "mapping.json"
	latestObject  = "LATEST"

	cleanupAttempts = 3
	cleanupTimeout  = 30 * time.Second
)

// ObjectRepository — хранилище объектов по ключу.
type ObjectRepository interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// latestPointer — содержимое объекта LATEST
type latestPointer struct {
	GenerationID string    `json:"generation_id"`
	BuiltAt      time.Time `json:"built_at"`
}

// ArtifactInfrastructure сохраняет поколения индекса в MinIO: индекс и соответствие
// кладутся рядом под префиксом поколения, после чего переключается указатель LATEST.
type ArtifactInfrastructure struct {
	objects     ObjectRepository
	cfg         *cfg.MinIOCfg
	logger      logger.Logger
	shutdownCtx context.Context
	wg          sync.WaitGroup
	backoff     jitter.Backoff
}

func NewArtifactInfrastructure(objects ObjectRepository, cfg *cfg.MinIOCfg, logger logger.Logger, shutdownCtx context.Context) *ArtifactInfrastructure {
	return &ArtifactInfrastructure{
		objects:     objects,
		cfg:         cfg,
		logger:      logger,
		shutdownCtx: shutdownCtx,
		backoff:     jitter.Backoff{Base: time.Second, Max: 8 * time.Second, Factor: jitter.DefaultJitter},
	}
}

// Save загружает обе части артефакта параллельно. Если одна из них не загрузилась,
// уже загруженная удаляется в фоне, а LATEST не меняется.
func (a *ArtifactInfrastructure) Save(ctx context.Context, art *lifecycle.Artifact) error {
	const op = "ArtifactInfrastructure.Save"

	if art.GenerationID == "" || len(art.Index) == 0 || len(art.Mapping) == 0 {
		return e.Wrap(op, e.ErrArtifactIncomplete)
	}

	indexKey, mappingKey := a.key(art.GenerationID, indexObject), a.key(art.GenerationID, mappingObject)

	var (
		mu       sync.Mutex
		uploaded []string
	)
	g, gctx := errgroup.WithContext(ctx)
	upload := func(key string, data []byte, contentType string) func() error {
		return func() error {
			if err := a.objects.Put(gctx, key, data, contentType); err != nil {
				return fmt.Errorf("upload %s: %w", key, err)
			}
			mu.Lock()
			uploaded = append(uploaded, key)
			mu.Unlock()
			return nil
		}
	}
	g.Go(upload(indexKey, art.Index, "application/octet-stream"))
	g.Go(upload(mappingKey, art.Mapping, "application/json"))

	if err := g.Wait(); err != nil {
		a.CleanupKeys(uploaded)
		return e.Wrap(op, err)
	}

	pointer, err := json.Marshal(latestPointer{GenerationID: art.GenerationID, BuiltAt: art.BuiltAt})
	if err != nil {
		a.CleanupKeys(uploaded)
		return e.Wrap(op, err)
	}
	if err := a.objects.Put(ctx, a.key(latestObject), pointer, "application/json"); err != nil {
		a.CleanupKeys(uploaded)
		return e.Wrap(op, fmt.Errorf("update %s: %w", latestObject, err))
	}

	return nil
}

// LoadLatest читает поколение, на которое указывает LATEST.
func (a *ArtifactInfrastructure) LoadLatest(ctx context.Context) (*lifecycle.Artifact, error) {
	const op = "ArtifactInfrastructure.LoadLatest"

	raw, err := a.objects.Get(ctx, a.key(latestObject))
	if errors.Is(err, e.ErrObjectNotFound) {
		return nil, e.Wrap(op, e.ErrArtifactNotFound)
	}
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	var pointer latestPointer
	if err := json.Unmarshal(raw, &pointer); err != nil || pointer.GenerationID == "" {
		return nil, e.Wrap(op, fmt.Errorf("bad %s pointer: %w", latestObject, e.ErrArtifactIncomplete))
	}

	var index, mapping []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		index, err = a.objects.Get(gctx, a.key(pointer.GenerationID, indexObject))
		return err
	})
	g.Go(func() (err error) {
		mapping, err = a.objects.Get(gctx, a.key(pointer.GenerationID, mappingObject))
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, e.ErrObjectNotFound) {
			return nil, e.Wrap(op, fmt.Errorf("generation %s: %w", pointer.GenerationID, e.ErrArtifactIncomplete))
		}
		return nil, e.Wrap(op, err)
	}

	return &lifecycle.Artifact{
		GenerationID: pointer.GenerationID,
		BuiltAt:      pointer.BuiltAt,
		Index:        index,
		Mapping:      mapping,
	}, nil
}

// CleanupKeys запускает фоновое удаление объектов.
func (a *ArtifactInfrastructure) CleanupKeys(keys []string) {
	if len(keys) == 0 {
		return
	}
	a.wg.Add(1)
	go a.cleanupUploadedKeys(append([]string(nil), keys...))
}

// cleanupUploadedKeys удаляет объекты с экспоненциальной задержкой и jitter.
func (a *ArtifactInfrastructure) cleanupUploadedKeys(keys []string) {
	defer a.wg.Done()
	const op = "ArtifactInfrastructure.cleanupUploadedKeys"
	a.logger.Infof("%s: cleaning up %d orphaned objects", op, len(keys))

	ctx, cancel := context.WithTimeout(a.shutdownCtx, cleanupTimeout)
	defer cancel()

	for _, key := range keys {
		for attempt := 0; attempt < cleanupAttempts; attempt++ {
			err := a.objects.Delete(ctx, key)
			if err == nil {
				break
			}
			if attempt == cleanupAttempts-1 {
				a.logger.Warnf("giving up on orphaned object %s: %v", key, err)
				break
			}

			select {
			case <-time.After(a.backoff.Next(attempt)):
			case <-ctx.Done():
				a.logger.Warnf("cleanup interrupted by shutdown, key=%v", key)
				return
			}
		}
	}
}

// WaitForCleanup ожидает завершения фоновых удалений с учётом таймаута завершения приложения.
func (a *ArtifactInfrastructure) WaitForCleanup(shutdownTimeoutCtx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-shutdownTimeoutCtx.Done():
		return fmt.Errorf("minio cleanup timeout during shutdown: %w", shutdownTimeoutCtx.Err())
	}
}

func (a *ArtifactInfrastructure) key(parts ...string) string {
	return path.Join(append([]string{a.cfg.Prefix}, parts...)...)
}
