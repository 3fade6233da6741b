package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	config "github.com/DRSN-tech/recommender/internal/cfg"
	v1Grpc "github.com/DRSN-tech/recommender/internal/delivery/v1/grpc"
	v1Http "github.com/DRSN-tech/recommender/internal/delivery/v1/http"
	"github.com/DRSN-tech/recommender/internal/infrastructure/kafka"
	"github.com/DRSN-tech/recommender/internal/infrastructure/listener"
	minioInfra "github.com/DRSN-tech/recommender/internal/infrastructure/minio"
	"github.com/DRSN-tech/recommender/internal/lifecycle"
	"github.com/DRSN-tech/recommender/internal/repository/memory"
	s3Repo "github.com/DRSN-tech/recommender/internal/repository/minio"
	"github.com/DRSN-tech/recommender/internal/repository/pgdb"
	pgdbConv "github.com/DRSN-tech/recommender/internal/repository/pgdb/converter"
	qdrantRepo "github.com/DRSN-tech/recommender/internal/repository/qdrant"
	"github.com/DRSN-tech/recommender/internal/repository/redis"
	redisConv "github.com/DRSN-tech/recommender/internal/repository/redis/converter"
	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/DRSN-tech/recommender/internal/vectorindex"
	"github.com/DRSN-tech/recommender/pkg/clients"
	"github.com/DRSN-tech/recommender/pkg/closer"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/DRSN-tech/recommender/pkg/postgres"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
)

const (
	initTimeout     = 10 * time.Second
	shutdownTimeout = 15 * time.Second
	topicTimeout    = 10 * time.Second
)

// App собирает зависимости сервиса и CLI-команд.
type App struct {
	cfg      *config.Config
	indexCfg vectorindex.Config
	logger   logger.Logger
	closer   *closer.Closer

	// фоновые задачи: ребилд, консьюмеры, очистка артефактов
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bgWg     sync.WaitGroup

	db         *postgres.PgDatabase
	embeddings *qdrantRepo.EmbeddingRepo
	catalog    *pgdb.CatalogRepo
}

func NewApp(cfg *config.Config, log logger.Logger) (*App, error) {
	indexCfg, err := IndexConfig(cfg.Index)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	return &App{
		cfg:      cfg,
		indexCfg: indexCfg,
		logger:   log,
		closer:   closer.NewCloser(0),
		bgCtx:    bgCtx,
		bgCancel: bgCancel,
	}, nil
}

// IndexConfig переводит настройки окружения в параметры векторного индекса.
func IndexConfig(c *config.IndexCfg) (vectorindex.Config, error) {
	strategy, err := vectorindex.ParseStrategy(c.Type)
	if err != nil {
		return vectorindex.Config{}, err
	}

	return vectorindex.Config{
		Strategy:        strategy,
		Dim:             c.Dim,
		NList:           c.NList,
		NProbe:          c.NProbe,
		M:               c.M,
		EfConstruction:  c.EfConstruction,
		EfSearch:        c.EfSearch,
		TrainIterations: c.TrainIterations,
		Seed:            c.Seed,
	}, nil
}

// Run поднимает HTTP и gRPC, запускает фоновые задачи и блокируется до сигнала или падения сервера.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer a.shutdown()

	if err := a.initSources(ctx); err != nil {
		return err
	}

	artifacts, err := a.initArtifacts(ctx, false)
	if err != nil {
		return err
	}

	cacheRepo, err := a.initCache(ctx)
	if err != nil {
		return err
	}

	var artifactRepo lifecycle.ArtifactRepository
	if artifacts != nil {
		artifactRepo = artifacts
	}

	manager := lifecycle.NewManager(a.cfg.Rebuild, a.indexCfg, a.embeddings, a.catalog, artifactRepo, a.initPublisher(), a.logger)
	a.closer.Add("index generation", func(context.Context) error {
		manager.Close()
		return nil
	})

	recUC := usecase.NewRecommendUC(manager, cacheRepo, a.cfg.Recommend, a.cfg.Cache, a.logger)

	grpcSrv := v1Grpc.NewGRPCServer(a.cfg.Grpc, a.logger)
	grpcSrv.RegisterServices(recUC, a.cfg.Recommend)
	manager.Subscribe(func(lifecycle.GenerationInfo) { grpcSrv.SetServing(true) })

	if err := a.startBackground(manager); err != nil {
		return err
	}

	grpcErrCh := make(chan error, 1)
	go func() {
		a.logger.Infof("gRPC server starting on %s:%s", a.cfg.Grpc.NetworkMode, a.cfg.Grpc.Port)
		if err := grpcSrv.Start(); err != nil {
			grpcErrCh <- err
		}
	}()
	a.closer.Add("grpc server", grpcSrv.Stop)

	router := v1Http.NewRouter(chi.NewRouter(), a.cfg.Http, a.logger)
	router.Init(recUC, manager, a.cfg.Recommend)
	httpSrv := v1Http.NewServer(router.Handler(), a.cfg.Http)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("HTTP server started on port %s", a.cfg.Http.Port)
		if err := httpSrv.Run(); err != nil {
			errCh <- err
		}
	}()
	a.closer.Add("http server", httpSrv.Stop)

	var appErr error
	select {
	case appErr = <-errCh:
		a.logger.Errorf(appErr, "HTTP server fatal error")
	case appErr = <-grpcErrCh:
		a.logger.Errorf(appErr, "gRPC server fatal error")
	case <-ctx.Done():
		a.logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	return appErr
}

// startBackground запускает воркер перестроения, первое поколение и источники событий каталога.
func (a *App) startBackground(manager *lifecycle.Manager) error {
	a.bgWg.Add(2)
	go func() {
		defer a.bgWg.Done()
		manager.Run(a.bgCtx)
	}()
	go func() {
		defer a.bgWg.Done()
		// пока поколения нет, сервис отвечает 503
		if err := manager.Bootstrap(a.bgCtx); err != nil {
			a.logger.Errorf(err, "initial index generation failed, waiting for the next rebuild")
		}
	}()
	a.closer.Add("background tasks", func(ctx context.Context) error {
		a.bgCancel()
		return waitGroup(ctx, &a.bgWg)
	})

	if a.cfg.Rebuild.Cron != "" {
		scheduler, err := lifecycle.NewScheduler(a.cfg.Rebuild.Cron, manager, a.logger)
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
		scheduler.Start()
		a.closer.Add("rebuild scheduler", scheduler.Stop)
	}

	if a.cfg.Kafka.Enabled() && a.cfg.Kafka.CatalogTopic != "" {
		consumer := kafka.NewCatalogConsumer(a.cfg.Kafka, manager, a.logger)
		consumer.Start(a.bgCtx)
		a.closer.Add("kafka consumer", func(context.Context) error { return consumer.Stop() })
	}

	if a.cfg.Db.ListenChannel != "" {
		l := listener.NewCatalogListener(a.db.Dsn, a.cfg.Db.ListenChannel, manager, a.logger)
		l.Start(a.bgCtx)
		a.closer.Add("catalog listener", func(context.Context) error {
			l.Stop()
			return nil
		})
	}

	return nil
}

// BuildIndex строит поколение из источников и сохраняет его артефактом. Текущий сервис не трогает.
func (a *App) BuildIndex(ctx context.Context) error {
	defer a.shutdown()

	if err := a.initSources(ctx); err != nil {
		return err
	}
	artifacts, err := a.initArtifacts(ctx, true)
	if err != nil {
		return err
	}

	manager := lifecycle.NewManager(a.cfg.Rebuild, a.indexCfg, a.embeddings, a.catalog, artifacts, nil, a.logger)

	start := time.Now()
	gen, err := manager.Build(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	art, err := lifecycle.EncodeArtifact(gen)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	if err := artifacts.Save(ctx, art); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	a.logger.Infof("generation %s saved: %d vectors, strategy %s, %s",
		gen.ID(), gen.Len(), gen.Strategy(), time.Since(start).Round(time.Millisecond))
	return nil
}

// Benchmark сравнивает flat, ivf и hnsw на текущем снимке эмбеддингов.
func (a *App) Benchmark(ctx context.Context, out io.Writer, queries, k int) error {
	defer a.shutdown()

	if err := a.initEmbeddings(ctx); err != nil {
		return err
	}

	embeddings, err := a.embeddings.Snapshot(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	_, vectors, err := lifecycle.PrepareVectors(embeddings, a.indexCfg.Dim, a.logger)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	configs := make([]vectorindex.Config, 0, 3)
	for _, s := range []vectorindex.Strategy{vectorindex.StrategyFlat, vectorindex.StrategyIVF, vectorindex.StrategyHNSW} {
		c := a.indexCfg
		c.Strategy = s
		configs = append(configs, c)
	}

	sample := vectorindex.SampleQueries(vectors, queries, a.indexCfg.Seed)
	results, err := vectorindex.Compare(ctx, configs, vectors, sample, k)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return writeBenchmark(out, results, k)
}

func writeBenchmark(out io.Writer, results []vectorindex.BenchmarkResult, k int) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "strategy\tvectors\tqueries\tbuild\tavg ms\tqps\trecall@%d\n", k)
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%.3f\t%.0f\t%.3f\n",
			r.Strategy, r.Vectors, r.Queries, r.BuildTime.Round(time.Millisecond), r.AvgLatencyMS, r.QPS, r.RecallAtK)
	}
	return tw.Flush()
}

func (a *App) initSources(ctx context.Context) error {
	db, err := initPGDB(ctx, a.logger, a.cfg)
	if err != nil {
		return err
	}
	a.closer.Add("postgres", func(context.Context) error {
		db.Close()
		return nil
	})
	a.db = db
	a.catalog = pgdb.NewCatalogRepo(db.Pool, pgdbConv.NewCatalogConverter(), a.logger)

	return a.initEmbeddings(ctx)
}

func (a *App) initEmbeddings(ctx context.Context) error {
	qdrantClient, err := clients.NewQdrantClient(a.cfg.Qdrant)
	if err != nil {
		a.logger.Errorf(err, "failed to initialize qdrant")
		return e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.Add("qdrant", func(context.Context) error { return qdrantClient.Close() })

	qdrantCtx, qdrantCancel := context.WithTimeout(ctx, initTimeout)
	defer qdrantCancel()
	if err := clients.EnsureCollection(qdrantCtx, qdrantClient, a.cfg.Index.Dim); err != nil {
		a.logger.Errorf(err, "failed to initialize qdrant")
		return e.Wrap(whereami.WhereAmI(), err)
	}

	a.embeddings = qdrantRepo.NewEmbeddingRepo(qdrantClient.Client, a.cfg.Qdrant, a.logger)
	return nil
}

// initArtifacts возвращает nil, если MinIO выключен и артефакты не обязательны.
func (a *App) initArtifacts(ctx context.Context, required bool) (*minioInfra.ArtifactInfrastructure, error) {
	if !a.cfg.Minio.Enabled {
		if required {
			return nil, e.Wrap(whereami.WhereAmI(), fmt.Errorf("MINIO_ENABLED is off: %w", e.ErrSourceNotConfigured))
		}
		a.logger.Infof("index artifacts disabled")
		return nil, nil
	}

	minioClient, err := clients.NewMinIOClient(a.cfg.Minio)
	if err != nil {
		a.logger.Errorf(err, "failed to initialize minio client")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minioCtx, minioCancel := context.WithTimeout(ctx, initTimeout)
	defer minioCancel()
	if err := clients.EnsureBucket(minioCtx, minioClient, a.cfg.Minio.BucketName); err != nil {
		a.logger.Errorf(err, "failed to initialize MinIO bucket")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	objects := s3Repo.NewObjectRepo(minioClient, a.cfg.Minio)
	// очистка не должна обрываться вместе с фоновыми задачами, её ограничивает WaitForCleanup
	artifacts := minioInfra.NewArtifactInfrastructure(objects, a.cfg.Minio, a.logger, context.WithoutCancel(a.bgCtx))
	a.closer.Add("minio cleanup", artifacts.WaitForCleanup)

	return artifacts, nil
}

// initCache возвращает nil при CACHE_BACKEND=none: выдача считается каждый раз.
func (a *App) initCache(ctx context.Context) (usecase.CacheRepository, error) {
	switch a.cfg.Cache.Backend {
	case "redis":
		redisClient := clients.NewRedisClient(a.cfg.Redis)
		a.closer.Add("redis", func(context.Context) error { return redisClient.Close() })

		redisCtx, redisCancel := context.WithTimeout(ctx, initTimeout)
		defer redisCancel()
		if err := redisClient.Ping(redisCtx); err != nil {
			// кэш не обязателен, сервис стартует в degraded
			a.logger.Warnf("redis is not reachable, starting with degraded cache: %v", err)
		}

		return redis.NewCacheRepo(redisClient, redisConv.NewRecommendationConverter(), a.cfg.Cache, a.logger), nil
	case "memory":
		repo := memory.NewCacheRepo(a.cfg.Cache)
		a.closer.Add("memory cache", func(context.Context) error { return repo.Close() })
		return repo, nil
	default:
		a.logger.Infof("recommendation cache disabled")
		return nil, nil
	}
}

// initPublisher возвращает nil, если Kafka не настроена.
func (a *App) initPublisher() lifecycle.GenerationPublisher {
	if !a.cfg.Kafka.Enabled() || a.cfg.Kafka.EventsTopic == "" {
		return nil
	}

	producer := kafka.NewProducer(a.logger, a.cfg.Kafka)
	for _, topic := range []string{a.cfg.Kafka.EventsTopic, a.cfg.Kafka.CatalogTopic} {
		if topic == "" {
			continue
		}
		if err := producer.EnsureTopic(topic, topicTimeout); err != nil {
			a.logger.Warnf("failed to ensure kafka topic %s: %v", topic, err)
		}
	}
	a.closer.Add("kafka producer", func(context.Context) error { return producer.Close() })

	return producer
}

func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	defer a.bgCancel()

	if err := a.closer.Close(ctx); err != nil {
		a.logger.Errorf(err, "shutdown finished with errors")
		return
	}
	a.logger.Infof("Application shutdown complete")
}

func initPGDB(ctx context.Context, logger logger.Logger, cfg *config.Config) (*postgres.PgDatabase, error) {
	connectCtx, cancel := context.WithTimeout(ctx, initTimeout)
	defer cancel()

	db, err := postgres.Connect(connectCtx, cfg.Db)
	if err != nil {
		logger.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.RunMigrations(logger); err != nil {
		db.Close()
		logger.Errorf(err, "failed to run migrations")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}

func waitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New("background tasks did not stop in time")
	}
}
