package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/jimlawless/whereami"
)

type Config struct {
	Http      *HTTPConfig
	Grpc      *GRPCConfig
	Db        *PGDBCfg
	Qdrant    *QdrantCfg
	Redis     *RedisCfg
	Minio     *MinIOCfg
	Kafka     *KafkaCfg
	Index     *IndexCfg
	Recommend *RecommendCfg
	Cache     *CacheCfg
	Rebuild   *RebuildCfg
	Log       *LogCfg
}

type HTTPConfig struct {
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	RateLimitRequests int           // 0 — без ограничения
	RateLimitWindow   time.Duration // окно для RateLimitRequests
}

type GRPCConfig struct {
	Port        string
	NetworkMode string
}

type PGDBCfg struct {
	Host          string
	Port          string
	User          string
	Password      string
	DBName        string
	SSLMode       string
	MaxConns      int
	MigrationsURL string // источник миграций golang-migrate
	ListenChannel string // канал LISTEN/NOTIFY изменений каталога, пусто — не слушать
}

type QdrantCfg struct {
	Port           int
	Host           string
	ApiKey         string
	CollectionName string // коллекция с эмбеддингами вариантов
	UseTLS         bool
	ScrollLimit    uint32 // размер страницы при выгрузке снимка
	IDPayloadKey   string // ключ payload с идентификатором варианта
}

type RedisCfg struct {
	Addr        string
	Password    string
	User        string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration
}

type MinIOCfg struct {
	Enabled           bool   // сохранять и загружать артефакты индекса
	MinioEndpoint     string // Адрес конечной точки Minio
	BucketName        string // Бакет для артефактов индекса
	MinioRootUser     string
	MinioRootPassword string
	MinioUseSSL       bool
	Prefix            string // префикс ключей поколений
}

type KafkaCfg struct {
	Brokers           []string // пусто — Kafka отключена
	CatalogTopic      string   // события изменения каталога
	EventsTopic       string   // публикация новых поколений индекса
	GroupID           string
	NetworkMode       string
	Partitions        int
	ReplicationFactor int
}

// Enabled сообщает, настроены ли брокеры.
func (k *KafkaCfg) Enabled() bool {
	return len(k.Brokers) > 0
}

type IndexCfg struct {
	Type            string // flat, ivf, hnsw
	Dim             int
	NList           int
	NProbe          int
	M               int
	EfConstruction  int
	EfSearch        int
	TrainIterations int
	Seed            int64
}

type RecommendCfg struct {
	DefaultK     int
	MaxK         int
	OverFetch    int // множитель дозапроса кандидатов
	MaxOverFetch int // потолок множителя при повторном поиске
	MaxBatch     int
}

type CacheCfg struct {
	Backend         string // redis, memory, none
	TTL             time.Duration
	Timeout         time.Duration // бюджет на одно обращение к кэшу
	CleanupInterval time.Duration
	BreakerFailures uint32        // подряд идущих ошибок до размыкания
	BreakerTimeout  time.Duration // время в разомкнутом состоянии
}

type RebuildCfg struct {
	Cron         string // пусто — без расписания
	Debounce     time.Duration
	MaxRetries   int
	BackoffBase  time.Duration
	BackoffMax   time.Duration
	BuildTimeout time.Duration
	LoadOnStart  bool // сначала пробовать последний артефакт
}

type LogCfg struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load безопасно загружает конфигурацию и возвращает ошибку в случае неудачи.
func Load(log logger.Logger) (*Config, error) {
	db, err := loadPGDBCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	http, err := loadHTTPConfig(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	redis, err := loadRedisCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minio, err := loadMinIOCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	qdrant, err := loadQdrantCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	kafka, err := loadKafkaCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	index, err := loadIndexCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	recommend, err := loadRecommendCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	cache, err := loadCacheCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	rebuild, err := loadRebuildCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	logCfg, err := LoadLogCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &Config{
		Http:      http,
		Grpc:      loadGRPCConfig(),
		Db:        db,
		Qdrant:    qdrant,
		Redis:     redis,
		Minio:     minio,
		Kafka:     kafka,
		Index:     index,
		Recommend: recommend,
		Cache:     cache,
		Rebuild:   rebuild,
		Log:       logCfg,
	}, nil
}

func loadKafkaCfg() (*KafkaCfg, error) {
	const (
		defaultPartitions        = 3
		defaultReplicationFactor = 1
		defaultNetworkMode       = "tcp"
		defaultCatalogTopic      = "catalog.changed"
		defaultEventsTopic       = "recommender.generations"
		defaultGroupID           = "recommender"
	)

	var brokers []string
	for _, b := range strings.Split(getEnv("KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	partitions, err := parseIntEnv("KAFKA_PARTITIONS", defaultPartitions)
	if err != nil {
		return nil, e.Wrap("KAFKA_PARTITIONS", err)
	}

	replicationFactor, err := parseIntEnv("REPLICATION_FACTOR", defaultReplicationFactor)
	if err != nil {
		return nil, e.Wrap("REPLICATION_FACTOR", err)
	}

	return &KafkaCfg{
		Brokers:           brokers,
		CatalogTopic:      getEnvOrDefault("KAFKA_CATALOG_TOPIC", defaultCatalogTopic),
		EventsTopic:       getEnvOrDefault("KAFKA_EVENTS_TOPIC", defaultEventsTopic),
		GroupID:           getEnvOrDefault("KAFKA_GROUP_ID", defaultGroupID),
		Partitions:        partitions,
		ReplicationFactor: replicationFactor,
		NetworkMode:       getEnvOrDefault("KAFKA_NETWORK_MODE", defaultNetworkMode),
	}, nil
}

func loadMinIOCfg(log logger.Logger) (*MinIOCfg, error) {
	const (
		defaultEnabled  = true
		defaultUseSSL   = false
		defaultEndpoint = "minio:9000"
		defaultBucket   = "recommender-index"
		defaultPrefix   = "generations"
	)

	enabled, err := parseBoolEnv("ARTIFACT_STORE_ENABLED", defaultEnabled)
	if err != nil {
		log.Errorf(err, "invalid ARTIFACT_STORE_ENABLED")
		return nil, err
	}

	useSSL, err := parseBoolEnv("MINIO_USE_SSL", defaultUseSSL)
	if err != nil {
		log.Errorf(err, "invalid MINIO_USE_SSL")
		return nil, err
	}

	return &MinIOCfg{
		Enabled:           enabled,
		MinioEndpoint:     getEnvOrDefault("MINIO_ENDPOINT", defaultEndpoint),
		BucketName:        getEnvOrDefault("MINIO_BUCKET", defaultBucket),
		MinioRootUser:     getEnv("MINIO_ROOT_USER"),
		MinioRootPassword: getEnv("MINIO_ROOT_PASSWORD"),
		MinioUseSSL:       useSSL,
		Prefix:            strings.Trim(getEnvOrDefault("MINIO_PREFIX", defaultPrefix), "/"),
	}, nil
}

func loadHTTPConfig(log logger.Logger) (*HTTPConfig, error) {
	const (
		defaultPort            = "8080"
		defaultReadTimeout     = 5 * time.Second
		defaultWriteTimeout    = 10 * time.Second
		defaultIdleTimeout     = 60 * time.Second
		defaultRateLimit       = 0
		defaultRateLimitWindow = time.Second
	)

	readTimeout, err := parseDurationEnv("HTTP_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("HTTP_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_WRITE_TIMEOUT")
		return nil, err
	}

	idleTimeout, err := parseDurationEnv("KEEP_ALIVE", defaultIdleTimeout)
	if err != nil {
		log.Errorf(err, "invalid KEEP_ALIVE")
		return nil, err
	}

	rateLimit, err := parseIntEnv("HTTP_RATE_LIMIT", defaultRateLimit)
	if err != nil {
		log.Errorf(err, "invalid HTTP_RATE_LIMIT")
		return nil, err
	}

	rateWindow, err := parseDurationEnv("HTTP_RATE_WINDOW", defaultRateLimitWindow)
	if err != nil {
		log.Errorf(err, "invalid HTTP_RATE_WINDOW")
		return nil, err
	}

	return &HTTPConfig{
		Port:              getEnvOrDefault("HTTP_PORT", defaultPort),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		RateLimitRequests: rateLimit,
		RateLimitWindow:   rateWindow,
	}, nil
}

func loadGRPCConfig() *GRPCConfig {
	const (
		defaultPort        = "8091"
		defaultNetworkMode = "tcp"
	)

	return &GRPCConfig{
		Port:        getEnvOrDefault("GRPC_PORT", defaultPort),
		NetworkMode: getEnvOrDefault("GRPC_NETWORK_MODE", defaultNetworkMode),
	}
}

func loadPGDBCfg(log logger.Logger) (*PGDBCfg, error) {
	const (
		defaultHost          = "localhost"
		defaultPort          = "5432"
		defaultSSLMode       = "disable"
		defaultMaxConns      = 4
		defaultMigrationsURL = "file://db/migrations"
		defaultListenChannel = "catalog_changed"
	)

	user := getEnv("POSTGRES_USER")
	if user == "" {
		err := fmt.Errorf("POSTGRES_USER is required")
		log.Errorf(err, "missing POSTGRES_USER")
		return nil, err
	}

	password := getEnv("POSTGRES_PASSWORD")
	if password == "" {
		err := fmt.Errorf("POSTGRES_PASSWORD is required")
		log.Errorf(err, "missing POSTGRES_PASSWORD")
		return nil, err
	}

	dbName := getEnv("POSTGRES_DB")
	if dbName == "" {
		err := fmt.Errorf("POSTGRES_DB is required")
		log.Errorf(err, "missing POSTGRES_DB")
		return nil, err
	}

	maxConns, err := parseIntEnv("POSTGRES_MAX_CONNS", defaultMaxConns)
	if err != nil {
		log.Errorf(err, "invalid POSTGRES_MAX_CONNS")
		return nil, err
	}

	return &PGDBCfg{
		Host:          getEnvOrDefault("POSTGRES_HOST", defaultHost),
		Port:          getEnvOrDefault("POSTGRES_PORT", defaultPort),
		User:          user,
		Password:      password,
		DBName:        dbName,
		SSLMode:       getEnvOrDefault("SSL_MODE", defaultSSLMode),
		MaxConns:      maxConns,
		MigrationsURL: getEnvOrDefault("MIGRATIONS_URL", defaultMigrationsURL),
		ListenChannel: os.Getenv("CATALOG_LISTEN_CHANNEL"),
	}, nil
}

func loadQdrantCfg(log logger.Logger) (*QdrantCfg, error) {
	const (
		defaultQdrantGRPCPort = 6334
		defaultUseTLS         = false
		defaultCollection     = "product_variants"
		defaultScrollLimit    = 1000
		defaultIDPayloadKey   = "variant_id"
	)

	port, err := parseIntEnv("QDRANT_GRPC_PORT", defaultQdrantGRPCPort)
	if err != nil {
		log.Errorf(err, "invalid QDRANT_GRPC_PORT")
		return nil, err
	}

	useTLS, err := parseBoolEnv("QDRANT_USE_TLS", defaultUseTLS)
	if err != nil {
		log.Errorf(err, "invalid QDRANT_USE_TLS")
		return nil, err
	}

	scrollLimit, err := parseIntEnv("QDRANT_SCROLL_LIMIT", defaultScrollLimit)
	if err != nil || scrollLimit <= 0 {
		err = fmt.Errorf("QDRANT_SCROLL_LIMIT must be positive: %w", e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid QDRANT_SCROLL_LIMIT")
		return nil, err
	}

	return &QdrantCfg{
		Host:           getEnvOrDefault("QDRANT_HOST", "localhost"),
		Port:           port,
		ApiKey:         getEnv("QDRANT__SERVICE__API_KEY"),
		CollectionName: getEnvOrDefault("QDRANT_COLLECTION", defaultCollection),
		UseTLS:         useTLS,
		ScrollLimit:    uint32(scrollLimit),
		IDPayloadKey:   getEnvOrDefault("QDRANT_ID_PAYLOAD_KEY", defaultIDPayloadKey),
	}, nil
}

func loadRedisCfg(log logger.Logger) (*RedisCfg, error) {
	const (
		defaultAddr         = "localhost:6379"
		defaultDB           = 0
		defaultMaxRetries   = 1
		defaultDialTimeout  = 2 * time.Second
		defaultReadTimeout  = 500 * time.Millisecond
		defaultWriteTimeout = 500 * time.Millisecond
	)

	db, err := parseIntEnv("REDIS_DB_ID", defaultDB)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DB_ID")
		return nil, err
	}

	maxRetries, err := parseIntEnv("REDIS_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid REDIS_MAX_RETRIES")
		return nil, err
	}

	dialTimeout, err := parseDurationEnv("REDIS_DIAL_TIMEOUT", defaultDialTimeout)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DIAL_TIMEOUT")
		return nil, err
	}

	readTimeout, err := parseDurationEnv("REDIS_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid REDIS_READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("REDIS_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid REDIS_WRITE_TIMEOUT")
		return nil, err
	}

	return &RedisCfg{
		Addr:        getEnvOrDefault("REDIS_ADDR", defaultAddr),
		Password:    getEnv("REDIS_PASSWORD"),
		User:        getEnv("REDIS_USER"),
		DB:          db,
		MaxRetries:  maxRetries,
		DialTimeout: dialTimeout,
		Timeout:     max(readTimeout, writeTimeout),
	}, nil
}

func loadIndexCfg(log logger.Logger) (*IndexCfg, error) {
	const (
		defaultType            = "flat"
		defaultDim             = 512
		defaultNList           = 100
		defaultNProbe          = 10
		defaultM               = 32
		defaultEfConstruction  = 40
		defaultEfSearch        = 16
		defaultTrainIterations = 25
		defaultSeed            = 42
	)

	indexType := strings.ToLower(getEnvOrDefault("INDEX_TYPE", defaultType))
	switch indexType {
	case "flat", "ivf", "hnsw":
	default:
		err := fmt.Errorf("INDEX_TYPE %q: %w", indexType, e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid INDEX_TYPE")
		return nil, err
	}

	c := &IndexCfg{Type: indexType}
	ints := []struct {
		key string
		def int
		dst *int
	}{
		{"INDEX_DIM", defaultDim, &c.Dim},
		{"INDEX_NLIST", defaultNList, &c.NList},
		{"INDEX_NPROBE", defaultNProbe, &c.NProbe},
		{"INDEX_HNSW_M", defaultM, &c.M},
		{"INDEX_HNSW_EF_CONSTRUCTION", defaultEfConstruction, &c.EfConstruction},
		{"INDEX_HNSW_EF_SEARCH", defaultEfSearch, &c.EfSearch},
		{"INDEX_TRAIN_ITERATIONS", defaultTrainIterations, &c.TrainIterations},
	}

	for _, v := range ints {
		n, err := parseIntEnv(v.key, v.def)
		if err != nil || n <= 0 {
			err = fmt.Errorf("%s must be a positive integer: %w", v.key, e.ErrIncorrectEnvVariable)
			log.Errorf(err, "invalid %s", v.key)
			return nil, err
		}
		*v.dst = n
	}

	seed, err := parseIntEnv("INDEX_SEED", defaultSeed)
	if err != nil {
		log.Errorf(err, "invalid INDEX_SEED")
		return nil, err
	}
	c.Seed = int64(seed)

	return c, nil
}

func loadRecommendCfg() (*RecommendCfg, error) {
	const (
		defaultK            = 10
		defaultMaxK         = 100
		defaultOverFetch    = 5
		defaultMaxOverFetch = 20
		defaultMaxBatch     = 50
	)

	c := &RecommendCfg{}
	var err error
	if c.DefaultK, err = parseIntEnv("RECOMMEND_DEFAULT_K", defaultK); err != nil {
		return nil, e.Wrap("RECOMMEND_DEFAULT_K", err)
	}
	if c.MaxK, err = parseIntEnv("RECOMMEND_MAX_K", defaultMaxK); err != nil {
		return nil, e.Wrap("RECOMMEND_MAX_K", err)
	}
	if c.OverFetch, err = parseIntEnv("RECOMMEND_OVERFETCH", defaultOverFetch); err != nil {
		return nil, e.Wrap("RECOMMEND_OVERFETCH", err)
	}
	if c.MaxOverFetch, err = parseIntEnv("RECOMMEND_MAX_OVERFETCH", defaultMaxOverFetch); err != nil {
		return nil, e.Wrap("RECOMMEND_MAX_OVERFETCH", err)
	}
	if c.MaxBatch, err = parseIntEnv("RECOMMEND_MAX_BATCH", defaultMaxBatch); err != nil {
		return nil, e.Wrap("RECOMMEND_MAX_BATCH", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate проверяет согласованность лимитов выдачи.
func (c *RecommendCfg) Validate() error {
	switch {
	case c.MaxK < 1:
		return fmt.Errorf("RECOMMEND_MAX_K must be >= 1: %w", e.ErrIncorrectEnvVariable)
	case c.DefaultK < 1 || c.DefaultK > c.MaxK:
		return fmt.Errorf("RECOMMEND_DEFAULT_K must be in [1, %d]: %w", c.MaxK, e.ErrIncorrectEnvVariable)
	case c.OverFetch < 1:
		return fmt.Errorf("RECOMMEND_OVERFETCH must be >= 1: %w", e.ErrIncorrectEnvVariable)
	case c.MaxOverFetch < c.OverFetch:
		return fmt.Errorf("RECOMMEND_MAX_OVERFETCH must be >= RECOMMEND_OVERFETCH: %w", e.ErrIncorrectEnvVariable)
	case c.MaxBatch < 1:
		return fmt.Errorf("RECOMMEND_MAX_BATCH must be >= 1: %w", e.ErrIncorrectEnvVariable)
	}
	return nil
}

func loadCacheCfg(log logger.Logger) (*CacheCfg, error) {
	const (
		defaultBackend         = "redis"
		defaultTTL             = time.Hour
		defaultTimeout         = 50 * time.Millisecond
		defaultCleanupInterval = time.Minute
		defaultBreakerFailures = 5
		defaultBreakerTimeout  = 10 * time.Second
	)

	backend := strings.ToLower(getEnvOrDefault("CACHE_BACKEND", defaultBackend))
	switch backend {
	case "redis", "memory", "none":
	default:
		err := fmt.Errorf("CACHE_BACKEND %q: %w", backend, e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid CACHE_BACKEND")
		return nil, err
	}

	ttl, err := parseDurationEnv("CACHE_TTL", defaultTTL)
	if err != nil || ttl <= 0 {
		err = fmt.Errorf("CACHE_TTL must be a positive duration: %w", e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid CACHE_TTL")
		return nil, err
	}

	timeout, err := parseDurationEnv("CACHE_TIMEOUT", defaultTimeout)
	if err != nil {
		log.Errorf(err, "invalid CACHE_TIMEOUT")
		return nil, err
	}

	cleanup, err := parseDurationEnv("CACHE_CLEANUP_INTERVAL", defaultCleanupInterval)
	if err != nil {
		log.Errorf(err, "invalid CACHE_CLEANUP_INTERVAL")
		return nil, err
	}

	failures, err := parseIntEnv("CACHE_BREAKER_FAILURES", defaultBreakerFailures)
	if err != nil || failures < 1 {
		err = fmt.Errorf("CACHE_BREAKER_FAILURES must be >= 1: %w", e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid CACHE_BREAKER_FAILURES")
		return nil, err
	}

	breakerTimeout, err := parseDurationEnv("CACHE_BREAKER_TIMEOUT", defaultBreakerTimeout)
	if err != nil {
		log.Errorf(err, "invalid CACHE_BREAKER_TIMEOUT")
		return nil, err
	}

	return &CacheCfg{
		Backend:         backend,
		TTL:             ttl,
		Timeout:         timeout,
		CleanupInterval: cleanup,
		BreakerFailures: uint32(failures),
		BreakerTimeout:  breakerTimeout,
	}, nil
}

func loadRebuildCfg(log logger.Logger) (*RebuildCfg, error) {
	const (
		defaultDebounce     = 5 * time.Second
		defaultMaxRetries   = 3
		defaultBackoffBase  = 2 * time.Second
		defaultBackoffMax   = time.Minute
		defaultBuildTimeout = 30 * time.Minute
		defaultLoadOnStart  = true
	)

	debounce, err := parseDurationEnv("REBUILD_DEBOUNCE", defaultDebounce)
	if err != nil {
		log.Errorf(err, "invalid REBUILD_DEBOUNCE")
		return nil, err
	}

	retries, err := parseIntEnv("REBUILD_MAX_RETRIES", defaultMaxRetries)
	if err != nil || retries < 0 {
		err = fmt.Errorf("REBUILD_MAX_RETRIES must be >= 0: %w", e.ErrIncorrectEnvVariable)
		log.Errorf(err, "invalid REBUILD_MAX_RETRIES")
		return nil, err
	}

	base, err := parseDurationEnv("REBUILD_BACKOFF_BASE", defaultBackoffBase)
	if err != nil {
		log.Errorf(err, "invalid REBUILD_BACKOFF_BASE")
		return nil, err
	}

	backoffMax, err := parseDurationEnv("REBUILD_BACKOFF_MAX", defaultBackoffMax)
	if err != nil {
		log.Errorf(err, "invalid REBUILD_BACKOFF_MAX")
		return nil, err
	}

	buildTimeout, err := parseDurationEnv("REBUILD_TIMEOUT", defaultBuildTimeout)
	if err != nil {
		log.Errorf(err, "invalid REBUILD_TIMEOUT")
		return nil, err
	}

	loadOnStart, err := parseBoolEnv("INDEX_LOAD_ON_START", defaultLoadOnStart)
	if err != nil {
		log.Errorf(err, "invalid INDEX_LOAD_ON_START")
		return nil, err
	}

	return &RebuildCfg{
		Cron:         getEnv("REBUILD_CRON"),
		Debounce:     debounce,
		MaxRetries:   retries,
		BackoffBase:  base,
		BackoffMax:   backoffMax,
		BuildTimeout: buildTimeout,
		LoadOnStart:  loadOnStart,
	}, nil
}

// LoadLogCfg читает настройки логирования. Вызывается до Load,
// чтобы логгер конфигурации уже писал в нужном формате.
func LoadLogCfg() (*LogCfg, error) {
	const (
		defaultLevel      = "info"
		defaultFormat     = "json"
		defaultMaxSizeMB  = 100
		defaultMaxBackups = 3
		defaultMaxAgeDays = 28
	)

	maxSize, err := parseIntEnv("LOG_MAX_SIZE_MB", defaultMaxSizeMB)
	if err != nil {
		return nil, e.Wrap("LOG_MAX_SIZE_MB", err)
	}
	maxBackups, err := parseIntEnv("LOG_MAX_BACKUPS", defaultMaxBackups)
	if err != nil {
		return nil, e.Wrap("LOG_MAX_BACKUPS", err)
	}
	maxAge, err := parseIntEnv("LOG_MAX_AGE_DAYS", defaultMaxAgeDays)
	if err != nil {
		return nil, e.Wrap("LOG_MAX_AGE_DAYS", err)
	}

	return &LogCfg{
		Level:      getEnvOrDefault("LOG_LEVEL", defaultLevel),
		Format:     getEnvOrDefault("LOG_FORMAT", defaultFormat),
		File:       getEnv("LOG_FILE"),
		MaxSizeMB:  maxSize,
		MaxBackups: maxBackups,
		MaxAgeDays: maxAge,
	}, nil
}

// getEnv возвращает значение переменной окружения.
// Возвращает пустую строку, если переменная не задана.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// parseDurationEnv считывает длительность или возвращает значение по умолчанию.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		return time.ParseDuration(v)
	}

	return defaultValue, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return intValue, nil
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return b, nil
}
