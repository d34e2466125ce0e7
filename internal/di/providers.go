package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"TickFuse/internal/domain/repository"
	"TickFuse/internal/handler/api"
	internalrepo "TickFuse/internal/repository"
	icache "TickFuse/internal/service/cache"
	"TickFuse/internal/services/normalize"
	"TickFuse/internal/services/quote"
	"TickFuse/internal/services/recognition"
	"TickFuse/internal/usecase"
	pkgcache "TickFuse/pkg/cache"
	pkgch "TickFuse/pkg/clickhouse"
	"TickFuse/pkg/config"
	pkgkafka "TickFuse/pkg/kafka"
	applogger "TickFuse/pkg/logger"
	"TickFuse/pkg/metrics"
	"TickFuse/pkg/queue"
	"TickFuse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	format := "json"
	if cfg.Environment == "development" {
		level = "debug"
		format = "console"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideParamsStore creates the runtime-tunable parameter store.
func ProvideParamsStore(cfg *config.Config) (*config.Store, error) {
	p := cfg.Engine.Clone()
	store, err := config.NewStore(p)
	if err != nil {
		return nil, fmt.Errorf("engine params: %w", err)
	}
	return store, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client when the backend
// needs one. Returns nil for pure-Kafka or backendless deployments
// without a configured host.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.ClickHouse.Host == "" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer when the backend is Kafka.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Backend.Type != "kafka" {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideClickHouseStorage creates the storage adapter and ensures the
// schema exists. Nil when no ClickHouse client is configured.
func ProvideClickHouseStorage(chClient *pkgch.Client, store *config.Store) (*internalrepo.ClickHouseStorage, error) {
	if chClient == nil {
		return nil, nil
	}
	s := internalrepo.NewClickHouseStorage(chClient, store.Current().Symbol)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return s, nil
}

// ProvideStorage adapts the concrete storage to the domain interface.
func ProvideStorage(s *internalrepo.ClickHouseStorage) repository.Storage {
	if s == nil {
		return nil
	}
	return s
}

// ProvideBarStore exposes sealed-bar reads when storage exists.
func ProvideBarStore(s *internalrepo.ClickHouseStorage) repository.BarStore {
	if s == nil {
		return nil
	}
	return s
}

// ProvidePublisher creates the Kafka publisher for engine outputs.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config, store *config.Store) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic, store.Current().Symbol)
}

// ProvideKafkaConsumer creates the mirror consumer. Only wired when the
// backend is Kafka, a consumer group is configured, and ClickHouse is
// available to mirror into.
func ProvideKafkaConsumer(cfg *config.Config, log *applogger.Logger, storage repository.Storage) (*pkgkafka.Consumer, error) {
	if cfg.Backend.Type != "kafka" || cfg.Kafka.Consumer.GroupID == "" || storage == nil {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(log,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideMirrorHandler stores consumed engine records into ClickHouse.
func ProvideMirrorHandler(cfg *config.Config, storage repository.Storage, m repository.Metrics) *usecase.KafkaMirrorHandler {
	if storage == nil {
		return nil
	}
	return usecase.NewKafkaMirrorHandler(cfg.Kafka.Topic, storage, m)
}

// ProvideRecognizer creates the primary capture client.
func ProvideRecognizer(cfg *config.Config) repository.Recognizer {
	return recognition.NewClient(cfg)
}

// ProvideQuoteFetcher creates the fallback quote client.
func ProvideQuoteFetcher(cfg *config.Config) repository.QuoteFetcher {
	return quote.NewClient(cfg)
}

// ProvideNormalizer creates the raw text normalizer.
func ProvideNormalizer(store *config.Store) *normalize.Normalizer {
	return normalize.New(store)
}

// ProvideEngine assembles the fusion engine with its full chain.
func ProvideEngine(
	store *config.Store,
	norm *normalize.Normalizer,
	recognizer repository.Recognizer,
	quotes repository.QuoteFetcher,
	pub repository.Publisher,
	storage repository.Storage,
	m repository.Metrics,
	cfg *config.Config,
	log *applogger.Logger,
) *usecase.Engine {
	rec := usecase.NewReconciler(store, m)
	agg := usecase.NewAggregator(store, m)
	scorer := usecase.NewScorer(store, m, usecase.DefaultRules())
	ledger := usecase.NewLedger(store)
	proc := usecase.NewOutputProcessor(pub, storage, m, cfg.Backend.Type)
	return usecase.NewEngine(store, norm, recognizer, quotes, rec, agg, scorer, ledger, proc, m, log)
}

// ProvideRedisCache creates the shared Redis cache when enabled.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	host, portStr, err := net.SplitHostPort(cfg.Cache.Addr)
	if err != nil {
		return nil, fmt.Errorf("cache.addr: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("cache.addr port: %w", err)
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Cache.Password),
		pkgcache.WithRedisDB(cfg.Cache.DB),
		pkgcache.WithRedisPrefix("tickfuse"),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideLogQueue creates the Redis-backed transport for aggregated logs.
func ProvideLogQueue(log *applogger.Logger, rc *pkgcache.RedisCache) *queue.RedisQueue {
	if rc == nil {
		return nil
	}
	return queue.NewRedisPublisher(log, rc.Client(), queue.WithKeyPrefix("tickfuse"))
}

// ProvideHTTPHandler builds the combined API surface.
func ProvideHTTPHandler(
	cfg *config.Config,
	log *applogger.Logger,
	engine *usecase.Engine,
	barStore repository.BarStore,
	rc *pkgcache.RedisCache,
) *server.Handlers {
	var bytesCache icache.BytesCache
	if rc != nil {
		bytesCache = icache.NewLayeredBytes(pkgcache.NewLayeredCache(rc))
	}
	eng := api.NewEngineEchoHandler(log, engine, barStore, bytesCache)
	stream := api.NewStreamEchoHandler(log, engine, time.Second)
	return &server.Handlers{Engine: eng, Stream: stream}
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	engine *usecase.Engine,
	handlers *server.Handlers,
	consumer *pkgkafka.Consumer,
	mirror *usecase.KafkaMirrorHandler,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	logQueue *queue.RedisQueue,
) *server.App {
	if consumer != nil && mirror != nil {
		consumer.WithConsumerHook(pkgkafka.NewLoggingHook(log))
		consumer.RegisterHandler(mirror)
	}
	if logQueue != nil {
		log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          "tickfuse.logs",
			Publisher:      logQueue,
		})
	}
	return server.New(cfg, log, engine, handlers, consumer, chClient, producer)
}
