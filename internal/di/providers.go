package di

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"AutoTrader/internal/domain/models"
	"AutoTrader/internal/domain/repository"
	"AutoTrader/internal/handler/api"
	"AutoTrader/internal/llm/prompts"
	mid "AutoTrader/internal/middleware"
	internalrepo "AutoTrader/internal/repository"
	"AutoTrader/internal/service/ratelimit"
	"AutoTrader/internal/stream"
	"AutoTrader/internal/usecase"
	"AutoTrader/pkg/cache"
	pkgch "AutoTrader/pkg/clickhouse"
	"AutoTrader/pkg/config"
	xhttp "AutoTrader/pkg/http"
	pkgkafka "AutoTrader/pkg/kafka"
	applogger "AutoTrader/pkg/logger"
	"AutoTrader/pkg/metrics"
	"AutoTrader/pkg/queue"
	"AutoTrader/pkg/server"
)

// ProvideLogger builds the application logger tagged with the service name.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("service", cfg.Service), applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideValidator builds the domain validator with the configured symbol policy.
func ProvideValidator(cfg *config.Config) *models.Validator {
	return models.NewValidator(models.WithSymbolPolicy(cfg.SymbolPolicy()))
}

func ProvidePairRegistry(v *models.Validator, cfg *config.Config) (*usecase.PairRegistry, error) {
	return usecase.NewPairRegistry(v, cfg.Pairs)
}

// closeFunc adapts a Close method into a wire cleanup that logs failures.
func closeFunc(l *applogger.Logger, name string, close func() error) func() {
	return func() {
		if err := close(); err != nil {
			l.Warn("close error", applogger.String("client", name), applogger.Error(err))
		}
	}
}

func noop() {}

// ProvideClickHouseClient creates a ClickHouse client, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, noop, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, closeFunc(l, "clickhouse", client.Close), nil
}

// ProvideClickHouseStore creates the candle/signal store and its schema.
func ProvideClickHouseStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) (*internalrepo.ClickHouseStore, error) {
	if ch == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseStore(ch, cfg.ClickHouse.Database, l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse schema ready", applogger.String("db", cfg.ClickHouse.Database))
	return store, nil
}

// ProvideCandleStore exposes the ClickHouse store as a CandleStore. A missing
// store stays a nil interface.
func ProvideCandleStore(store *internalrepo.ClickHouseStore) repository.CandleStore {
	if store == nil {
		return nil
	}
	return store
}

// ProvideKafkaProducer creates a Kafka producer, or nil when no broker is configured.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.KafkaEnabled() {
		return nil, noop, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, closeFunc(l, "kafka producer", producer.Close), nil
}

func ProvideKafkaPublisher(producer *pkgkafka.Producer, cfg *config.Config) *internalrepo.KafkaPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.CandlesTopic, cfg.Kafka.SignalsTopic)
}

// ProvideRedisCache connects to Redis, or returns nil when disabled.
func ProvideRedisCache(cfg *config.Config, l *applogger.Logger) (*cache.RedisCache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, noop, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return rc, closeFunc(l, "redis", rc.Close), nil
}

// ProvideCache layers a memory cache over Redis, or falls back to memory only.
// The cleanup stops the memory layer; Redis has its own.
func ProvideCache(rc *cache.RedisCache, l *applogger.Logger) (cache.Service, func()) {
	var c cache.Service
	if rc == nil {
		c = cache.NewMemoryCache(
			cache.WithMemoryMaxSize(10000),
			cache.WithMemoryCleanup(time.Minute),
		)
	} else {
		c = cache.NewLayeredCache(rc,
			cache.WithLayeredMemorySize(1000),
			cache.WithLayeredMemoryTTL(5*time.Second),
		)
	}
	return c, closeFunc(l, "memory cache", c.Close)
}

func ProvideSignalCache(c cache.Service, cfg *config.Config) repository.SignalCache {
	return internalrepo.NewSignalCache(c, cfg.Redis.SignalTTL)
}

// ProvideHub creates the signal hub. Without CORS, websocket upgrades must
// come from the serving host.
func ProvideHub(cfg *config.Config, l *applogger.Logger) *stream.Hub {
	opts := []stream.Option{stream.WithBufferSize(64)}
	if !cfg.Server.CORS {
		opts = append(opts, stream.WithCheckOrigin(sameOrigin))
	}
	return stream.NewHub(l, opts...)
}

func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

// ProvideRateLimiter returns a per-IP limiter, or nil when rate limiting is off.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	rl := cfg.Server.RateLimit
	if rl.Burst <= 0 || rl.PerSecond <= 0 {
		return nil
	}
	return ratelimit.New(rl.Burst, rl.PerSecond)
}

// ProvideCandleProcessor creates the candle processor for the configured backend.
func ProvideCandleProcessor(
	v *models.Validator,
	pairs *usecase.PairRegistry,
	pub *internalrepo.KafkaPublisher,
	store repository.CandleStore,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) (*usecase.CandleProcessor, error) {
	var cp repository.CandlePublisher
	if pub != nil {
		cp = pub
	}
	return usecase.NewCandleProcessor(v, pairs, cp, store, m, cfg.Backend.Type, l)
}

// ProvideCandlePipeline buffers batches the backend could not take. With
// Redis available, overflow spills to a Redis list that survives restarts.
func ProvideCandlePipeline(
	proc *usecase.CandleProcessor,
	m repository.Metrics,
	rc *cache.RedisCache,
	cfg *config.Config,
	l *applogger.Logger,
) *mid.CandlePipeline {
	opts := []mid.PipelineOption{
		mid.WithBufferSize(cfg.Kafka.Consumer.BufferSize),
		mid.WithBackoff(cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
	}
	if rc != nil {
		spill := queue.NewRedisQueue(rc.Client(), "candles",
			queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"),
			queue.WithMaxLen(100000),
		)
		opts = append(opts, mid.WithSpill(spill, time.Second))
	}
	return mid.NewCandlePipeline(proc, m, l, opts...)
}

func ProvideCandlesUseCase(store repository.CandleStore, pairs *usecase.PairRegistry) *usecase.CandlesUseCase {
	return usecase.NewCandlesUseCase(store, pairs)
}

// ProvideSignalService wires every available signal sink.
func ProvideSignalService(
	v *models.Validator,
	pairs *usecase.PairRegistry,
	m repository.Metrics,
	l *applogger.Logger,
	pub *internalrepo.KafkaPublisher,
	store *internalrepo.ClickHouseStore,
	sc repository.SignalCache,
	hub *stream.Hub,
) *usecase.SignalService {
	opts := []usecase.SignalServiceOption{
		usecase.WithSignalCache(sc),
		usecase.WithSignalBroadcaster(hub),
	}
	if pub != nil {
		opts = append(opts, usecase.WithSignalPublisher(pub))
	}
	if store != nil {
		opts = append(opts, usecase.WithSignalStore(store))
	}
	return usecase.NewSignalService(v, pairs, m, l, opts...)
}

func ProvidePromptRenderer(v *models.Validator) *prompts.Renderer {
	return prompts.NewRenderer(v)
}

// ProvideKafkaConsumer creates the candles consumer that feeds ClickHouse. It
// is nil when Kafka, the consumer or the store is disabled.
func ProvideKafkaConsumer(
	cfg *config.Config,
	v *models.Validator,
	store repository.CandleStore,
	m repository.Metrics,
	l *applogger.Logger,
) (*pkgkafka.Consumer, error) {
	if !cfg.KafkaEnabled() || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	if store == nil {
		l.Warn("kafka consumer disabled: no candle store")
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	topic := cfg.Kafka.CandlesTopic
	consumer.RegisterHandler(usecase.NewKafkaCandlesHandler(topic, v, store, m))
	consumer.WithConsumerHook(pkgkafka.NewHookChain(usecase.NewValidationHook(topic, v, m)))
	return consumer, nil
}

// ProvideHandlers lists every HTTP handler. Readiness checks cover the
// clients that are configured.
func ProvideHandlers(
	cfg *config.Config,
	l *applogger.Logger,
	v *models.Validator,
	pairs *usecase.PairRegistry,
	pipeline *mid.CandlePipeline,
	candles *usecase.CandlesUseCase,
	signals *usecase.SignalService,
	hub *stream.Hub,
	renderer *prompts.Renderer,
	ch *pkgch.Client,
	rc *cache.RedisCache,
) []xhttp.Handler {
	checks := map[string]api.HealthCheck{}
	if ch != nil {
		checks["clickhouse"] = ch.Health
	}
	if rc != nil {
		checks["redis"] = rc.Health
	}
	return []xhttp.Handler{
		api.NewHealthHandler(cfg.Service, checks),
		api.NewValidateHandler(v, l),
		api.NewCandlesHandler(pipeline, candles, l),
		api.NewSignalsHandler(signals, hub, l),
		api.NewPairsHandler(pairs),
		api.NewPromptsHandler(renderer, l),
	}
}

func ProvideHTTPServer(cfg *config.Config, handlers []xhttp.Handler, limiter *ratelimit.Limiter, l *applogger.Logger) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(l),
	}
	if limiter != nil {
		opts = append(opts, xhttp.WithRateLimiter(limiter))
	}
	return xhttp.NewServer(handlers, opts...)
}

// ProvideApp creates the application server. Infrastructure clients are
// released by the injector's cleanup once the app has shut down.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	pipeline *mid.CandlePipeline,
	consumer *pkgkafka.Consumer,
	hub *stream.Hub,
	limiter *ratelimit.Limiter,
) *server.App {
	return server.New(cfg, l, srv, pipeline, consumer, hub, limiter)
}
