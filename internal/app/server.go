package app

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/turtacn/LoreKit/internal/application/annotation"
	"github.com/turtacn/LoreKit/internal/config"
	"github.com/turtacn/LoreKit/internal/infrastructure/database/neo4j"
	"github.com/turtacn/LoreKit/internal/infrastructure/database/postgres"
	"github.com/turtacn/LoreKit/internal/infrastructure/database/redis"
	"github.com/turtacn/LoreKit/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/LoreKit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LoreKit/internal/infrastructure/monitoring/prometheus"
	grpcserver "github.com/turtacn/LoreKit/internal/interfaces/grpc"
	httpserver "github.com/turtacn/LoreKit/internal/interfaces/http"
	"github.com/turtacn/LoreKit/internal/interfaces/http/handlers"
	"github.com/turtacn/LoreKit/internal/interfaces/http/middleware"
)

// Server is the fully wired annotation server: the rule stack, the optional
// back-ends and the HTTP and gRPC listeners.
type Server struct {
	cfg    *config.Config
	logger logging.Logger

	Stack   *Stack
	HTTP    *httpserver.Server
	GRPC    *grpcserver.Server
	Metrics *prometheus.LoreMetrics

	watcher   *annotation.Watcher
	consumer  *kafka.RuleChangeConsumer
	closers   []func()
	closeOnce sync.Once
}

// NewServer connects every enabled back-end, builds the base parser and
// prepares the listeners.  Nothing is served until Run.
func NewServer(ctx context.Context, cfg *config.Config, version string, logger logging.Logger) (_ *Server, err error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &Server{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	var (
		rec        annotation.Recorder
		collector  prometheus.MetricsCollector
		httpRec    middleware.HTTPRecorder
		checkers   []handlers.HealthChecker
		svcOpts    []annotation.ServiceOption
		dirHandler *handlers.DirectoryHandler
	)

	if cfg.Metrics.Enabled {
		collector, err = prometheus.NewMetricsCollector(prometheus.CollectorConfig{
			Namespace:            cfg.Metrics.Namespace,
			EnableProcessMetrics: true,
			EnableGoMetrics:      true,
		}, logger)
		if err != nil {
			return nil, err
		}
		s.Metrics = prometheus.NewLoreMetrics(collector)
		rec = s.Metrics
		httpRec = s.Metrics
	}

	// Entity directory: Postgres or Neo4j per linking.backend, optionally
	// fronted by Redis.
	var dir annotation.Directory
	if cfg.Database.Enabled {
		pool, err := postgres.NewConnectionPool(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { postgres.Close(pool, logger) })
		checkers = append(checkers, &postgresHealthAdapter{pool: pool, logger: logger})
		if cfg.Linking.Backend == "postgres" {
			dir = postgres.NewDirectory(pool, logger)
		}
	}
	if cfg.Neo4j.Enabled {
		driver, err := neo4j.NewDriver(ctx, cfg.Neo4j, logger)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { closeQuietly(driver, logger, "neo4j") })
		checkers = append(checkers, &neo4jHealthAdapter{driver: driver})
		if cfg.Linking.Backend == "neo4j" {
			dir = neo4j.NewDirectory(driver, logger)
		}
	}
	if dir != nil && cfg.Redis.Enabled {
		client, err := redis.NewClient(cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { closeQuietly(client, logger, "redis") })
		checkers = append(checkers, &redisHealthAdapter{client: client})
		cache := redis.NewDirectoryCache(dir, client, logger,
			redis.WithKeyPrefix(cfg.Redis.KeyPrefix),
			redis.WithTTL(cfg.Redis.TTL),
			redis.WithNegativeTTL(cfg.Redis.NegativeTTL),
		)
		dir = cache
		dirHandler = handlers.NewDirectoryHandler(cache, logger)
	}
	if cfg.Linking.Enabled && dir != nil {
		strategies, err := annotation.ParseLinkStrategies(cfg.Linking.Strategies)
		if err != nil {
			return nil, err
		}
		svcOpts = append(svcOpts,
			annotation.WithDirectory(dir, strategies...),
			annotation.WithLinkTimeout(cfg.Linking.Timeout),
		)
	}

	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topic, kafka.EventTypeAnnotation, logger)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { closeQuietly(producer, logger, "kafka producer") })
		svcOpts = append(svcOpts, annotation.WithEventSink(producer))
	}

	source, err := NewRuleSource(cfg, logger)
	if err != nil {
		return nil, err
	}
	s.Stack, err = BuildStack(ctx, cfg, source, rec, logger, svcOpts...)
	if err != nil {
		return nil, err
	}
	svc := s.Stack.Service

	if cfg.Rules.Watch && cfg.Rules.Source == "dir" {
		s.watcher = annotation.NewWatcher(cfg.Rules.Dir, RuleFiles(cfg), svc, cfg.Rules.Debounce, logger)
	}
	if cfg.Kafka.Enabled && cfg.Kafka.RuleChanges {
		s.consumer, err = kafka.NewRuleChangeConsumer(cfg.Kafka, svc, logger)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { closeQuietly(s.consumer, logger, "kafka consumer") })
	}

	checkers = append(checkers, handlers.ReadyCheck("rules", svc.Ready))
	health := handlers.NewHealthHandler(version, checkers...)
	logger.Info("readiness checks registered", logging.Strings("checks", health.Names()))

	routerCfg := httpserver.RouterConfig{
		AnnotationHandler: handlers.NewAnnotationHandler(svc, logger, cfg.Server.HTTP.MaxBodyBytes),
		HealthHandler:     health,
		DirectoryHandler:  dirHandler,
		Logging:           middleware.DefaultLoggingConfig(),
		Logger:            logger,
		HTTPMetrics:       httpRec,
		MetricsCollector:  collector,
		MetricsPath:       cfg.Metrics.Path,
	}
	s.HTTP = httpserver.NewServer(cfg.Server.HTTP, httpserver.NewRouter(routerCfg), logger)

	if cfg.Server.GRPC.Enabled {
		opts := []grpcserver.Option{
			grpcserver.WithLogger(logger),
			grpcserver.WithGracefulTimeout(cfg.Server.HTTP.ShutdownTimeout),
		}
		if s.Metrics != nil {
			opts = append(opts, grpcserver.WithRecorder(s.Metrics))
		}
		s.GRPC, err = grpcserver.NewServer(cfg.Server.GRPC, opts...)
		if err != nil {
			return nil, err
		}
		s.GRPC.SetServing(svc.Ready())
	}
	return s, nil
}

// Run serves until ctx is cancelled or a listener fails, then shuts every
// listener down.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 4)
	var wg sync.WaitGroup
	spawn := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				s.logger.Error("component failed", logging.String("component", name), logging.Err(err))
				errCh <- err
			}
		}()
	}

	spawn("http", s.HTTP.Start)
	if s.GRPC != nil {
		spawn("grpc", s.GRPC.Start)
	}
	if s.watcher != nil {
		spawn("watcher", func() error { return s.watcher.Run(ctx) })
	}
	if s.consumer != nil {
		spawn("rule_changes", func() error { return s.consumer.Run(ctx) })
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	s.logger.Info("shutting down servers")
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), s.cfg.Server.HTTP.ShutdownTimeout)
	defer stopCancel()
	if err := s.HTTP.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	if s.GRPC != nil {
		_ = s.GRPC.Stop(stopCtx)
	}
	wg.Wait()
	s.Close()
	s.logger.Info("servers stopped")
	return runErr
}

// Close releases the back-end connections.  It is safe to call twice.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		for i := len(s.closers) - 1; i >= 0; i-- {
			s.closers[i]()
		}
	})
}

func closeQuietly(c io.Closer, logger logging.Logger, what string) {
	if err := c.Close(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("close failed", logging.String("component", what), logging.Err(err))
	}
}
