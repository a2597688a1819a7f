package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/xela07ax/trust-center/internal/audit"
	"github.com/xela07ax/trust-center/internal/connectors"
	"github.com/xela07ax/trust-center/internal/console/handler"
	"github.com/xela07ax/trust-center/internal/console/server"
	"github.com/xela07ax/trust-center/internal/console/service"
	"github.com/xela07ax/trust-center/internal/domain"
	"github.com/xela07ax/trust-center/internal/engine"
	"github.com/xela07ax/trust-center/internal/infra"
	"github.com/xela07ax/trust-center/internal/infra/auth"
	"github.com/xela07ax/trust-center/internal/repository/postgres"
	"github.com/xela07ax/trust-center/internal/repository/redisstore"
	"github.com/xela07ax/trust-center/internal/risk"
)

// journalStore: хранилище журнала, из которого еще и читаем (API /loads).
type journalStore interface {
	audit.StorageInterface
	service.LoadEventProvider
}

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfigFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("trust center stopped with error", zap.Error(err))
	}
	logger.Info("trust center exited properly")
}

func run(cfg *infra.Config, logger *zap.Logger) error {
	// Контекст для управления жизненным циклом фоновых горутин
	// При SIGINT/SIGTERM отмена остановит таймер, слушателей и серверы
	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger = logger.With(zap.String("instance", cfg.InstanceID))

	// 2. Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := engine.NewMetrics(reg)

	// 3. Журнал загрузок: PostgreSQL, если настроен, иначе память
	store, closeStore, err := openJournalStore(appCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	journal := audit.NewJournal(store, audit.Config{
		BufferSize:    cfg.Journal.BufferSize,
		BatchSize:     cfg.Journal.BatchSize,
		FlushInterval: cfg.Journal.FlushInterval,
		Instance:      cfg.InstanceID,
	}, metrics.JournalBufferFill, logger)
	journal.Start()
	defer journal.Stop()

	// 4. Redis (опционально): L2-кэш снапшота, алерты, сигналы перезагрузки
	var (
		rdb         *redis.Client
		cache       *redisstore.SnapshotStore
		alerts      risk.AlertPublisher
		broadcaster service.RefreshBroadcaster
	)
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(appCtx, 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable at startup, will keep retrying in background", zap.Error(err))
		}
		cancel()

		cache = redisstore.NewSnapshotStore(rdb, cfg.Redis.SnapshotTTL, cfg.InstanceID, logger)
		alerts = redisstore.NewAlertPublisher(rdb)
		broadcaster = redisstore.NewRefreshBroadcaster(rdb, cfg.InstanceID)
	}

	// 5. Источник артефактов + надежность (Retries, Circuit Breaker, Rate limit)
	rawSource, err := connectors.FromConfig(cfg.Source)
	if err != nil {
		return err
	}
	source := engine.NewReliableSource(rawSource, engine.ReliabilityConfig{
		Attempts:       cfg.Source.RetryAttempts,
		RequestTimeout: cfg.Source.RequestTimeout,
		RateLimit:      cfg.Source.RateLimit,
		RateBurst:      cfg.Source.RateBurst,
		BreakerTimeout: cfg.Source.CBTimeout,
		BreakerFails:   cfg.Source.CBFailures,
	}, metrics, logger)

	// 6. Ядро: агрегатор и подписчики на публикацию
	health := engine.NewHealthServer()
	notifiers := []engine.Notifier{health, risk.NewAnalyzer(alerts, logger)}
	if cache != nil {
		notifiers = append(notifiers, cache)
	}
	aggregator := engine.NewAggregator(source, logger,
		engine.WithMetrics(metrics),
		engine.WithJournal(journal),
		engine.WithNotifiers(notifiers...),
	)

	// Прогрев из Redis, чтобы API отвечал еще до первой загрузки
	if cache != nil {
		warmCtx, cancel := context.WithTimeout(appCtx, 3*time.Second)
		_ = engine.WarmupSnapshot(warmCtx, cache, logger, func(s *domain.Snapshot) bool {
			if !aggregator.Restore(s) {
				return false
			}
			health.MarkServing()
			return true
		})
		cancel()
	}

	refresher := engine.NewRefresher(aggregator, cfg.Source.RefreshInterval, engine.SystemClock{}, logger)

	// 7. Сессии и API
	decoder, err := newDecoder(cfg.Auth)
	if err != nil {
		return err
	}
	trustSvc := service.NewTrustService(aggregator, broadcaster, logger)
	authSvc := service.NewAuthService(cfg.Auth.IssuerURL, &http.Client{Timeout: cfg.Auth.IssuerTimeout}, decoder, logger)
	api := server.NewConsoleServer(logger,
		server.Options{
			Decoder:        decoder,
			Ready:          func() bool { return aggregator.Snapshot() != nil },
			Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			AllowedOrigins: cfg.Server.AllowedOrigins,
		},
		handler.NewAuthHandler(authSvc, logger),
		handler.NewTrustHandler(trustSvc, logger),
		handler.NewJournalHandler(service.NewJournalService(store)),
	)

	httpSrv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.Port)),
		Handler:      api,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(engine.UnaryTracingInterceptor(logger)))
	health.Register(grpcSrv)

	// 8. Запуск
	g, ctx := errgroup.WithContext(appCtx)

	g.Go(func() error {
		refresher.Run(ctx)
		return nil
	})

	if rdb != nil {
		g.Go(func() error {
			engine.ListenResilient(ctx, rdb, logger, infra.RedisChanSnapshotRefresh, nil,
				engine.RefreshSignalHandler(cfg.InstanceID, refresher, logger))
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Trust Center API started", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		lis, err := net.Listen("tcp", net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.GRPCPort)))
		if err != nil {
			return fmt.Errorf("failed to listen gRPC: %w", err)
		}
		logger.Info("gRPC health server started", zap.String("addr", lis.Addr().String()))
		if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	// 9. Graceful Shutdown
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Trust Center stopping...")
		health.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", zap.Error(err))
		}
		grpcSrv.GracefulStop()
		return nil
	})

	return g.Wait()
}

func openJournalStore(ctx context.Context, cfg *infra.Config, logger *zap.Logger) (journalStore, func(), error) {
	if cfg.Database.URL == "" {
		logger.Info("database.url is empty, load journal kept in memory", zap.Int("limit", cfg.Journal.MemoryLimit))
		return audit.NewMemoryStore(cfg.Journal.MemoryLimit), func() {}, nil
	}

	repo, err := postgres.NewJournalRepo(cfg.Database.URL, int(cfg.Database.MaxConns), int(cfg.Database.MinConns))
	if err != nil {
		return nil, nil, err
	}
	// Проверяем соединение с таймаутом
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := repo.Ping(pingCtx); err != nil {
		repo.Close()
		return nil, nil, fmt.Errorf("database unreachable: %w", err)
	}
	if err := repo.Migrate(pingCtx); err != nil {
		repo.Close()
		return nil, nil, err
	}
	return repo, func() { repo.Close() }, nil
}

func newDecoder(cfg infra.AuthConfig) (*auth.Decoder, error) {
	if len(cfg.PublicKey) == 0 {
		return auth.NewDecoder(nil, nil).WithLeeway(cfg.Leeway), nil
	}
	key, err := auth.ParseRSAPublicKey(cfg.PublicKey)
	if err != nil {
		return nil, err
	}
	return auth.NewDecoder(key, nil).WithLeeway(cfg.Leeway), nil
}
