package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/stockroom-backend/api/routes"
	"github.com/angelmondragon/stockroom-backend/internal/approvals"
	"github.com/angelmondragon/stockroom-backend/internal/ledger"
	"github.com/angelmondragon/stockroom-backend/internal/pendingcount"
	"github.com/angelmondragon/stockroom-backend/internal/requests"
	"github.com/angelmondragon/stockroom-backend/internal/stock"
	"github.com/angelmondragon/stockroom-backend/pkg/config"
	"github.com/angelmondragon/stockroom-backend/pkg/db"
	"github.com/angelmondragon/stockroom-backend/pkg/feed"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
	"github.com/angelmondragon/stockroom-backend/pkg/metrics"
	"github.com/angelmondragon/stockroom-backend/pkg/migrate"
	"github.com/angelmondragon/stockroom-backend/pkg/outbox"
	"github.com/angelmondragon/stockroom-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	transport, closeFeed, err := feed.Open(context.Background(), cfg, redisClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to open change feed", err)
		os.Exit(1)
	}
	defer func() {
		if err := closeFeed(); err != nil {
			logg.Error(context.Background(), "error closing change feed", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	engineMetrics := metrics.NewEngineMetrics(registry)

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outboxRepo, logg)

	codes, err := requests.NewCodeIssuer(redisClient, cfg.Engine.RequestCodePrefix)
	if err != nil {
		logg.Error(context.Background(), "failed to create request code issuer", err)
		os.Exit(1)
	}

	requestsSvc, err := requests.NewService(requests.ServiceParams{
		Repository: requests.NewRepository(dbClient.DB()),
		Tx:         dbClient,
		Outbox:     outboxSvc,
		Codes:      codes,
		Logger:     logg,
		Timeout:    cfg.Engine.StoreTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create requests service", err)
		os.Exit(1)
	}

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	approvalsSvc, err := approvals.NewService(approvals.ServiceParams{
		Repository: approvals.NewRepository(dbClient.DB()),
		Ledger:     ledgerSvc,
		Tx:         dbClient,
		Outbox:     outboxSvc,
		Logger:     logg,
		Metrics:    engineMetrics,
		Timeout:    cfg.Engine.StoreTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create approvals service", err)
		os.Exit(1)
	}

	notifier, err := pendingcount.NewNotifier(pendingcount.Params{
		Counter:        pendingcount.NewRepository(dbClient.DB()),
		Source:         transport,
		Logger:         logg,
		Metrics:        engineMetrics,
		RequeryTimeout: cfg.Engine.RequeryTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pending-count notifier", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := notifier.Initialize(ctx); err != nil {
		logg.Error(ctx, "failed to initialize pending-count notifier", err)
		os.Exit(1)
	}
	defer func() {
		if err := notifier.Dispose(); err != nil {
			logg.Error(context.Background(), "error disposing pending-count notifier", err)
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"feed_driver": cfg.Feed.NormalizedDriver(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:    cfg,
			Logger:    logg,
			DB:        dbClient,
			Redis:     redisClient,
			Stock:     stock.NewRepository(dbClient.DB()),
			Requests:  requestsSvc,
			Approvals: approvalsSvc,
			Pending:   notifier,
			Gatherer:  registry,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// The in-memory feed only reaches subscribers inside this process, so the
	// relay has to run here too.
	var relay *outbox.Relay
	if cfg.Feed.NormalizedDriver() == config.FeedDriverMemory {
		relay, err = outbox.NewRelay(outbox.RelayParams{
			Config:     cfg.Outbox,
			Logger:     logg,
			DB:         dbClient,
			Repository: outboxRepo,
			Publisher:  transport,
			Metrics:    engineMetrics,
		})
		if err != nil {
			logg.Error(ctx, "failed to create in-process outbox relay", err)
			os.Exit(1)
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if relay != nil {
		group.Go(func() error {
			if err := relay.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "api server shut down gracefully")
}
