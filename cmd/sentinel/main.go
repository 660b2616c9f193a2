package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"token-sentinel/internal/cache"
	"token-sentinel/internal/classifier"
	"token-sentinel/internal/config"
	"token-sentinel/internal/dispatch"
	"token-sentinel/internal/engine"
	"token-sentinel/internal/observability"
	"token-sentinel/internal/provider"
	"token-sentinel/internal/provider/stub"
	"token-sentinel/internal/service"
	"token-sentinel/internal/storage"
	chstore "token-sentinel/internal/storage/clickhouse"
	"token-sentinel/internal/storage/memory"
	pgstore "token-sentinel/internal/storage/postgres"
	"token-sentinel/internal/stream"
	"token-sentinel/internal/tracker"
)

func main() {
	wsEndpoint := flag.String("ws-endpoint", "", "Transaction stream WebSocket endpoint")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string for wallet states")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse DSN for the alert delivery log (empty to disable)")
	redisURL := flag.String("redis-url", "", "Redis URL for caching and dedup markers")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage and cache instead of PostgreSQL/Redis")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")
	mints := flag.String("mints", "", "Comma-separated mints to track in addition to the registry")

	cfg := config.Default()
	flag.Float64Var(&cfg.TeamThresholdPercent, "team-threshold", cfg.TeamThresholdPercent, "Holder percentage for team role")
	flag.DurationVar(&cfg.SniperWindow, "sniper-window", cfg.SniperWindow, "Sniper buy window after listing")
	flag.DurationVar(&cfg.InsiderWindow, "insider-window", cfg.InsiderWindow, "Insider buy window after listing")
	flag.IntVar(&cfg.QueueCapacity, "queue-capacity", cfg.QueueCapacity, "Alert queue size")
	flag.DurationVar(&cfg.SendDelay, "send-delay", cfg.SendDelay, "Minimum spacing between alert deliveries")
	flag.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "Reclassification sweep interval")
	flag.IntVar(&cfg.WorkerLimit, "worker-limit", cfg.WorkerLimit, "Concurrent notification handlers")

	flag.Parse()

	logger := log.New(os.Stdout, "[sentinel] ", log.LstdFlags|log.Lshortfile)

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	if *wsEndpoint == "" {
		logger.Fatal("--ws-endpoint is required")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err := run(ctx, logger, cfg, *wsEndpoint, *postgresDSN, *clickhouseDSN, *redisURL, *useMemory, *mints)

	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

func run(ctx context.Context, logger *log.Logger, cfg config.Config, wsEndpoint, postgresDSN, clickhouseDSN, redisURL string, useMemory bool, mints string) error {
	// Cache: Redis when configured, in-memory otherwise.
	var c cache.Cache = cache.NewMemory()
	if !useMemory && redisURL != "" {
		redisCache, err := cache.NewRedis(ctx, redisURL)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer redisCache.Close()
		c = redisCache
	}

	// Wallet state storage.
	var stateStore storage.WalletStateStore = memory.NewWalletStateStore()
	if !useMemory {
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()
		stateStore = pgstore.NewWalletStateStore(pool)
	}

	// Alert delivery log, optional.
	var alertLog storage.AlertLogStore
	if clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, clickhouseDSN)
		if err != nil {
			return fmt.Errorf("connect to clickhouse: %w", err)
		}
		defer conn.Close()
		alertLog = chstore.NewAlertLogStore(conn)
	}

	// Upstream providers and the notification transport plug in here; until
	// they are wired this binary runs against the in-memory stubs.
	data := stub.NewDataProvider()
	registry := stub.NewRegistry()
	var notifier provider.Notifier = &stub.Notifier{}

	tr := tracker.New(stateStore, data, tracker.Options{
		YellowThreshold: cfg.YellowThreshold,
		RedThreshold:    cfg.RedThreshold,
		Logger:          logger,
	})

	cls := classifier.New(data, data, data, data, c, tr, classifier.Options{
		TeamThresholdPercent: cfg.TeamThresholdPercent,
		SniperWindow:         cfg.SniperWindow,
		InsiderWindow:        cfg.InsiderWindow,
		MaxHolders:           cfg.MaxHoldersPerMint,
		CacheTTL:             cfg.ClassificationTTL,
		Logger:               logger,
	})

	dispatcher := dispatch.New(c, notifier, alertLog, dispatch.Options{
		QueueCapacity: cfg.QueueCapacity,
		SendDelay:     cfg.SendDelay,
		DedupTTL:      cfg.DedupTTL,
		DrainTimeout:  cfg.DrainTimeout,
		Logger:        logger,
	})

	eng := engine.New(cls, tr, dispatcher, registry, stateStore, c, engine.Options{
		ProcessedTxTTL: cfg.ProcessedTxTTL,
		SweepInterval:  cfg.SweepInterval,
		WorkerLimit:    cfg.WorkerLimit,
		Logger:         logger,
	})

	mgr := stream.New(wsEndpoint, eng.HandleStreamPayload, stream.Options{
		HeartbeatInterval: cfg.HeartbeatInterval,
		HeartbeatTimeout:  cfg.HeartbeatTimeout,
		ReceiveTimeout:    cfg.ReceiveTimeout,
		ReconnectDelay:    cfg.ReconnectDelay,
		AckTimeout:        cfg.AckTimeout,
		MaxFilterSize:     cfg.MaxFilterSize,
		Logger:            logger,
	})

	svc := service.New(service.Options{
		Engine:     eng,
		Stream:     mgr,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	for _, mint := range strings.Split(mints, ",") {
		mint = strings.TrimSpace(mint)
		if mint != "" {
			svc.AddTrackedMint(mint)
		}
	}

	logger.Println("Starting token sentinel...")
	return svc.Run(ctx)
}
