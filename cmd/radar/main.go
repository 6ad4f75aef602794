// cmd/radar/main.go

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Amro212/meme-radar/internal/adapter/ingest"
	"github.com/Amro212/meme-radar/internal/adapter/storage"
	"github.com/Amro212/meme-radar/internal/config"
	"github.com/Amro212/meme-radar/internal/metrics"
	"github.com/Amro212/meme-radar/internal/scheduler"
	"github.com/Amro212/meme-radar/internal/server"
	"github.com/Amro212/meme-radar/internal/service/analysis"
)

func main() {
	// Local development overrides; missing file is fine
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Initialize dependencies
	db, err := initDatabase(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	if err := storage.RunMigrations(cfg.Database.URL()); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	natsConn, err := initNATS(cfg.NATS, logger)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer natsConn.Close()

	// Initialize storage adapters
	windowStore := storage.NewWindowStore(db)
	candidateStore := storage.NewCandidateStore(db)
	clusterStore := storage.NewClusterStore(db)

	// Hot-reloadable analysis configuration
	loader, err := config.LoadAnalysis(cfg.AnalysisFile, logger)
	if err != nil {
		logger.Fatal("Failed to load analysis config", zap.Error(err))
	}
	acfg := loader.Current()

	// Image template identities survive restarts
	clusterer := analysis.NewClusterer(acfg.SimilarityThreshold)
	assignments, err := clusterStore.Load(ctx)
	if err != nil {
		logger.Fatal("Failed to load cluster assignments", zap.Error(err))
	}
	clusterer.Load(assignments)

	noise := analysis.NewNoiseFilter(acfg, logger)
	aggregator := analysis.NewAggregator(acfg, clusterer, noise, logger)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	engine := analysis.NewEngine(analysis.EngineOptions{
		Config:     loader.Current,
		Aggregator: aggregator,
		Clusterer:  clusterer,
		Noise:      noise,
		Windows:    windowStore,
		Candidates: candidateStore,
		Clusters:   clusterStore,
		Bus:        natsConn,
		Subject:    cfg.NATS.TrendsSubject,
		Logger:     logger,
	})
	loader.OnReload(engine.ApplyConfig)

	// Collector event stream
	consumer := ingest.NewConsumer(natsConn, cfg.NATS.EventsSubject, engine, m, logger)
	if err := consumer.Start(); err != nil {
		logger.Fatal("Failed to start event consumer", zap.Error(err))
	}

	// Periodic analysis passes
	passes := scheduler.New(engine, cfg.Scheduler.Interval, m, logger)
	if err := passes.Start(ctx); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// Initialize HTTP server
	httpServer := server.NewServer(
		cfg.Server,
		natsConn,
		cfg.NATS.TrendsSubject,
		candidateStore,
		registry,
		logger,
	)

	// Start HTTP server
	go func() {
		logger.Info("Starting HTTP server",
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	<-shutdown
	logger.Info("Shutdown signal received")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Graceful shutdown
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := consumer.Stop(); err != nil {
		logger.Error("Consumer shutdown error", zap.Error(err))
	}

	passes.Stop()

	logger.Info("Shutdown complete")
}

func newLogger(environment string) (*zap.Logger, error) {
	if environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// Initialize database connection
func initDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL())
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.MaxLifetime

	db, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Initialize NATS connection
func initNATS(cfg config.NATSConfig, logger *zap.Logger) (*nats.Conn, error) {
	options := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	return nats.Connect(cfg.URL, options...)
}
