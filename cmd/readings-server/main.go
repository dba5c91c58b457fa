package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/BrandonDHaskell/readings/internal/config"
	"github.com/BrandonDHaskell/readings/internal/db"
	"github.com/BrandonDHaskell/readings/internal/grpcapi"
	"github.com/BrandonDHaskell/readings/internal/httpapi"
	"github.com/BrandonDHaskell/readings/internal/logging"
	"github.com/BrandonDHaskell/readings/internal/readings/service"
	"github.com/BrandonDHaskell/readings/internal/readings/store"
	"github.com/BrandonDHaskell/readings/internal/readings/store/memory"
	"github.com/BrandonDHaskell/readings/internal/readings/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "readings-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat()})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	journal, closeJournal, err := openJournal(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeJournal()

	aggregates := memory.NewAggregateStore()
	readingSvc := service.NewReadingService(aggregates, journal, logger)

	pruner := service.NewJournalPruner(journal, service.PrunerConfig{
		RetentionDays: cfg.JournalRetentionDays,
		IntervalHours: cfg.PruneIntervalHours,
	}, logger)

	httpSrv := httpapi.NewServer(httpapi.Dependencies{
		Logger:         logger,
		Addr:           cfg.HTTPAddr,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		ReadingService: readingSvc,
	})
	grpcSrv := grpcapi.NewServer(grpcapi.Dependencies{
		Logger: logger,
		Addr:   cfg.GRPCAddr,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		return httpSrv.Start()
	})
	g.Go(func() error {
		return grpcSrv.Start()
	})
	g.Go(func() error {
		pruner.Start(gctx)
		<-pruner.Done()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		grpcSrv.SetServing(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		err := httpSrv.Shutdown(shutdownCtx)
		grpcSrv.Shutdown()
		pruner.Stop()
		return err
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// openJournal picks the ingest journal backend. The returned close func is
// always safe to call.
func openJournal(ctx context.Context, cfg config.Config, logger zerolog.Logger) (store.IngestEventStore, func(), error) {
	if cfg.JournalDriver != "sqlite" {
		logger.Info().Msg("ingest journal: memory")
		return memory.NewIngestEventStore(), func() {}, nil
	}

	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath})
	if err != nil {
		return nil, nil, fmt.Errorf("open journal db: %w", err)
	}
	writer := db.NewWorker(conn)

	logger.Info().Str("path", cfg.DBPath).Msg("ingest journal: sqlite")
	return sqlite.NewIngestEventStore(conn, writer), func() {
		writer.Close()
		_ = conn.Close()
	}, nil
}
