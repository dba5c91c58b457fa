package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/BrandonDHaskell/readings/internal/metrics"
	"github.com/BrandonDHaskell/readings/internal/readings/store"
)

const defaultSweepInterval = 6 * time.Hour

// PrunerConfig sets the journal retention window.
type PrunerConfig struct {
	// RetentionDays of ingest history are kept. 0 keeps the journal forever.
	RetentionDays int

	// IntervalHours between sweeps. Defaults to 6.
	IntervalHours int
}

// JournalPruner keeps the ingest journal inside its retention window. It
// never touches device aggregates; the journal is an audit trail only.
type JournalPruner struct {
	journal   store.IngestEventStore
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	logger    zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewJournalPruner(journal store.IngestEventStore, cfg PrunerConfig, logger zerolog.Logger) *JournalPruner {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = defaultSweepInterval
	}

	return &JournalPruner{
		journal:   journal,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		interval:  interval,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.With().Str("component", "journal_pruner").Logger(),
		done:      make(chan struct{}),
	}
}

// Start launches the sweep goroutine. The first sweep runs right away so a
// journal that outgrew its window while the server was down is trimmed at
// boot. With retention 0 nothing is launched and Done is already closed.
func (p *JournalPruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		p.logger.Info().Msg("journal retention unlimited, pruner idle")
		close(p.done)
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	go p.run(ctx)

	p.logger.Info().
		Dur("retention", p.retention).
		Dur("interval", p.interval).
		Msg("journal pruner running")
}

// Stop ends the sweep goroutine during shutdown and returns once any sweep
// in progress has finished, so the journal writer can be closed after it.
// A pruner that was never started or is already stopped returns at once.
func (p *JournalPruner) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

// Done is closed when the sweep goroutine exits, or at Start when idle.
func (p *JournalPruner) Done() <-chan struct{} {
	return p.done
}

// Sweep deletes journal rows received before the retention window and
// reports how many went. It is what the goroutine runs on every tick.
func (p *JournalPruner) Sweep(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.retention)
	deleted, err := p.journal.PruneOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	metrics.JournalRowsPruned.Add(float64(deleted))
	if deleted > 0 {
		p.logger.Info().
			Int64("deleted", deleted).
			Time("cutoff", cutoff).
			Msg("journal rows expired")
	}
	return deleted, nil
}

func (p *JournalPruner) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.Sweep(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error().Err(err).Msg("journal sweep failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
