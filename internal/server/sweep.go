// ABOUTME: Periodic hygiene sweep clearing stale challenges and purging old trash
// ABOUTME: Runs on a ticker until the context is cancelled

package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/hollowgrove/vaultgate/internal/config"
	"github.com/hollowgrove/vaultgate/internal/store"
)

// Sweeper periodically removes expired protocol state: device challenges
// that were never answered, and vault items left in the trash past the
// retention window.
type Sweeper struct {
	store  store.Store
	cfg    config.SweepConfig
	ttl    time.Duration
	logger *slog.Logger

	now func() time.Time
}

// NewSweeper creates a sweeper. challengeTTL is the same window the
// challenge manager enforces; a challenge older than that can never be
// answered successfully, so clearing it only removes dead rows.
func NewSweeper(st store.Store, cfg config.SweepConfig, challengeTTL time.Duration) *Sweeper {
	return &Sweeper{
		store:  st,
		cfg:    cfg,
		ttl:    challengeTTL,
		logger: slog.Default().With("component", "sweeper"),
		now:    time.Now,
	}
}

// Run blocks, sweeping once immediately and then at the configured
// interval, until the context is cancelled.
func (sw *Sweeper) Run(ctx context.Context) {
	sw.logger.Info("hygiene sweep started",
		"interval", sw.cfg.Interval, "trash_retention", sw.cfg.TrashRetention)

	ticker := time.NewTicker(sw.cfg.Interval)
	defer ticker.Stop()

	sw.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			sw.logger.Info("hygiene sweep stopped")
			return
		case <-ticker.C:
			sw.sweep(ctx)
		}
	}
}

func (sw *Sweeper) sweep(ctx context.Context) {
	now := sw.now().UTC()

	challenges, err := sw.store.DeleteStaleChallenges(ctx, now.Add(-sw.ttl))
	if err != nil {
		sw.logger.Error("clearing stale challenges", "error", err)
	}

	items, err := sw.store.PurgeTrashedBefore(ctx, now.Add(-sw.cfg.TrashRetention))
	if err != nil {
		sw.logger.Error("purging trashed items", "error", err)
	}

	if challenges > 0 || items > 0 {
		sw.logger.Info("hygiene sweep completed",
			"stale_challenges", challenges, "purged_items", items)
	}
}
