// Package crawler runs reconciliation passes on a fixed interval.
package crawler

import (
	"context"
	"fmt"
	"invictus/internal/config"
	"invictus/internal/reconcile"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

type Crawler struct {
	reconciler *reconcile.Reconciler
	universe   reconcile.UniverseSource
	reports    reconcile.CombatReportSource
	store      reconcile.Store
	interval   time.Duration
	logger     zerolog.Logger

	scheduler gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewCrawler(
	cfg *config.Config,
	reconciler *reconcile.Reconciler,
	universe reconcile.UniverseSource,
	reports reconcile.CombatReportSource,
	store reconcile.Store,
	logger zerolog.Logger,
) (*Crawler, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(cfg.Location()))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Crawler{
		reconciler: reconciler,
		universe:   universe,
		reports:    reports,
		store:      store,
		interval:   cfg.PassInterval,
		logger:     logger,
		scheduler:  scheduler,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Start runs a pass right away. Each following pass starts one interval
// after the previous one ended, so passes never overlap.
func (c *Crawler) Start() error {
	c.scheduler.Start()
	if err := c.schedule(gocron.OneTimeJobStartImmediately()); err != nil {
		return err
	}
	c.logger.Info().Dur("interval", c.interval).Msg("crawler started")
	return nil
}

func (c *Crawler) schedule(at gocron.OneTimeJobStartAtOption) error {
	_, err := c.scheduler.NewJob(
		gocron.OneTimeJob(at),
		gocron.NewTask(c.tick),
		gocron.WithName("reconcile-pass"),
		gocron.WithLimitedRuns(1),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule pass: %w", err)
	}
	return nil
}

func (c *Crawler) tick() {
	_, _ = c.RunOnce(c.ctx)
	if c.ctx.Err() != nil {
		return
	}

	next := time.Now().Add(c.interval)
	if err := c.schedule(gocron.OneTimeJobStartDateTime(next)); err != nil {
		c.logger.Error().Err(err).Msg("failed to schedule next pass")
		return
	}
	c.logger.Debug().Time("next_pass", next).Msg("next pass scheduled")
}

// RunOnce runs a single pass. A failed pass is logged and retried at the next interval.
func (c *Crawler) RunOnce(ctx context.Context) (*reconcile.PassReport, error) {
	report, err := c.reconciler.RunPass(ctx, c.universe, c.reports, c.store)
	if err != nil {
		c.logger.Error().Err(err).Msg("pass failed, waiting for next interval")
		return report, err
	}
	return report, nil
}

func (c *Crawler) Stop() error {
	c.cancel()
	if err := c.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	c.logger.Info().Msg("crawler stopped")
	return nil
}
