package main

import (
	"context"
	"database/sql"
	"fmt"
	"invictus/internal/config"
	"invictus/internal/constants"
	"invictus/internal/crawler"
	fxmodules "invictus/internal/fx"
	"invictus/internal/metrics"
	"net/http"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Provide(crawler.NewCrawler),
		fx.Invoke(runCrawler),
	).Run()
}

func runCrawler(
	lc fx.Lifecycle,
	c *crawler.Crawler,
	recorder *metrics.Recorder,
	cfg *config.Config,
	db *sql.DB,
	logger zerolog.Logger,
) {
	srv := recorder.Server(fmt.Sprintf(":%s", cfg.MetricsPort))

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("metrics server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("metrics server failed")
				}
			}()
			return c.Start()
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down crawler")
			if err := c.Stop(); err != nil {
				logger.Error().Err(err).Msg("crawler shutdown failed")
				return err
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("metrics server shutdown failed")
			}
			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
			return nil
		},
	})
}
