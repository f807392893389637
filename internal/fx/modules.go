package fx

import (
	"invictus/internal/api"
	"invictus/internal/config"
	"invictus/internal/database"
	"invictus/internal/forecast"
	"invictus/internal/logger"
	"invictus/internal/metrics"
	"invictus/internal/reconcile"
	"invictus/internal/repository"
	"invictus/internal/server"
	"invictus/internal/service"

	"go.uber.org/fx"
)

func ProvideForecaster() forecast.Forecaster {
	return forecast.DefaultHolt()
}

var Module = fx.Options(
	logger.Module,
	config.Module,
	metrics.Module,
	fx.Provide(database.New),
	// store
	fx.Provide(repository.NewStore),
	fx.Provide(func(s *repository.Store) forecast.Store { return s }),
	fx.Provide(func(s *repository.Store) reconcile.Store { return s }),
	// observers
	fx.Provide(func(r *metrics.Recorder) api.FetchObserver { return r }),
	fx.Provide(func(r *metrics.Recorder) reconcile.Observer { return r }),
	// api clients
	fx.Provide(api.NewOGameClient),
	fx.Provide(api.NewReportFeedClient),
	fx.Provide(func(c *api.OGameClient) reconcile.UniverseSource { return c }),
	fx.Provide(func(c *api.ReportFeedClient) reconcile.CombatReportSource { return c }),
	// crawler
	fx.Provide(reconcile.New),
	// svc
	fx.Provide(ProvideForecaster),
	fx.Provide(forecast.NewService),
	fx.Provide(service.NewPlayerService),
	fx.Provide(service.NewAllianceService),
	fx.Provide(service.NewFleetService),
	// server
	fx.Provide(server.NewQueryServer),
)
