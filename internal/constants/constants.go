package constants

import "time"

const (
	ExternalAPITimeout  = 10 * time.Second
	ExternalAPIRetries  = 3
	ExternalAPIBackoff  = 500 * time.Millisecond
	DocumentCacheTTL    = 5 * time.Minute
	DatabaseTimeout     = 5 * time.Second
	RequestTimeout      = 30 * time.Second
	ForecastTimeout     = 20 * time.Second
	ReportFeedMaxBytes  = 32 << 20
	ExternalAPIMaxConns = 16
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
	DBBatchSize       = 100
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultTimeZone  = "America/Sao_Paulo"
	PlayerListLimit  = 500
	ScoreHistoryDays = 365
)
