package logger

import (
	"fmt"
	"invictus/internal/config"
	"os"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func New() zerolog.Logger {
	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.DebugLevel
	}
	return SetLevel(level)
}

func SetLevel(level zerolog.Level) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Caller().
		Logger()

	logger = logger.Level(level)

	return logger
}

// ApplyLevel makes the configured log_level the global minimum once the
// configuration is loaded.
func ApplyLevel(cfg *config.Config, logger zerolog.Logger) error {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}
	if level == zerolog.NoLevel {
		return nil
	}
	zerolog.SetGlobalLevel(level)
	logger.Info().Str("level", level.String()).Msg("log level applied")
	return nil
}

var Module = fx.Options(
	fx.Provide(New),
	fx.Invoke(ApplyLevel),
)
