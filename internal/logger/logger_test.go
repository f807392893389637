package logger

import (
	"bytes"
	"invictus/internal/config"
	"testing"

	"github.com/rs/zerolog"
)

func TestApplyLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	cfg := config.Defaults()
	cfg.LogLevel = "warn"
	if err := ApplyLevel(cfg, zerolog.Nop()); err != nil {
		t.Fatalf("ApplyLevel() error = %v", err)
	}
	if got := zerolog.GlobalLevel(); got != zerolog.WarnLevel {
		t.Fatalf("GlobalLevel() = %s, want warn", got)
	}

	var buf bytes.Buffer
	l := zerolog.New(&buf).Level(zerolog.DebugLevel)
	l.Info().Msg("hidden")
	l.Warn().Msg("shown")
	if bytes.Contains(buf.Bytes(), []byte("hidden")) || !bytes.Contains(buf.Bytes(), []byte("shown")) {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestApplyLevelRejectsUnknown(t *testing.T) {
	cfg := config.Defaults()
	cfg.LogLevel = "chatty"
	if err := ApplyLevel(cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
}
