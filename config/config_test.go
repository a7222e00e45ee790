package config

import (
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("ALERT_INTERVAL", "1h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.AlertInterval != time.Hour {
		t.Errorf("AlertInterval = %v, want 1h", cfg.AlertInterval)
	}
	if cfg.PriceCacheTTL != 5*time.Minute {
		t.Errorf("PriceCacheTTL = %v, want 5m", cfg.PriceCacheTTL)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("KafkaBrokers = %v, want two brokers", cfg.KafkaBrokers)
	}
	if !strings.Contains(cfg.DSN(), "TimeZone=UTC") {
		t.Errorf("DSN() = %q, want the configured time zone", cfg.DSN())
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Error("Load() error = nil, want missing JWT_SECRET reported")
	}
}

func TestLocation(t *testing.T) {
	if _, err := (Config{TimeZone: "Nowhere/Special"}).Location(); err == nil {
		t.Error("Location() error = nil, want unknown zone rejected")
	}
	loc, err := Config{TimeZone: "UTC"}.Location()
	if err != nil || loc != time.UTC {
		t.Errorf("Location() = %v, %v, want UTC", loc, err)
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := NewLogger("loud"); err == nil {
		t.Error("NewLogger(loud) error = nil, want bad level rejected")
	}
	l, err := NewLogger("debug")
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	if !l.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug logger does not log at debug")
	}
}
