package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("WATCHLIST", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "8085" {
		t.Errorf("expected default port 8085, got %s", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level info, got %s", cfg.LogLevel)
	}
	if cfg.Database.MaxConnLifetime != time.Hour {
		t.Errorf("expected 1h conn lifetime, got %v", cfg.Database.MaxConnLifetime)
	}
	if cfg.Redis.Enabled {
		t.Error("redis should be disabled by default")
	}
}

func TestLoadRejectsUnknownEnv(t *testing.T) {
	t.Setenv("ENV", "sandbox")

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for unknown ENV")
	}
}

func TestWatchlistParsing(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("WATCHLIST", "600519, 000858 ,300750")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := []string{"600519", "000858", "300750"}
	if len(cfg.Watchlist) != len(want) {
		t.Fatalf("expected %d codes, got %d", len(want), len(cfg.Watchlist))
	}
	for i, code := range want {
		if cfg.Watchlist[i] != code {
			t.Errorf("watchlist[%d] = %s, want %s", i, cfg.Watchlist[i], code)
		}
	}
}
