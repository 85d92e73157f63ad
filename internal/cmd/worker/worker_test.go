package worker

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfig_ParsesDefaultsAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	t.Setenv("CONDEMA_WORKER_PORT", "9099")
	t.Setenv("CONDEMA_WORKER_DB_PATH", "/tmp/council.db")

	cfg, err := ParseConfig(fs, []string{"-poll-interval", "30s", "-batch-limit", "10"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9099 {
		t.Fatalf("port = %d, want 9099", cfg.Port)
	}
	if cfg.DBPath != "/tmp/council.db" {
		t.Fatalf("db path = %q, want %q", cfg.DBPath, "/tmp/council.db")
	}
	if cfg.PollInterval != 30*time.Second {
		t.Fatalf("poll interval = %v, want 30s", cfg.PollInterval)
	}
	if cfg.BatchLimit != 10 {
		t.Fatalf("batch limit = %d, want 10", cfg.BatchLimit)
	}
}

func TestParseConfig_Defaults(t *testing.T) {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 8090 {
		t.Fatalf("port = %d, want 8090", cfg.Port)
	}
	if cfg.DBPath != "data/council.db" {
		t.Fatalf("db path = %q, want %q", cfg.DBPath, "data/council.db")
	}
	if cfg.PollInterval != 5*time.Minute {
		t.Fatalf("poll interval = %v, want 5m", cfg.PollInterval)
	}
	if cfg.SweepInterval != 24*time.Hour {
		t.Fatalf("sweep interval = %v, want 24h", cfg.SweepInterval)
	}
	if cfg.LeaseTTL != 2*time.Minute {
		t.Fatalf("lease ttl = %v, want 2m", cfg.LeaseTTL)
	}
	if !cfg.IncludeAgenda {
		t.Fatal("include agenda should default to true")
	}
}
