// Package worker parses worker command flags and launches the council runtime.
package worker

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/opencondema/condema/internal/platform/cmd"
	councilapp "github.com/opencondema/condema/internal/services/council/app"
)

// Config holds worker command configuration.
type Config struct {
	Port          int           `env:"CONDEMA_WORKER_PORT" envDefault:"8090"`
	DBPath        string        `env:"CONDEMA_WORKER_DB_PATH" envDefault:"data/council.db"`
	PollInterval  time.Duration `env:"CONDEMA_WORKER_POLL_INTERVAL" envDefault:"5m"`
	SweepInterval time.Duration `env:"CONDEMA_WORKER_SWEEP_INTERVAL" envDefault:"24h"`
	BatchLimit    int           `env:"CONDEMA_WORKER_BATCH_LIMIT" envDefault:"50"`
	LeaseTTL      time.Duration `env:"CONDEMA_WORKER_LEASE_TTL" envDefault:"2m"`
	IncludeAgenda bool          `env:"CONDEMA_WORKER_INCLUDE_AGENDA" envDefault:"true"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The worker health gRPC server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The council SQLite database path")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Notification queue poll interval")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "Mandate sweep interval")
	fs.IntVar(&cfg.BatchLimit, "batch-limit", cfg.BatchLimit, "Maximum queue events per processing pass")
	fs.DurationVar(&cfg.LeaseTTL, "lease-ttl", cfg.LeaseTTL, "Notification event dispatch lease duration")
	fs.BoolVar(&cfg.IncludeAgenda, "include-agenda", cfg.IncludeAgenda, "Include the meeting agenda in notification content")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the council worker runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceWorker, func(context.Context) error {
		return councilapp.Run(ctx, councilapp.RuntimeConfig{
			Port:          cfg.Port,
			DBPath:        cfg.DBPath,
			PollInterval:  cfg.PollInterval,
			SweepInterval: cfg.SweepInterval,
			BatchLimit:    cfg.BatchLimit,
			LeaseTTL:      cfg.LeaseTTL,
			IncludeAgenda: cfg.IncludeAgenda,
		})
	})
}
