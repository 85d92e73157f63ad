// Package app wires council storage, domain services, and the background
// processing loops into a runnable worker runtime.
package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/opencondema/condema/internal/services/council/audit"
	"github.com/opencondema/condema/internal/services/council/domain"
	councilsqlite "github.com/opencondema/condema/internal/services/council/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// RuntimeConfig controls council worker startup and loop behavior.
type RuntimeConfig struct {
	Port          int
	DBPath        string
	PollInterval  time.Duration
	SweepInterval time.Duration
	BatchLimit    int
	LeaseTTL      time.Duration
	IncludeAgenda bool
}

const (
	defaultCouncilPort   = 8090
	defaultCouncilDB     = "data/council.db"
	defaultPollInterval  = 5 * time.Minute
	defaultSweepInterval = 24 * time.Hour
)

// Run starts council runtime dependencies, the queue processing loop, and
// the daily mandate sweep. It blocks until ctx is cancelled.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultCouncilPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultCouncilDB
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create council storage dir: %w", err)
		}
	}

	store, err := councilsqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open council sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close council sqlite store: %v", closeErr)
		}
	}()

	auditLog := audit.NewLogger(store, nil, nil)
	sender := LogSender{}
	monitor := domain.NewMonitor(store, sender, nil, nil)
	processor := domain.NewProcessor(store, store, sender, auditLog, nil, domain.ProcessorConfig{
		BatchLimit:    cfg.BatchLimit,
		LeaseTTL:      cfg.LeaseTTL,
		IncludeAgenda: cfg.IncludeAgenda,
	})

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on council port %d: %w", cfg.Port, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("council.runtime", grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()

	log.Printf("council worker listening at %v", listener.Addr())
	return runLoops(ctx, store, monitor, processor, cfg.PollInterval, cfg.SweepInterval)
}

// rosterLister is the roster read the mandate sweep needs.
type rosterLister interface {
	ListMembers(ctx context.Context) ([]domain.Member, error)
}

func runLoops(ctx context.Context, roster rosterLister, monitor *domain.Monitor, processor *domain.Processor, pollInterval, sweepInterval time.Duration) error {
	pollTicker := time.NewTicker(pollInterval)
	defer pollTicker.Stop()
	sweepTicker := time.NewTicker(sweepInterval)
	defer sweepTicker.Stop()

	// One immediate pass so a restart drains overdue events right away.
	runQueuePass(ctx, processor)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pollTicker.C:
			runQueuePass(ctx, processor)
		case <-sweepTicker.C:
			runMandateSweep(ctx, roster, monitor)
		}
	}
}

func runQueuePass(ctx context.Context, processor *domain.Processor) {
	report, err := processor.ProcessQueue(ctx)
	if err != nil {
		log.Printf("queue pass: %v", err)
		return
	}
	for _, passErr := range report.Errors {
		log.Printf("queue pass event: %v", passErr)
	}
	if report.Processed > 0 {
		log.Printf("queue pass dispatched %d notifications", report.Processed)
	}
}

// runMandateSweep evaluates mandate and absence conditions across the active
// roster. A member's failure never stops the sweep.
func runMandateSweep(ctx context.Context, roster rosterLister, monitor *domain.Monitor) {
	members, err := roster.ListMembers(ctx)
	if err != nil {
		log.Printf("mandate sweep roster read: %v", err)
		return
	}
	alerted := 0
	for _, member := range members {
		if member.Status != domain.MemberActive {
			continue
		}
		alerts, err := monitor.SendAlerts(ctx, member)
		if err != nil {
			log.Printf("mandate sweep member %s: %v", member.ID, err)
		}
		alerted += len(alerts)
	}
	if alerted > 0 {
		log.Printf("mandate sweep raised %d alerts", alerted)
	}
}
