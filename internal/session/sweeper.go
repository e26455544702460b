package session

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/voxflow-ai/voxflow/internal/observability"
)

// ReasonTimeout tags terminations forced by the idle sweeper.
const ReasonTimeout = "timeout"

// Terminator force-terminates an idle session through the same path as
// a normal call-ended event. Implementations must attempt the per-call
// lock themselves and report handled=false when the session is busy,
// so a sweep never blocks behind in-flight pipeline work.
type Terminator interface {
	TerminateIdle(ctx context.Context, callID, reason string) (handled bool)
}

// Sweeper periodically scans the registry and reclaims sessions
// inactive beyond the idle threshold. Busy sessions are skipped and
// retried on the next tick.
type Sweeper struct {
	registry   *Registry
	terminator Terminator
	logger     *observability.Logger
	metrics    *observability.Metrics

	interval  time.Duration
	idleAfter time.Duration

	cron *cron.Cron
}

// SweeperConfig configures the idle sweeper.
type SweeperConfig struct {
	Registry   *Registry
	Terminator Terminator
	Logger     *observability.Logger
	Metrics    *observability.Metrics

	// Interval between sweeps. Default: 5m
	Interval time.Duration

	// IdleAfter is the inactivity threshold. Default: 30m
	IdleAfter time.Duration
}

// NewSweeper creates an idle sweeper. Start must be called to begin
// sweeping.
func NewSweeper(cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.IdleAfter <= 0 {
		cfg.IdleAfter = 30 * time.Minute
	}
	return &Sweeper{
		registry:   cfg.Registry,
		terminator: cfg.Terminator,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		interval:   cfg.Interval,
		idleAfter:  cfg.IdleAfter,
	}
}

// Start schedules the sweep loop.
func (s *Sweeper) Start() error {
	if s.cron != nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.Sweep(context.Background())
	}); err != nil {
		return fmt.Errorf("session: failed to schedule sweeper: %w", err)
	}
	c.Start()
	s.cron = c
	return nil
}

// Stop halts the sweep loop, waiting for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
}

// Sweep runs one pass: every session idle beyond the threshold is
// terminated with reason "timeout" through the shared termination
// path. A session whose lock is held is skipped; it will be caught on
// a later tick if it stays idle.
func (s *Sweeper) Sweep(ctx context.Context) int {
	reaped := 0
	for _, callID := range s.registry.IdleCallIDs(s.idleAfter) {
		callCtx := observability.WithCallID(ctx, callID)

		if !s.terminator.TerminateIdle(callCtx, callID, ReasonTimeout) {
			s.logger.Debug(callCtx, "sweeper skipping busy session")
			continue
		}

		s.logger.Info(callCtx, "reclaimed inactive session", "idle_after", s.idleAfter.String())
		s.metrics.SweeperReaped.Inc()
		reaped++
	}
	return reaped
}
