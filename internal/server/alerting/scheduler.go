package alerting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/pricewatch/internal/logging"
	"github.com/robfig/cron/v3"
)

// ErrPassInFlight is returned by RunOnce while another pass is running.
var ErrPassInFlight = errors.New("evaluation pass already in flight")

// Runner performs one evaluation pass.
type Runner interface {
	EvaluateAll(ctx context.Context) (Report, error)
}

// Scheduler fires the engine on a fixed interval. At most one pass runs at
// a time, whether started by the timer or by RunOnce.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   logging.Logger

	cron    *cron.Cron
	running sync.Mutex
}

// NewScheduler returns a stopped scheduler that runs r every interval.
func NewScheduler(r Runner, interval time.Duration, logger logging.Logger) *Scheduler {
	return &Scheduler{runner: r, interval: interval, logger: logger.With("module", "scheduler")}
}

// Start registers the periodic job. Passes run with ctx, so cancelling it
// aborts a pass in progress.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval < time.Second {
		return fmt.Errorf("evaluation interval %s is below one second", s.interval)
	}

	cl := cronLogger{ctx: ctx, logger: s.logger}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	if _, err := s.cron.AddFunc("@every "+s.interval.String(), func() {
		if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, ErrPassInFlight) {
			s.logger.Error(ctx, "evaluation pass failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule evaluation: %w", err)
	}

	s.cron.Start()
	s.logger.Info(ctx, "scheduler started", "interval", s.interval.String())
	return nil
}

// Stop prevents new passes and waits for a running one, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}

	select {
	case <-s.cron.Stop().Done():
		s.logger.Info(ctx, "scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce runs a pass now unless one is already in flight.
func (s *Scheduler) RunOnce(ctx context.Context) (Report, error) {
	if !s.running.TryLock() {
		return Report{}, ErrPassInFlight
	}
	defer s.running.Unlock()

	return s.runner.EvaluateAll(ctx)
}

// cronLogger adapts logging.Logger to cron.Logger.
type cronLogger struct {
	ctx    context.Context
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(l.ctx, "cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(l.ctx, "cron: "+msg, append(keysAndValues, "error", err)...)
}
