package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"cardbill/internal/log"
)

// Reconciler recomputes every stored invoice total.
type Reconciler interface {
	ReconcileAll(ctx context.Context) (int, error)
}

// ReconcileScheduler runs a Reconciler on a cron schedule.
type ReconcileScheduler struct {
	cron       *cron.Cron
	reconciler Reconciler
	logger     *log.Logger
	timeout    time.Duration
	// after runs once a reconciliation succeeded, e.g. to mirror the sheet.
	after func(ctx context.Context) error
}

type SchedulerOption func(*ReconcileScheduler)

// WithAfterRun registers fn to run after every successful reconciliation.
func WithAfterRun(fn func(ctx context.Context) error) SchedulerOption {
	return func(s *ReconcileScheduler) { s.after = fn }
}

// WithRunTimeout bounds a single reconciliation run.
func WithRunTimeout(d time.Duration) SchedulerOption {
	return func(s *ReconcileScheduler) { s.timeout = d }
}

// NewReconcileScheduler parses spec as a standard five-field cron expression
// (descriptors such as "@hourly" are accepted too).
func NewReconcileScheduler(spec string, r Reconciler, logger *log.Logger, opts ...SchedulerOption) (*ReconcileScheduler, error) {
	if logger == nil {
		logger = log.Default(log.ComponentReconcile)
	}
	s := &ReconcileScheduler{
		reconciler: r,
		logger:     logger.WithComponent(log.ComponentReconcile),
		timeout:    10 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := s.cron.AddFunc(spec, s.runScheduled); err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", spec, err)
	}
	return s, nil
}

// Run starts the schedule and blocks until ctx is done, then waits for a
// running reconciliation to finish.
func (s *ReconcileScheduler) Run(ctx context.Context) error {
	s.cron.Start()
	s.logger.InfoContext(ctx, "Reconcile scheduler started", "next_run", s.NextRun().Format(time.RFC3339))
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("Reconcile scheduler stopped")
	return nil
}

// NextRun reports when the job fires next; zero before Run.
func (s *ReconcileScheduler) NextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	if !entries[0].Next.IsZero() {
		return entries[0].Next
	}
	return entries[0].Schedule.Next(time.Now())
}

func (s *ReconcileScheduler) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.RunOnce(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Scheduled reconciliation failed", log.FieldError, err)
	}
}

// RunOnce reconciles immediately.
func (s *ReconcileScheduler) RunOnce(ctx context.Context) error {
	start := time.Now()
	changed, err := s.reconciler.ReconcileAll(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	s.logger.InfoContext(ctx, "Reconciliation run finished",
		log.FieldOperation, log.OpReconcile,
		"changed", changed,
		log.FieldDuration, time.Since(start).Milliseconds())
	if s.after != nil {
		if err := s.after(ctx); err != nil {
			return fmt.Errorf("after reconcile: %w", err)
		}
	}
	return nil
}
