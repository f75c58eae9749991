package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-scheduler/internal/command"
	"github.com/nerrad567/gray-logic-scheduler/internal/infrastructure/metrics"
)

// DefaultPollInterval is used when Config.PollInterval is zero.
const DefaultPollInterval = time.Second

// InvalidDuePolicy decides how the loop reports entries whose due time
// does not parse. Under every policy such entries stay pending and are
// never executed or deleted.
type InvalidDuePolicy string

const (
	// InvalidDueSkip logs at debug level only.
	InvalidDueSkip InvalidDuePolicy = "skip"
	// InvalidDueWarn logs a warning every cycle.
	InvalidDueWarn InvalidDuePolicy = "warn"
)

// Executor runs one command. *command.Executor satisfies it.
type Executor interface {
	Execute(ctx context.Context, cmd command.Command) command.Result
}

// Observer is told about every execution attempt the loop makes.
// Implementations must not block.
type Observer interface {
	EntryExecuted(entry Entry, result command.Result)
	EntryFailed(entry Entry, result command.Result)
}

// Logger defines the logging interface used by the Scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds scheduler loop settings.
type Config struct {
	PollInterval     time.Duration
	InvalidDuePolicy InvalidDuePolicy
}

// CycleReport summarises one RunCycle.
type CycleReport struct {
	// Pending is the number of pending entries read from the store.
	Pending int
	// Due is the number of entries whose due time had passed.
	Due            int
	Executed       int
	Failed         int
	SkippedInvalid int
	// Err is the store error that cut the cycle short, if any.
	Err error
}

// Scheduler polls the store and executes due entries.
//
// A failed execution leaves the entry pending, so it is retried on every
// following cycle until it succeeds or is cancelled. The observer hears
// about a failure once per distinct message; identical repeats are only
// logged at debug level.
type Scheduler struct {
	store    Store
	executor Executor
	interval time.Duration
	policy   InvalidDuePolicy
	now      func() time.Time
	logger   Logger
	metrics  *metrics.Metrics
	observer Observer

	mu       sync.Mutex
	failures map[int64]string // last reported failure message per entry
}

// NewScheduler creates a scheduler. Zero config fields take defaults.
func NewScheduler(store Store, executor Executor, cfg Config) *Scheduler {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	policy := cfg.InvalidDuePolicy
	if policy == "" {
		policy = InvalidDueSkip
	}
	return &Scheduler{
		store:    store,
		executor: executor,
		interval: interval,
		policy:   policy,
		now:      time.Now,
		logger:   noopLogger{},
		failures: make(map[int64]string),
	}
}

// SetLogger sets the logger for the scheduler.
func (s *Scheduler) SetLogger(logger Logger) {
	s.logger = logger
}

// SetMetrics attaches Prometheus collectors. Nil disables them.
func (s *Scheduler) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetObserver registers the execution observer.
func (s *Scheduler) SetObserver(o Observer) {
	s.observer = o
}

// SetClock replaces the time source.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Interval returns the poll interval in use.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Run executes a cycle immediately and then once per poll interval until
// ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started", "poll_interval", s.interval.String(), "invalid_due_policy", string(s.policy))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.RunCycle(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunCycle performs one pass over the pending entries.
//
// The clock is read once; an entry is due when its due time is not after
// that instant. Store errors are logged and end the cycle early, they
// never stop the loop.
func (s *Scheduler) RunCycle(ctx context.Context) CycleReport {
	start := time.Now()
	now := s.now()

	var report CycleReport
	defer func() {
		s.metrics.ObserveCycle(report.Pending, report.SkippedInvalid, time.Since(start))
	}()

	entries, err := s.store.ListPending(ctx)
	if err != nil {
		s.logger.Error("listing pending schedules", "error", err)
		s.metrics.IncCycleError()
		report.Err = err
		return report
	}
	report.Pending = len(entries)
	s.forgetFailures(entries)

	for _, entry := range entries {
		if ctx.Err() != nil {
			return report
		}

		if entry.DueErr != nil {
			report.SkippedInvalid++
			s.reportInvalid(entry)
			continue
		}
		if !entry.IsDue(now) {
			continue
		}
		report.Due++

		result := s.executor.Execute(ctx, entry.Command)
		s.metrics.ObserveCommand(metrics.SourceScheduled, result.OK)

		if !result.OK {
			report.Failed++
			s.reportFailure(entry, result)
			continue
		}

		if err := s.store.MarkExecuted(ctx, entry.ID); err != nil {
			// The device already changed. The entry stays pending and
			// will run again next cycle; nothing better is possible
			// without a working store.
			s.logger.Error("marking schedule executed",
				"schedule_id", entry.ID,
				"error", err,
			)
			s.metrics.IncCycleError()
			report.Err = err
			continue
		}

		report.Executed++
		s.clearFailure(entry.ID)
		entry.State = StateExecuted
		s.logger.Info("scheduled command executed",
			"schedule_id", entry.ID,
			"device_id", entry.Command.DeviceID,
			"action", entry.Command.Action,
			"message", result.Message,
		)
		if s.observer != nil {
			s.observer.EntryExecuted(entry, result)
		}
	}

	return report
}

func (s *Scheduler) reportInvalid(entry Entry) {
	args := []any{
		"schedule_id", entry.ID,
		"schedule_time", entry.DueRaw,
		"error", entry.DueErr,
	}
	if s.policy == InvalidDueWarn {
		s.logger.Warn("skipping schedule with invalid due time", args...)
		return
	}
	s.logger.Debug("skipping schedule with invalid due time", args...)
}

// reportFailure logs a failed attempt and tells the observer, unless the
// previous attempt for the same entry failed with the same message.
func (s *Scheduler) reportFailure(entry Entry, result command.Result) {
	args := []any{
		"schedule_id", entry.ID,
		"device_id", entry.Command.DeviceID,
		"action", entry.Command.Action,
		"message", result.Message,
		"error", result.Err,
	}

	s.mu.Lock()
	last, seen := s.failures[entry.ID]
	s.failures[entry.ID] = result.Message
	s.mu.Unlock()

	if seen && last == result.Message {
		s.logger.Debug("scheduled command still failing", args...)
		return
	}
	s.logger.Warn("scheduled command failed, will retry", args...)
	if s.observer != nil {
		s.observer.EntryFailed(entry, result)
	}
}

func (s *Scheduler) clearFailure(id int64) {
	s.mu.Lock()
	delete(s.failures, id)
	s.mu.Unlock()
}

// forgetFailures drops records for entries no longer pending.
func (s *Scheduler) forgetFailures(pending []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.failures) == 0 {
		return
	}
	live := make(map[int64]struct{}, len(pending))
	for _, e := range pending {
		live[e.ID] = struct{}{}
	}
	for id := range s.failures {
		if _, ok := live[id]; !ok {
			delete(s.failures, id)
		}
	}
}
