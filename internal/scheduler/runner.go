package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/compozy/workflows/internal/logger"
)

// DefaultPollInterval is how often Runner re-reads the RecurringStore when
// none is configured.
const DefaultPollInterval = 30 * time.Second

// Runner is the background half of the Task Scheduler's recurring-store
// integration: it polls the RecurringStore for live entries, materializes
// them into an in-memory robfig/cron/v3 scheduler, and fires each due
// entry's executor dispatch through Scheduler.DispatchEntry. One Runner
// runs per process, started from cmd/server/main.go, closing the loop
// spec.md §2's data flow describes ("creates entries in an external
// recurring scheduler that later calls back into C1 executors").
type Runner struct {
	Scheduler    *Scheduler
	Store        RecurringStore
	PollInterval time.Duration

	mu  sync.Mutex
	cur *cron.Cron
}

// NewRunner builds a Runner. pollInterval <= 0 uses DefaultPollInterval.
func NewRunner(sched *Scheduler, store RecurringStore, pollInterval time.Duration) *Runner {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Runner{Scheduler: sched, Store: store, PollInterval: pollInterval}
}

// Start blocks, polling the RecurringStore every PollInterval and
// rebuilding the in-memory cron.Cron from whatever is live at that moment,
// until ctx is canceled. Rebuilding from scratch on each poll (rather than
// diffing entries in place) keeps reconciliation simple at the cost of
// recomputing next-fire times relative to the poll, acceptable given the
// spec's non-goal of sub-second scheduling precision.
func (r *Runner) Start(ctx context.Context) {
	ticker := time.NewTicker(r.PollInterval)
	defer ticker.Stop()

	r.Reload(ctx)
	for {
		select {
		case <-ctx.Done():
			r.mu.Lock()
			if r.cur != nil {
				r.cur.Stop()
			}
			r.mu.Unlock()
			return
		case <-ticker.C:
			r.Reload(ctx)
		}
	}
}

// Reload lists the store's live entries, stops the previous cron.Cron, and
// starts a fresh one scheduled from the current entries. Exposed so a
// caller can force an immediate re-poll instead of waiting for the next
// tick, and so tests can observe the materialized entry set directly.
func (r *Runner) Reload(ctx context.Context) {
	log := logger.FromContext(ctx)
	entries, err := r.Store.List(ctx)
	if err != nil {
		log.Error("listing recurring entries", "error", err)
		return
	}
	c := cron.New()
	for _, entry := range entries {
		spec, ok := cronSpecFor(entry)
		if !ok {
			continue
		}
		if _, err := c.AddFunc(spec, r.dispatchFunc(ctx, log, entry)); err != nil {
			log.Warn("skipping invalid recurring entry", "entry", entry.Name, "error", err)
		}
	}
	c.Start()

	r.mu.Lock()
	prev := r.cur
	r.cur = c
	r.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}
}

// ActiveEntryCount reports how many entries the current in-memory
// cron.Cron has scheduled, for observability and tests.
func (r *Runner) ActiveEntryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur == nil {
		return 0
	}
	return len(r.cur.Entries())
}

// dispatchFunc closes over entry and fires it through the Scheduler on a
// context detached from ctx's cancellation, so an in-flight dispatch isn't
// aborted by a later poll tick replacing the cron.Cron that scheduled it.
func (r *Runner) dispatchFunc(ctx context.Context, log logger.Logger, entry *Entry) func() {
	return func() {
		dispatchCtx := context.WithoutCancel(ctx)
		if err := r.Scheduler.DispatchEntry(dispatchCtx, entry); err != nil {
			log.Error("dispatching recurring task", "entry", entry.Name, "task", entry.TaskName, "error", err)
		}
	}
}

// cronSpecFor renders entry's timing as a robfig/cron spec string: its
// crontab form for ONCE/WEEKLY_SPECIFIC_DAYS/MONTHLY_SPECIFIC_DATES, or an
// "@every" duration for PERIODIC.
func cronSpecFor(entry *Entry) (string, bool) {
	if entry.Kind == TypePeriodic {
		if entry.IntervalMinutes <= 0 {
			return "", false
		}
		return fmt.Sprintf("@every %dm", entry.IntervalMinutes), true
	}
	if entry.CronSpec == "" {
		return "", false
	}
	return entry.CronSpec, true
}
