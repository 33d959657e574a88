package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/compozy/workflows/internal/logger"
	"github.com/compozy/workflows/internal/workflow"
)

// cadence tunables per spec.md §4.5 step 6.
const (
	fastPollWindow   = time.Minute
	mediumPollWindow = 5 * time.Minute
	fastPollInterval = 1 * time.Second
	midPollInterval  = 2 * time.Second
	slowPollInterval = 5 * time.Second
	heartbeatEvery   = 5 * time.Second
	hardCap          = time.Hour
	errorBackoff     = 2 * time.Second
	maxConsecutiveErrors = 5
)

// Source is the subset of the Workflow Repository (C4) the stream depends
// on to tail an Execution.
type Source interface {
	GetExecution(ctx context.Context, executionID int64) (*workflow.Execution, error)
	ListStepsSince(ctx context.Context, executionID int64, afterStepID int64) ([]*workflow.Step, error)
}

// Notifier is an optional change-notification hook: when a non-nil Notifier
// is passed, the stream waits on it to shorten its poll interval, but the
// DB poll remains authoritative. No implementation exists in this
// repository and the engine publishes no notifications; the HTTP handler
// passes nil, so the stream always polls.
type Notifier interface {
	// Wait blocks until a notification arrives or ctx is done, returning
	// false if ctx ended the wait.
	Wait(ctx context.Context) bool
}

// Run tails executionID, writing `step`/`heartbeat`/`complete`/`timeout`/
// `error` events to out until the Execution reaches a terminal state, the
// hard cap elapses, the client disconnects (ctx done), or five consecutive
// read errors occur. lastEventID resumes from a prior connection's
// Last-Event-ID (0 for a fresh connection).
func Run(ctx context.Context, out *SSEStream, src Source, notifier Notifier, executionID int64, lastEventID int64) {
	log := logger.FromContext(ctx)
	start := time.Now()
	nextID := lastEventID
	lastHeartbeat := time.Time{}
	consecutiveErrors := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		elapsed := time.Since(start)
		if elapsed > hardCap {
			_ = out.WriteEvent(nextID+1, "timeout", []byte(`{"reason":"hard_cap_exceeded"}`))
			return
		}

		exec, err := src.GetExecution(ctx, executionID)
		if err != nil {
			consecutiveErrors++
			log.Warn("stream read error", "error", err, "consecutive", consecutiveErrors)
			nextID++
			_ = out.WriteEvent(nextID, "error", []byte(fmt.Sprintf(`{"message":%q}`, err.Error())))
			if consecutiveErrors >= maxConsecutiveErrors {
				return
			}
			if !sleepOrDone(ctx, errorBackoff) {
				return
			}
			continue
		}
		consecutiveErrors = 0

		steps, err := src.ListStepsSince(ctx, executionID, lastEventID)
		if err != nil {
			consecutiveErrors++
			nextID++
			_ = out.WriteEvent(nextID, "error", []byte(fmt.Sprintf(`{"message":%q}`, err.Error())))
			if consecutiveErrors >= maxConsecutiveErrors {
				return
			}
			if !sleepOrDone(ctx, errorBackoff) {
				return
			}
			continue
		}
		for _, step := range steps {
			payload, mErr := json.Marshal(step)
			if mErr != nil {
				log.Warn("failed to marshal step", "error", mErr)
				continue
			}
			nextID++
			if err := out.WriteEvent(nextID, "step", payload); err != nil {
				return
			}
			lastEventID = step.StepID
		}

		if exec.Status.IsTerminal() {
			payload, _ := json.Marshal(exec)
			nextID++
			_ = out.WriteEvent(nextID, "complete", payload)
			return
		}

		if time.Since(lastHeartbeat) >= heartbeatEvery {
			nextID++
			_ = out.WriteHeartbeat(nextID)
			lastHeartbeat = time.Now()
		}

		interval := pollInterval(elapsed)
		if notifier != nil {
			notifyCtx, cancel := context.WithTimeout(ctx, interval)
			notifier.Wait(notifyCtx)
			cancel()
			continue
		}
		if !sleepOrDone(ctx, interval) {
			return
		}
	}
}

// pollInterval implements the adaptive cadence: 1s for the first minute,
// 2s until 5 minutes, 5s thereafter.
func pollInterval(elapsed time.Duration) time.Duration {
	switch {
	case elapsed < fastPollWindow:
		return fastPollInterval
	case elapsed < mediumPollWindow:
		return midPollInterval
	default:
		return slowPollInterval
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
