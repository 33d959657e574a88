package scheduler

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/compozy/workflows/internal/apperrors"
	"github.com/compozy/workflows/internal/executor"
	"github.com/compozy/workflows/internal/logger"
)

// TaskInfo is the subset of a Task the Scheduler needs to validate and
// dispatch a schedule, decoupled from the catalog package's concrete Task
// type so this package has no import-cycle risk.
type TaskInfo struct {
	TaskName     string
	UserTaskName string
	Executor     executor.Kind
	ScriptPath   string
	CancelledYN  bool
}

// TaskCatalog resolves a Task and its declared parameter names (C2).
type TaskCatalog interface {
	GetTask(ctx context.Context, taskName string) (TaskInfo, error)
	ParametersFor(ctx context.Context, taskName string) ([]string, bool)
}

// Scheduler implements the Task Scheduler (C7): create, list, update,
// cancel, reschedule, and ad-hoc-dispatch a Schedule, against a Postgres
// Store and an external RecurringStore.
type Scheduler struct {
	Catalog   TaskCatalog
	Store     *Store
	Recurring RecurringStore
	Registry  *executor.Registry
}

// New builds a Scheduler.
func New(catalog TaskCatalog, store *Store, recurring RecurringStore, registry *executor.Registry) *Scheduler {
	return &Scheduler{Catalog: catalog, Store: store, Recurring: recurring, Registry: registry}
}

// CreateRequest is the validated input to Create.
type CreateRequest struct {
	UserScheduleName string
	TaskName         string
	ScheduleType     Type
	Schedule         Payload
	Parameters       map[string]any
}

// Create validates the Task and its declared parameters, then — per
// spec.md §4.4 — either runs the ad-hoc dispatch synchronously before
// returning (IMMEDIATE) or writes the recurring store entry first and only then persists the
// Schedule row.
func (s *Scheduler) Create(ctx context.Context, req CreateRequest) (*Schedule, error) {
	task, err := s.validateTask(ctx, req.TaskName, req.Parameters)
	if err != nil {
		return nil, err
	}

	if req.ScheduleType == TypeImmediate {
		if err := s.dispatchAdHoc(ctx, task, req.UserScheduleName, nil, req.ScheduleType, req.Schedule, req.Parameters); err != nil {
			return nil, err
		}
		return &Schedule{
			UserScheduleName: req.UserScheduleName,
			TaskName:         req.TaskName,
			ScheduleType:     TypeImmediate,
			Parameters:       req.Parameters,
		}, nil
	}

	redbeatName := fmt.Sprintf("%s_%s", req.UserScheduleName, uuid.NewString())
	entry, err := Translate(redbeatName, req.ScheduleType, req.Schedule)
	if err != nil {
		return nil, err
	}
	entry.TaskName = req.TaskName
	entry.UserScheduleName = req.UserScheduleName
	entry.SchedulePayload = req.Schedule
	entry.Parameters = req.Parameters
	if err := s.Recurring.Put(ctx, entry); err != nil {
		return nil, err
	}

	sch := &Schedule{
		UserScheduleName:    req.UserScheduleName,
		RedbeatScheduleName: &redbeatName,
		TaskName:            req.TaskName,
		Kwargs:              req.Parameters,
		Parameters:          req.Parameters,
		ScheduleType:        req.ScheduleType,
		Schedule:            req.Schedule,
	}
	id, err := s.Store.Create(ctx, sch)
	if err != nil {
		// The store entry was already written; roll it back so the two
		// stay coherent, per spec.md §5's ordering guarantee.
		_ = s.Recurring.Delete(ctx, redbeatName)
		return nil, err
	}
	sch.ID = id
	return sch, nil
}

// List returns every Schedule.
func (s *Scheduler) List(ctx context.Context) ([]*Schedule, error) {
	return s.Store.List(ctx)
}

// ListPage returns a paginated, optionally filtered slice of Schedules.
func (s *Scheduler) ListPage(ctx context.Context, search string, limit, offset int) ([]*Schedule, error) {
	return s.Store.ListPage(ctx, search, limit, offset)
}

// Cancel flips the Schedule row to cancelled_yn='Y' *before* deleting the
// recurring store entry; if the store delete fails, the row flip is rolled
// back so the two never diverge (spec.md §4.4, §7 SchedulerStoreError).
func (s *Scheduler) Cancel(ctx context.Context, taskName string) error {
	sch, err := s.Store.GetByTaskName(ctx, taskName)
	if err != nil {
		return err
	}
	if sch.CancelledYN {
		return nil
	}
	if err := s.Store.SetCancelled(ctx, taskName, true); err != nil {
		return err
	}
	if sch.RedbeatScheduleName == nil {
		return nil
	}
	if err := s.Recurring.Delete(ctx, *sch.RedbeatScheduleName); err != nil {
		_ = s.Store.SetCancelled(ctx, taskName, false)
		return err
	}
	return nil
}

// Reschedule re-creates a store entry for a cancelled Schedule's saved
// args/kwargs and clears cancelled_yn. Only cancelled_yn='Y' records are
// eligible.
func (s *Scheduler) Reschedule(ctx context.Context, taskName string) (*Schedule, error) {
	sch, err := s.Store.GetByTaskName(ctx, taskName)
	if err != nil {
		return nil, err
	}
	if !sch.CancelledYN {
		return nil, apperrors.Conflict(fmt.Sprintf("schedule for task %q is not cancelled", taskName), nil)
	}
	redbeatName := fmt.Sprintf("%s_%s", sch.UserScheduleName, uuid.NewString())
	entry, err := Translate(redbeatName, sch.ScheduleType, sch.Schedule)
	if err != nil {
		return nil, err
	}
	entry.TaskName = sch.TaskName
	entry.UserScheduleName = sch.UserScheduleName
	entry.SchedulePayload = sch.Schedule
	entry.Parameters = sch.Parameters
	if err := s.Recurring.Put(ctx, entry); err != nil {
		return nil, err
	}
	if err := s.Store.UpdateRedbeatName(ctx, taskName, &redbeatName); err != nil {
		_ = s.Recurring.Delete(ctx, redbeatName)
		return nil, err
	}
	if err := s.Store.SetCancelled(ctx, taskName, false); err != nil {
		return nil, err
	}
	sch.RedbeatScheduleName = &redbeatName
	sch.CancelledYN = false
	return sch, nil
}

// CancelAdHoc revokes an accepted-but-undispatched ad-hoc task, marking the
// backing Schedule row cancelled and revoking the dispatch by task id
// through the recurring store's revoke primitive.
func (s *Scheduler) CancelAdHoc(ctx context.Context, taskName string, taskID string) error {
	if err := s.Store.SetCancelled(ctx, taskName, true); err != nil {
		return err
	}
	revoker, ok := s.Recurring.(interface {
		Revoke(ctx context.Context, taskID string) error
	})
	if !ok {
		return nil
	}
	return revoker.Revoke(ctx, taskID)
}

// validateTask enforces spec.md §4.4's "Invariants across every
// operation": the Task must exist, must not be cancelled, and every
// declared parameter must be present in the supplied map.
func (s *Scheduler) validateTask(ctx context.Context, taskName string, params map[string]any) (TaskInfo, error) {
	task, err := s.Catalog.GetTask(ctx, taskName)
	if err != nil {
		return TaskInfo{}, err
	}
	if task.CancelledYN {
		return TaskInfo{}, apperrors.Validation(fmt.Sprintf("task %q is cancelled", taskName), nil)
	}
	declared, ok := s.Catalog.ParametersFor(ctx, taskName)
	if ok {
		for _, p := range declared {
			if _, present := params[p]; !present {
				return TaskInfo{}, apperrors.Validation(
					fmt.Sprintf("missing required parameter %q for task %q", p, taskName), nil)
			}
		}
	}
	return task, nil
}

// DispatchEntry fires the executor invocation for a recurring entry Runner
// has determined is due, reusing the same argument-threading dispatchAdHoc
// applies to IMMEDIATE schedules. A Task cancelled since the entry was
// created is silently skipped rather than dispatched.
func (s *Scheduler) DispatchEntry(ctx context.Context, entry *Entry) error {
	task, err := s.Catalog.GetTask(ctx, entry.TaskName)
	if err != nil {
		return err
	}
	if task.CancelledYN {
		return nil
	}
	redbeatName := entry.Name
	return s.dispatchAdHoc(
		ctx, task, entry.UserScheduleName, &redbeatName, entry.Kind, entry.SchedulePayload, entry.Parameters,
	)
}

// dispatchAdHoc threads the arguments spec.md §4.4 names to the executor:
// script location, user task name, task name, user schedule name, redbeat
// schedule name, schedule type, schedule payload, plus the validated
// parameter map as named arguments.
func (s *Scheduler) dispatchAdHoc(
	ctx context.Context,
	task TaskInfo,
	userScheduleName string,
	redbeatName *string,
	scheduleType Type,
	payload Payload,
	params map[string]any,
) error {
	named := make(map[string]any, len(params)+7)
	for k, v := range params {
		named[k] = v
	}
	named["script_location"] = task.ScriptPath
	named["user_task_name"] = task.UserTaskName
	named["task_name"] = task.TaskName
	named["user_schedule_name"] = userScheduleName
	if redbeatName != nil {
		named["redbeat_schedule_name"] = *redbeatName
	}
	named["schedule_type"] = string(scheduleType)
	named["schedule"] = payload

	outcome, err := s.Registry.Invoke(ctx, task.Executor, task.ScriptPath, nil, named)
	if err != nil {
		return apperrors.Executor(err.Error(), err)
	}
	if outcome.Error != "" {
		logger.FromContext(ctx).Warn("ad-hoc dispatch executor error", "task", task.TaskName, "error", outcome.Error)
		return apperrors.Executor(outcome.Error, nil)
	}
	return nil
}
