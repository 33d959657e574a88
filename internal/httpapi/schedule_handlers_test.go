package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/workflows/internal/apperrors"
	"github.com/compozy/workflows/internal/executor"
	"github.com/compozy/workflows/internal/scheduler"
)

type stubCatalog struct {
	tasks map[string]scheduler.TaskInfo
}

func (c *stubCatalog) GetTask(_ context.Context, taskName string) (scheduler.TaskInfo, error) {
	t, ok := c.tasks[taskName]
	if !ok {
		return scheduler.TaskInfo{}, apperrors.NotFound("task not found", nil)
	}
	return t, nil
}

func (c *stubCatalog) ParametersFor(_ context.Context, _ string) ([]string, bool) {
	return nil, false
}

type stubRecurring struct{}

func (stubRecurring) Put(_ context.Context, _ *scheduler.Entry) error { return nil }
func (stubRecurring) Delete(_ context.Context, _ string) error        { return nil }
func (stubRecurring) Get(_ context.Context, _ string) (*scheduler.Entry, bool, error) {
	return nil, false, nil
}
func (stubRecurring) List(_ context.Context) ([]*scheduler.Entry, error) { return nil, nil }

type noopInvoker struct{}

func (noopInvoker) Invoke(
	_ context.Context,
	_ string,
	_ []any,
	_ map[string]any,
) (*executor.Outcome, error) {
	return &executor.Outcome{Result: map[string]any{"ok": true}}, nil
}

func newScheduleTestDeps(t *testing.T) (*Deps, pgxmock.PgxPoolIface) {
	t.Helper()
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	registry := executor.NewRegistry()
	registry.Register(executor.KindHTTP, noopInvoker{})
	catalog := &stubCatalog{
		tasks: map[string]scheduler.TaskInfo{
			"send_report": {TaskName: "send_report", Executor: executor.KindHTTP, ScriptPath: "http://x"},
		},
	}
	store := scheduler.NewStore(pool)
	sched := scheduler.New(catalog, store, stubRecurring{}, registry)
	return &Deps{Scheduler: sched}, pool
}

func newScheduleRouter(deps *Deps) *gin.Engine {
	r := gin.New()
	r.POST("/Create_TaskSchedule", deps.CreateTaskSchedule)
	r.PUT("/Cancel_AdHoc_Task/:task_name/:user_schedule_name/:schedule_id/:task_id", deps.CancelAdHocTask)
	return r
}

func TestCreateTaskSchedule(t *testing.T) {
	t.Run("Should reject a request body missing required fields", func(t *testing.T) {
		deps, _ := newScheduleTestDeps(t)
		r := newScheduleRouter(deps)
		w := doJSON(r, http.MethodPost, "/Create_TaskSchedule", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Should dispatch an IMMEDIATE schedule without a DB round trip (S6)", func(t *testing.T) {
		deps, _ := newScheduleTestDeps(t)
		r := newScheduleRouter(deps)
		w := doJSON(r, http.MethodPost, "/Create_TaskSchedule", createScheduleBody{
			UserScheduleName: "run-now",
			TaskName:         "send_report",
			ScheduleType:     scheduler.TypeImmediate,
		})
		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("Should 404 when the task is unknown", func(t *testing.T) {
		deps, _ := newScheduleTestDeps(t)
		r := newScheduleRouter(deps)
		w := doJSON(r, http.MethodPost, "/Create_TaskSchedule", createScheduleBody{
			UserScheduleName: "run-now",
			TaskName:         "does_not_exist",
			ScheduleType:     scheduler.TypeImmediate,
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCancelAdHocTask(t *testing.T) {
	t.Run("Should acknowledge cancellation of an ad hoc task", func(t *testing.T) {
		deps, pool := newScheduleTestDeps(t)
		pool.ExpectExec("UPDATE task_schedules SET cancelled_yn").
			WithArgs(true, "send_report").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		r := newScheduleRouter(deps)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(
			http.MethodPut,
			"/Cancel_AdHoc_Task/send_report/run-now/1/task-123",
			nil,
		)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, pool.ExpectationsWereMet())
	})
}
