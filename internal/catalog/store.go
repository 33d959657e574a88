package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/compozy/workflows/internal/apperrors"
	"github.com/compozy/workflows/internal/postgres"
)

var taskColumns = []string{
	"task_name", "user_task_name", "executor", "script_name", "script_path",
	"cancelled_yn", "created_at", "updated_at",
}

// Store implements persistence for Tasks, their Parameters, and Execution
// Methods, against a pgx-compatible pool or mock.
type Store struct {
	db postgres.DB
}

// NewStore builds a Store.
func NewStore(db postgres.DB) *Store {
	return &Store{db: db}
}

// UpsertTask inserts or updates a Task by its unique task_name, after
// validating t.Executor against the Execution Method registry — the row is
// how a Task's executor string is checked against the registered internal
// C1 kinds at creation time.
func (s *Store) UpsertTask(ctx context.Context, t *Task) error {
	if _, err := s.ExecutionMethodByKind(ctx, t.Executor); err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			return apperrors.Validation(fmt.Sprintf("unknown executor kind %q", t.Executor), err)
		}
		return err
	}
	query := `
		INSERT INTO tasks (task_name, user_task_name, executor, script_name, script_path, cancelled_yn)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (task_name) DO UPDATE SET
			user_task_name = $2,
			executor = $3,
			script_name = $4,
			script_path = $5,
			cancelled_yn = $6,
			updated_at = now()
	`
	_, err := s.db.Exec(ctx, query,
		t.TaskName, t.UserTaskName, t.Executor, t.ScriptName, t.ScriptPath, t.CancelledYN)
	if err != nil {
		return fmt.Errorf("upserting task: %w", err)
	}
	return nil
}

// GetTask loads a Task by name.
func (s *Store) GetTask(ctx context.Context, taskName string) (*Task, error) {
	query := fmt.Sprintf("SELECT %s FROM tasks WHERE task_name = $1", joinCols(taskColumns))
	var t Task
	if err := postgres.ScanOne(ctx, s.db, &t, query, taskName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound(fmt.Sprintf("task %q not found", taskName), err)
		}
		return nil, fmt.Errorf("scanning task: %w", err)
	}
	return &t, nil
}

// ListTasks returns every non-cancelled Task, ordered by name.
func (s *Store) ListTasks(ctx context.Context) ([]*Task, error) {
	sb := squirrel.Select(taskColumns...).
		From("tasks").
		Where(squirrel.Eq{"cancelled_yn": false}).
		OrderBy("task_name").
		PlaceholderFormat(squirrel.Dollar)
	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	var tasks []*Task
	if err := postgres.ScanAll(ctx, s.db, &tasks, sql, args...); err != nil {
		return nil, fmt.Errorf("scanning tasks: %w", err)
	}
	return tasks, nil
}

// ReplaceParameters atomically replaces a task's declared parameter set,
// preserving insertion order for the new rows.
func (s *Store) ReplaceParameters(ctx context.Context, taskName string, params []Parameter) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	var cbErr error
	defer func() {
		if cbErr != nil {
			_ = tx.Rollback(ctx)
			return
		}
		cbErr = tx.Commit(ctx)
	}()
	if _, err := tx.Exec(ctx, "DELETE FROM task_parameters WHERE task_name = $1", taskName); err != nil {
		cbErr = fmt.Errorf("clearing parameters: %w", err)
		return cbErr
	}
	for _, p := range params {
		_, err := tx.Exec(ctx,
			`INSERT INTO task_parameters (task_name, parameter_name, data_type, description)
			 VALUES ($1, $2, $3, $4)`,
			taskName, p.ParameterName, p.DataType, p.Description)
		if err != nil {
			cbErr = fmt.Errorf("inserting parameter %q: %w", p.ParameterName, err)
			return cbErr
		}
	}
	return cbErr
}

// ParametersFor returns a task's declared parameters in insertion order.
// ok is false when the task has no declared parameters and callers should
// fall back to static introspection (spec.md §4.6 step 4).
func (s *Store) ParametersFor(ctx context.Context, taskName string) (names []string, ok bool) {
	query := `
		SELECT parameter_name FROM task_parameters
		WHERE task_name = $1
		ORDER BY id ASC
	`
	var rows []string
	if err := postgres.ScanAll(ctx, s.db, &rows, query, taskName); err != nil {
		return nil, false
	}
	if len(rows) == 0 {
		return nil, false
	}
	return rows, true
}

// ParametersBatch resolves ParametersFor for every task name in one batch,
// per spec.md §4.6 step 3 ("in one batch, read DB-declared parameters").
func (s *Store) ParametersBatch(ctx context.Context, taskNames []string) (map[string][]string, error) {
	if len(taskNames) == 0 {
		return map[string][]string{}, nil
	}
	sb := squirrel.Select("task_name", "parameter_name").
		From("task_parameters").
		Where(squirrel.Eq{"task_name": taskNames}).
		OrderBy("task_name", "id ASC").
		PlaceholderFormat(squirrel.Dollar)
	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying parameters: %w", err)
	}
	defer rows.Close()
	out := map[string][]string{}
	for rows.Next() {
		var taskName, paramName string
		if err := rows.Scan(&taskName, &paramName); err != nil {
			return nil, fmt.Errorf("scanning parameter row: %w", err)
		}
		out[taskName] = append(out[taskName], paramName)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating parameter rows: %w", err)
	}
	return out, nil
}

// UpsertExecutionMethod inserts or updates an Execution Method by its
// unique internal_execution_method key.
func (s *Store) UpsertExecutionMethod(ctx context.Context, m *ExecutionMethod) error {
	query := `
		INSERT INTO execution_methods (name, internal_execution_method)
		VALUES ($1, $2)
		ON CONFLICT (internal_execution_method) DO UPDATE SET name = $1
	`
	_, err := s.db.Exec(ctx, query, m.Name, m.InternalExecutionMethod)
	if err != nil {
		return fmt.Errorf("upserting execution method: %w", err)
	}
	return nil
}

// ExecutionMethodByKind loads the Execution Method bound to an internal C1
// executor kind.
func (s *Store) ExecutionMethodByKind(ctx context.Context, kind string) (*ExecutionMethod, error) {
	query := `SELECT id, name, internal_execution_method FROM execution_methods WHERE internal_execution_method = $1`
	var m ExecutionMethod
	if err := postgres.ScanOne(ctx, s.db, &m, query, kind); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound(fmt.Sprintf("execution method %q not found", kind), err)
		}
		return nil, fmt.Errorf("scanning execution method: %w", err)
	}
	return &m, nil
}

func joinCols(cols []string) string {
	return strings.Join(cols, ", ")
}
