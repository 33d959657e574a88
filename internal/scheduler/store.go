package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/compozy/workflows/internal/apperrors"
	"github.com/compozy/workflows/internal/postgres"
)

var scheduleColumns = []string{
	"schedule_id", "user_schedule_name", "redbeat_schedule_name", "task_name",
	"args", "kwargs", "parameters", "schedule_type", "schedule_payload",
	"cancelled_yn", "created_at", "updated_at",
}

// scheduleRow is the wire shape of the `task_schedules` table.
type scheduleRow struct {
	ID                  int64   `db:"schedule_id"`
	UserScheduleName    string  `db:"user_schedule_name"`
	RedbeatScheduleName *string `db:"redbeat_schedule_name"`
	TaskName            string  `db:"task_name"`
	Args                []byte  `db:"args"`
	Kwargs              []byte  `db:"kwargs"`
	Parameters          []byte  `db:"parameters"`
	ScheduleType        string  `db:"schedule_type"`
	SchedulePayload     []byte  `db:"schedule_payload"`
	CancelledYN         bool    `db:"cancelled_yn"`
	CreatedAt           any     `db:"created_at"`
	UpdatedAt           any     `db:"updated_at"`
}

func (r *scheduleRow) toSchedule() (*Schedule, error) {
	s := &Schedule{
		ID:                  r.ID,
		UserScheduleName:    r.UserScheduleName,
		RedbeatScheduleName: r.RedbeatScheduleName,
		TaskName:            r.TaskName,
		ScheduleType:        Type(r.ScheduleType),
		CancelledYN:         r.CancelledYN,
	}
	if len(r.Args) > 0 {
		if err := json.Unmarshal(r.Args, &s.Args); err != nil {
			return nil, fmt.Errorf("unmarshaling args: %w", err)
		}
	}
	if len(r.Kwargs) > 0 {
		if err := json.Unmarshal(r.Kwargs, &s.Kwargs); err != nil {
			return nil, fmt.Errorf("unmarshaling kwargs: %w", err)
		}
	}
	if len(r.Parameters) > 0 {
		if err := json.Unmarshal(r.Parameters, &s.Parameters); err != nil {
			return nil, fmt.Errorf("unmarshaling parameters: %w", err)
		}
	}
	if len(r.SchedulePayload) > 0 {
		if err := json.Unmarshal(r.SchedulePayload, &s.Schedule); err != nil {
			return nil, fmt.Errorf("unmarshaling schedule payload: %w", err)
		}
	}
	return s, nil
}

// Store persists Schedule rows against a pgx-compatible pool.
type Store struct {
	db postgres.DB
}

// NewStore builds a Store.
func NewStore(db postgres.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new Schedule row. Callers must have already written the
// recurring store entry (store-first ordering, per spec.md §4.4).
func (s *Store) Create(ctx context.Context, sch *Schedule) (int64, error) {
	argsJSON, err := postgres.ToJSONB(sch.Args)
	if err != nil {
		return 0, fmt.Errorf("marshaling args: %w", err)
	}
	kwargsJSON, err := postgres.ToJSONB(sch.Kwargs)
	if err != nil {
		return 0, fmt.Errorf("marshaling kwargs: %w", err)
	}
	paramsJSON, err := postgres.ToJSONB(sch.Parameters)
	if err != nil {
		return 0, fmt.Errorf("marshaling parameters: %w", err)
	}
	payloadJSON, err := postgres.ToJSONB(sch.Schedule)
	if err != nil {
		return 0, fmt.Errorf("marshaling schedule payload: %w", err)
	}
	query := `
		INSERT INTO task_schedules (
			user_schedule_name, redbeat_schedule_name, task_name, args, kwargs,
			parameters, schedule_type, schedule_payload, cancelled_yn
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING schedule_id
	`
	var id int64
	err = s.db.QueryRow(ctx, query,
		sch.UserScheduleName, sch.RedbeatScheduleName, sch.TaskName, argsJSON, kwargsJSON,
		paramsJSON, string(sch.ScheduleType), payloadJSON, sch.CancelledYN).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting schedule: %w", err)
	}
	return id, nil
}

// GetByTaskName loads the most recent Schedule (highest schedule_id) for a
// task name, whether or not it is cancelled.
func (s *Store) GetByTaskName(ctx context.Context, taskName string) (*Schedule, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM task_schedules WHERE task_name = $1 ORDER BY schedule_id DESC LIMIT 1",
		joinCols(scheduleColumns),
	)
	var row scheduleRow
	if err := postgres.ScanOne(ctx, s.db, &row, query, taskName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound(fmt.Sprintf("schedule for task %q not found", taskName), err)
		}
		return nil, fmt.Errorf("scanning schedule: %w", err)
	}
	return row.toSchedule()
}

// List returns every Schedule, most recently created first.
func (s *Store) List(ctx context.Context) ([]*Schedule, error) {
	query := fmt.Sprintf("SELECT %s FROM task_schedules ORDER BY schedule_id DESC", joinCols(scheduleColumns))
	var rows []scheduleRow
	if err := postgres.ScanAll(ctx, s.db, &rows, query); err != nil {
		return nil, fmt.Errorf("scanning schedules: %w", err)
	}
	out := make([]*Schedule, 0, len(rows))
	for i := range rows {
		sch, err := rows[i].toSchedule()
		if err != nil {
			return nil, err
		}
		out = append(out, sch)
	}
	return out, nil
}

// ListPage returns a paginated, optionally name-filtered slice of Schedules,
// for the Show_TaskSchedules paginated/search endpoint variants.
func (s *Store) ListPage(ctx context.Context, search string, limit, offset int) ([]*Schedule, error) {
	sb := squirrel.Select(scheduleColumns...).From("task_schedules").PlaceholderFormat(squirrel.Dollar)
	if search != "" {
		sb = sb.Where(squirrel.ILike{"user_schedule_name": "%" + search + "%"})
	}
	sb = sb.OrderBy("schedule_id DESC").Limit(uint64(limit)).Offset(uint64(offset))
	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	var rows []scheduleRow
	if err := postgres.ScanAll(ctx, s.db, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("scanning schedules: %w", err)
	}
	out := make([]*Schedule, 0, len(rows))
	for i := range rows {
		sch, err := rows[i].toSchedule()
		if err != nil {
			return nil, err
		}
		out = append(out, sch)
	}
	return out, nil
}

// SetCancelled flips cancelled_yn for a Schedule row.
func (s *Store) SetCancelled(ctx context.Context, taskName string, cancelled bool) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE task_schedules SET cancelled_yn = $1, updated_at = now() WHERE task_name = $2`,
		cancelled, taskName)
	if err != nil {
		return fmt.Errorf("updating cancelled_yn: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound(fmt.Sprintf("schedule for task %q not found", taskName), nil)
	}
	return nil
}

// UpdateRedbeatName rewrites a Schedule's redbeat_schedule_name, used by
// Reschedule when a fresh store entry is created under a new name.
func (s *Store) UpdateRedbeatName(ctx context.Context, taskName string, redbeatName *string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE task_schedules SET redbeat_schedule_name = $1, updated_at = now() WHERE task_name = $2`,
		redbeatName, taskName)
	if err != nil {
		return fmt.Errorf("updating redbeat_schedule_name: %w", err)
	}
	return nil
}

func joinCols(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}
