package workflow

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

// processRow is the wire shape of the `processes` table.
type processRow struct {
	ProcessID   int64  `db:"process_id"`
	ProcessName string `db:"process_name"`
	Structure   []byte `db:"process_structure"`
	CreatedAt   any    `db:"created_at"`
	UpdatedAt   any    `db:"updated_at"`
	CreatedBy   string `db:"created_by"`
	UpdatedBy   string `db:"updated_by"`
}

func (r *processRow) toProcess() (*Process, error) {
	var structure Structure
	if len(r.Structure) > 0 {
		if err := json.Unmarshal(r.Structure, &structure); err != nil {
			return nil, fmt.Errorf("unmarshaling process structure: %w", err)
		}
	}
	return &Process{
		ProcessID:   r.ProcessID,
		ProcessName: r.ProcessName,
		Structure:   structure,
		CreatedBy:   r.CreatedBy,
		UpdatedBy:   r.UpdatedBy,
	}, nil
}

// PostgresRepository implements Repository (C4) against a pgx-compatible
// pool: Processes, Node Types, Executions, and Steps, with unique
// process_name/shape_name and cascade-deleted Steps.
type PostgresRepository struct {
	db postgres.DB
}

// NewPostgresRepository builds a PostgresRepository.
func NewPostgresRepository(db postgres.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateProcess inserts a new Process, enforcing unique process_name via the
// table's UNIQUE constraint.
func (r *PostgresRepository) CreateProcess(ctx context.Context, p *Process) (int64, error) {
	structureJSON, err := postgres.ToJSONB(p.Structure)
	if err != nil {
		return 0, fmt.Errorf("marshaling structure: %w", err)
	}
	query := `
		INSERT INTO processes (process_name, process_structure, created_by, updated_by)
		VALUES ($1, $2, $3, $4)
		RETURNING process_id
	`
	var id int64
	err = r.db.QueryRow(ctx, query, p.ProcessName, structureJSON, p.CreatedBy, p.UpdatedBy).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting process: %w", err)
	}
	return id, nil
}

// UpdateProcess replaces an existing Process's structure.
func (r *PostgresRepository) UpdateProcess(ctx context.Context, p *Process) error {
	structureJSON, err := postgres.ToJSONB(p.Structure)
	if err != nil {
		return fmt.Errorf("marshaling structure: %w", err)
	}
	query := `
		UPDATE processes SET process_name = $1, process_structure = $2, updated_by = $3, updated_at = now()
		WHERE process_id = $4
	`
	tag, err := r.db.Exec(ctx, query, p.ProcessName, structureJSON, p.UpdatedBy, p.ProcessID)
	if err != nil {
		return fmt.Errorf("updating process: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound(fmt.Sprintf("process %d not found", p.ProcessID), nil)
	}
	return nil
}

// GetProcess loads a Process by id.
func (r *PostgresRepository) GetProcess(ctx context.Context, processID int64) (*Process, error) {
	query := `
		SELECT process_id, process_name, process_structure, created_by, updated_by
		FROM processes WHERE process_id = $1
	`
	var row processRow
	if err := postgres.ScanOne(ctx, r.db, &row, query, processID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound(fmt.Sprintf("process %d not found", processID), err)
		}
		return nil, fmt.Errorf("scanning process: %w", err)
	}
	return row.toProcess()
}

// ProcessByName loads a Process by its unique process_name.
func (r *PostgresRepository) ProcessByName(ctx context.Context, name string) (*Process, error) {
	query := `
		SELECT process_id, process_name, process_structure, created_by, updated_by
		FROM processes WHERE process_name = $1
	`
	var row processRow
	if err := postgres.ScanOne(ctx, r.db, &row, query, name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound(fmt.Sprintf("process %q not found", name), err)
		}
		return nil, fmt.Errorf("scanning process: %w", err)
	}
	return row.toProcess()
}

// ListProcesses returns every Process, ordered by name.
func (r *PostgresRepository) ListProcesses(ctx context.Context) ([]*Process, error) {
	query := `
		SELECT process_id, process_name, process_structure, created_by, updated_by
		FROM processes ORDER BY process_name
	`
	var rows []processRow
	if err := postgres.ScanAll(ctx, r.db, &rows, query); err != nil {
		return nil, fmt.Errorf("scanning processes: %w", err)
	}
	out := make([]*Process, 0, len(rows))
	for i := range rows {
		p, err := rows[i].toProcess()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// DeleteProcess removes a Process. Executions are not owned by the Process
// (process_id is nullable on Execution) and survive deletion.
func (r *PostgresRepository) DeleteProcess(ctx context.Context, processID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM processes WHERE process_id = $1`, processID)
	if err != nil {
		return fmt.Errorf("deleting process: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound(fmt.Sprintf("process %d not found", processID), nil)
	}
	return nil
}

// DeleteProcessByName removes a Process by its unique process_name.
func (r *PostgresRepository) DeleteProcessByName(ctx context.Context, name string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM processes WHERE process_name = $1`, name)
	if err != nil {
		return fmt.Errorf("deleting process: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound(fmt.Sprintf("process %q not found", name), nil)
	}
	return nil
}

// UpsertNodeType inserts or updates a Node Type by its unique shape_name.
func (r *PostgresRepository) UpsertNodeType(ctx context.Context, nt *NodeType) error {
	query := `
		INSERT INTO node_types (shape_name, behavior, display_name, requires_step_function, description)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (shape_name) DO UPDATE SET
			behavior = $2, display_name = $3, requires_step_function = $4, description = $5
	`
	_, err := r.db.Exec(ctx, query, nt.ShapeName, nt.Behavior, nt.DisplayName, nt.RequiresStepFunction, nt.Description)
	if err != nil {
		return fmt.Errorf("upserting node type: %w", err)
	}
	return nil
}

// NodeTypeByShape loads a Node Type by its shape_name — the dominant read
// pattern (looked up at every engine step); callers should wrap this with
// NodeTypeCache.
func (r *PostgresRepository) NodeTypeByShape(shapeName string) (NodeType, bool) {
	query := `
		SELECT node_type_id, shape_name, behavior, display_name, requires_step_function, description
		FROM node_types WHERE shape_name = $1
	`
	var nt NodeType
	if err := postgres.ScanOne(context.Background(), r.db, &nt, query, shapeName); err != nil {
		return NodeType{}, false
	}
	return nt, true
}

// ListNodeTypes returns every registered Node Type.
func (r *PostgresRepository) ListNodeTypes(ctx context.Context) ([]NodeType, error) {
	query := `
		SELECT node_type_id, shape_name, behavior, display_name, requires_step_function, description
		FROM node_types ORDER BY shape_name
	`
	var rows []NodeType
	if err := postgres.ScanAll(ctx, r.db, &rows, query); err != nil {
		return nil, fmt.Errorf("scanning node types: %w", err)
	}
	return rows, nil
}

// DeleteNodeType removes a Node Type by shape_name.
func (r *PostgresRepository) DeleteNodeType(ctx context.Context, shapeName string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM node_types WHERE shape_name = $1`, shapeName)
	if err != nil {
		return fmt.Errorf("deleting node type: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound(fmt.Sprintf("node type %q not found", shapeName), nil)
	}
	return nil
}

// CreateExecution inserts a new Execution row.
func (r *PostgresRepository) CreateExecution(ctx context.Context, exec *Execution) (int64, error) {
	inputJSON, err := postgres.ToJSONB(exec.InputData)
	if err != nil {
		return 0, fmt.Errorf("marshaling input: %w", err)
	}
	query := `
		INSERT INTO executions (
			process_id, execution_status, input_data, execution_start_date, created_by, updated_by
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING def_process_execution_id
	`
	var id int64
	err = r.db.QueryRow(ctx, query,
		exec.ProcessID, exec.Status, inputJSON, exec.StartDate, exec.CreatedBy, exec.UpdatedBy).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting execution: %w", err)
	}
	return id, nil
}

// GetExecution loads an Execution by id.
func (r *PostgresRepository) GetExecution(ctx context.Context, executionID int64) (*Execution, error) {
	query := `
		SELECT def_process_execution_id, process_id, execution_status, input_data, output_data,
		       error_message, execution_start_date, execution_end_date, created_by, updated_by
		FROM executions WHERE def_process_execution_id = $1
	`
	var row executionRow
	if err := postgres.ScanOne(ctx, r.db, &row, query, executionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound(fmt.Sprintf("execution %d not found", executionID), err)
		}
		return nil, fmt.Errorf("scanning execution: %w", err)
	}
	return row.toExecution()
}

// ListExecutions returns Executions, most recent first, optionally filtered
// by ProcessID.
func (r *PostgresRepository) ListExecutions(ctx context.Context, processID *int64) ([]*Execution, error) {
	sb := squirrel.Select(
		"def_process_execution_id", "process_id", "execution_status", "input_data", "output_data",
		"error_message", "execution_start_date", "execution_end_date", "created_by", "updated_by",
	).From("executions").OrderBy("execution_start_date DESC").PlaceholderFormat(squirrel.Dollar)
	if processID != nil {
		sb = sb.Where(squirrel.Eq{"process_id": *processID})
	}
	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	var rows []executionRow
	if err := postgres.ScanAll(ctx, r.db, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("scanning executions: %w", err)
	}
	out := make([]*Execution, 0, len(rows))
	for i := range rows {
		e, err := rows[i].toExecution()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// FinalizeExecution sets the terminal status, output, and end date; an
// Execution must never remain RUNNING after the engine returns.
func (r *PostgresRepository) FinalizeExecution(
	ctx context.Context,
	executionID int64,
	status ExecutionStatus,
	output map[string]any,
	errMsg string,
) error {
	outputJSON, err := postgres.ToJSONB(output)
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	query := `
		UPDATE executions SET execution_status = $1, output_data = $2, error_message = $3, execution_end_date = now()
		WHERE def_process_execution_id = $4
	`
	if _, err := r.db.Exec(ctx, query, status, outputJSON, nullableString(errMsg), executionID); err != nil {
		return fmt.Errorf("finalizing execution: %w", err)
	}
	return nil
}

// InsertStep inserts a new Step row; invariant: at most one RUNNING step per
// Execution is the caller's (Engine's) responsibility to uphold by running
// single-threaded within a run.
func (r *PostgresRepository) InsertStep(ctx context.Context, step *Step) (int64, error) {
	query := `
		INSERT INTO execution_steps (def_process_execution_id, node_id, node_label, status, execution_start_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING def_execution_step_id
	`
	var id int64
	err := r.db.QueryRow(ctx, query,
		step.ExecutionID, step.NodeID, step.NodeLabel, step.Status, step.StartDate).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting step: %w", err)
	}
	return id, nil
}

// FinalizeStep sets a Step's terminal status, result, and end timestamp.
func (r *PostgresRepository) FinalizeStep(
	ctx context.Context,
	stepID int64,
	status StepStatus,
	result map[string]any,
	errMsg string,
) error {
	resultJSON, err := postgres.ToJSONB(result)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	query := `
		UPDATE execution_steps SET status = $1, result = $2, error_message = $3, execution_end_date = now()
		WHERE def_execution_step_id = $4
	`
	if _, err := r.db.Exec(ctx, query, status, resultJSON, nullableString(errMsg), stepID); err != nil {
		return fmt.Errorf("finalizing step: %w", err)
	}
	return nil
}

// ListSteps returns an Execution's Steps in visitation order (monotonically
// non-decreasing execution_start_date, per spec.md §5's ordering guarantee).
func (r *PostgresRepository) ListSteps(ctx context.Context, executionID int64) ([]*Step, error) {
	query := `
		SELECT def_execution_step_id, def_process_execution_id, node_id, node_label, status,
		       result, error_message, execution_start_date, execution_end_date
		FROM execution_steps WHERE def_process_execution_id = $1 ORDER BY execution_start_date ASC, def_execution_step_id ASC
	`
	var rows []stepRow
	if err := postgres.ScanAll(ctx, r.db, &rows, query, executionID); err != nil {
		return nil, fmt.Errorf("scanning steps: %w", err)
	}
	out := make([]*Step, 0, len(rows))
	for i := range rows {
		s, err := rows[i].toStep()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// ListStepsSince returns Steps whose id is greater than afterStepID, for the
// Execution Stream's incremental poll.
func (r *PostgresRepository) ListStepsSince(ctx context.Context, executionID int64, afterStepID int64) ([]*Step, error) {
	query := `
		SELECT def_execution_step_id, def_process_execution_id, node_id, node_label, status,
		       result, error_message, execution_start_date, execution_end_date
		FROM execution_steps
		WHERE def_process_execution_id = $1 AND def_execution_step_id > $2
		ORDER BY def_execution_step_id ASC
	`
	var rows []stepRow
	if err := postgres.ScanAll(ctx, r.db, &rows, query, executionID, afterStepID); err != nil {
		return nil, fmt.Errorf("scanning steps: %w", err)
	}
	out := make([]*Step, 0, len(rows))
	for i := range rows {
		s, err := rows[i].toStep()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

type executionRow struct {
	ExecutionID int64  `db:"def_process_execution_id"`
	ProcessID   *int64 `db:"process_id"`
	Status      string `db:"execution_status"`
	InputData   []byte `db:"input_data"`
	OutputData  []byte `db:"output_data"`
	ErrorMsg    *string `db:"error_message"`
	StartDate   any    `db:"execution_start_date"`
	EndDate     any    `db:"execution_end_date"`
	CreatedBy   string `db:"created_by"`
	UpdatedBy   string `db:"updated_by"`
}

func (r *executionRow) toExecution() (*Execution, error) {
	input, err := postgres.ToJSONMap(r.InputData)
	if err != nil {
		return nil, err
	}
	output, err := postgres.ToJSONMap(r.OutputData)
	if err != nil {
		return nil, err
	}
	errMsg := ""
	if r.ErrorMsg != nil {
		errMsg = *r.ErrorMsg
	}
	return &Execution{
		ExecutionID:  r.ExecutionID,
		ProcessID:    r.ProcessID,
		Status:       ExecutionStatus(r.Status),
		InputData:    input,
		OutputData:   output,
		ErrorMessage: errMsg,
		CreatedBy:    r.CreatedBy,
		UpdatedBy:    r.UpdatedBy,
	}, nil
}

type stepRow struct {
	StepID      int64   `db:"def_execution_step_id"`
	ExecutionID int64   `db:"def_process_execution_id"`
	NodeID      string  `db:"node_id"`
	NodeLabel   string  `db:"node_label"`
	Status      string  `db:"status"`
	Result      []byte  `db:"result"`
	ErrorMsg    *string `db:"error_message"`
	StartDate   any     `db:"execution_start_date"`
	EndDate     any     `db:"execution_end_date"`
}

func (r *stepRow) toStep() (*Step, error) {
	result, err := postgres.ToJSONMap(r.Result)
	if err != nil {
		return nil, err
	}
	errMsg := ""
	if r.ErrorMsg != nil {
		errMsg = *r.ErrorMsg
	}
	return &Step{
		StepID:       r.StepID,
		ExecutionID:  r.ExecutionID,
		NodeID:       r.NodeID,
		NodeLabel:    r.NodeLabel,
		Status:       StepStatus(r.Status),
		Result:       result,
		ErrorMessage: errMsg,
	}, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
