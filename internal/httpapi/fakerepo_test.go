package httpapi

import (
	"context"

	"github.com/compozy/workflows/internal/apperrors"
	"github.com/compozy/workflows/internal/workflow"
)

// fakeRepo is an in-memory WorkflowRepo sufficient to drive the HTTP
// Surface's handlers in isolation from Postgres.
type fakeRepo struct {
	processes  map[int64]*workflow.Process
	byName     map[string]int64
	nodeTypes  map[string]workflow.NodeType
	execs      map[int64]*workflow.Execution
	steps      map[int64][]*workflow.Step
	nextProcID int64
	nextExecID int64
	createErr  error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		processes: map[int64]*workflow.Process{},
		byName:    map[string]int64{},
		nodeTypes: map[string]workflow.NodeType{},
		execs:     map[int64]*workflow.Execution{},
		steps:     map[int64][]*workflow.Step{},
	}
}

func (f *fakeRepo) GetProcess(_ context.Context, id int64) (*workflow.Process, error) {
	p, ok := f.processes[id]
	if !ok {
		return nil, apperrors.NotFound("process not found", nil)
	}
	return p, nil
}

func (f *fakeRepo) ProcessByName(_ context.Context, name string) (*workflow.Process, error) {
	id, ok := f.byName[name]
	if !ok {
		return nil, apperrors.NotFound("process not found", nil)
	}
	return f.processes[id], nil
}

func (f *fakeRepo) ListProcesses(_ context.Context) ([]*workflow.Process, error) {
	out := make([]*workflow.Process, 0, len(f.processes))
	for _, p := range f.processes {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeRepo) CreateProcess(_ context.Context, p *workflow.Process) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.nextProcID++
	p.ProcessID = f.nextProcID
	f.processes[p.ProcessID] = p
	f.byName[p.ProcessName] = p.ProcessID
	return p.ProcessID, nil
}

func (f *fakeRepo) UpdateProcess(_ context.Context, p *workflow.Process) error {
	if _, ok := f.processes[p.ProcessID]; !ok {
		return apperrors.NotFound("process not found", nil)
	}
	f.processes[p.ProcessID] = p
	f.byName[p.ProcessName] = p.ProcessID
	return nil
}

func (f *fakeRepo) DeleteProcess(_ context.Context, id int64) error {
	p, ok := f.processes[id]
	if !ok {
		return apperrors.NotFound("process not found", nil)
	}
	delete(f.byName, p.ProcessName)
	delete(f.processes, id)
	return nil
}

func (f *fakeRepo) DeleteProcessByName(_ context.Context, name string) error {
	id, ok := f.byName[name]
	if !ok {
		return apperrors.NotFound("process not found", nil)
	}
	delete(f.processes, id)
	delete(f.byName, name)
	return nil
}

func (f *fakeRepo) NodeTypeByShape(shape string) (workflow.NodeType, bool) {
	nt, ok := f.nodeTypes[shape]
	return nt, ok
}

func (f *fakeRepo) UpsertNodeType(_ context.Context, nt *workflow.NodeType) error {
	f.nodeTypes[nt.ShapeName] = *nt
	return nil
}

func (f *fakeRepo) ListNodeTypes(_ context.Context) ([]workflow.NodeType, error) {
	out := make([]workflow.NodeType, 0, len(f.nodeTypes))
	for _, nt := range f.nodeTypes {
		out = append(out, nt)
	}
	return out, nil
}

func (f *fakeRepo) DeleteNodeType(_ context.Context, shapeName string) error {
	delete(f.nodeTypes, shapeName)
	return nil
}

func (f *fakeRepo) CreateExecution(_ context.Context, exec *workflow.Execution) (int64, error) {
	f.nextExecID++
	exec.ExecutionID = f.nextExecID
	f.execs[f.nextExecID] = exec
	return f.nextExecID, nil
}

func (f *fakeRepo) GetExecution(_ context.Context, id int64) (*workflow.Execution, error) {
	e, ok := f.execs[id]
	if !ok {
		return nil, apperrors.NotFound("execution not found", nil)
	}
	return e, nil
}

func (f *fakeRepo) ListExecutions(_ context.Context, processID *int64) ([]*workflow.Execution, error) {
	out := make([]*workflow.Execution, 0, len(f.execs))
	for _, e := range f.execs {
		if processID != nil && (e.ProcessID == nil || *e.ProcessID != *processID) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeRepo) FinalizeExecution(
	_ context.Context,
	id int64,
	status workflow.ExecutionStatus,
	output map[string]any,
	errMsg string,
) error {
	e, ok := f.execs[id]
	if !ok {
		return apperrors.NotFound("execution not found", nil)
	}
	e.Status = status
	e.OutputData = output
	e.ErrorMessage = errMsg
	return nil
}

func (f *fakeRepo) InsertStep(_ context.Context, step *workflow.Step) (int64, error) {
	step.StepID = int64(len(f.steps[step.ExecutionID]) + 1)
	f.steps[step.ExecutionID] = append(f.steps[step.ExecutionID], step)
	return step.StepID, nil
}

func (f *fakeRepo) FinalizeStep(
	_ context.Context,
	stepID int64,
	status workflow.StepStatus,
	result map[string]any,
	errMsg string,
) error {
	for _, steps := range f.steps {
		for _, s := range steps {
			if s.StepID == stepID {
				s.Status = status
				s.Result = result
				s.ErrorMessage = errMsg
				return nil
			}
		}
	}
	return apperrors.NotFound("step not found", nil)
}

func (f *fakeRepo) ListSteps(_ context.Context, executionID int64) ([]*workflow.Step, error) {
	return f.steps[executionID], nil
}
