package workflow

import (
	"context"
	"fmt"
	"time"

	"dario.cat/mergo"

	"github.com/compozy/workflows/internal/apperrors"
	"github.com/compozy/workflows/internal/executor"
	"github.com/compozy/workflows/internal/logger"
)

// TaskBinding resolves a TASK node's step_function into the executor kind
// and descriptor the Executor Registry needs.
type TaskBinding struct {
	Kind       executor.Kind
	Descriptor string
}

// TaskResolver looks up a Task's executor binding by task name (C2).
type TaskResolver func(ctx context.Context, taskName string) (TaskBinding, error)

// Repository is the subset of the Workflow Repository (C4) the Engine
// depends on.
type Repository interface {
	GetProcess(ctx context.Context, processID int64) (*Process, error)
	GetExecution(ctx context.Context, executionID int64) (*Execution, error)
	NodeTypeByShape(shapeName string) (NodeType, bool)
	CreateExecution(ctx context.Context, exec *Execution) (int64, error)
	FinalizeExecution(ctx context.Context, executionID int64, status ExecutionStatus, output map[string]any, errMsg string) error
	InsertStep(ctx context.Context, step *Step) (int64, error)
	FinalizeStep(ctx context.Context, stepID int64, status StepStatus, result map[string]any, errMsg string) error
}

// OnStepComplete is invoked after each Step row is finalized.
type OnStepComplete func(step *Step)

// Engine implements the Workflow Engine (C5): single-path graph traversal,
// gateway evaluation, task dispatch, and context propagation.
type Engine struct {
	Repo       Repository
	Registry   *executor.Registry
	Resolver   TaskResolver
	Gateway    *GatewayEvaluator
	MaxSteps   int
}

// NewEngine builds an Engine. maxSteps bounds traversal per Design Note §9
// "Cyclic references"; pass 0 to use the spec's default of 10,000.
func NewEngine(repo Repository, registry *executor.Registry, resolver TaskResolver, gw *GatewayEvaluator, maxSteps int) *Engine {
	if maxSteps <= 0 {
		maxSteps = 10000
	}
	return &Engine{Repo: repo, Registry: registry, Resolver: resolver, Gateway: gw, MaxSteps: maxSteps}
}

// InitializeExecution creates an Execution row in RUNNING and persists
// inputData. processID is nil for ad-hoc runs.
func (e *Engine) InitializeExecution(
	ctx context.Context,
	processID *int64,
	inputData map[string]any,
	userID string,
) (int64, error) {
	if processID != nil {
		if _, err := e.Repo.GetProcess(ctx, *processID); err != nil {
			return 0, apperrors.NotFound(fmt.Sprintf("process %d not found", *processID), err)
		}
	}
	exec := &Execution{
		ProcessID: processID,
		Status:    ExecutionRunning,
		InputData: inputData,
		StartDate: now(),
		CreatedBy: userID,
		UpdatedBy: userID,
	}
	id, err := e.Repo.CreateExecution(ctx, exec)
	if err != nil {
		return 0, fmt.Errorf("creating execution: %w", err)
	}
	return id, nil
}

// now is overridable in tests that need deterministic timestamps.
var now = time.Now

// Run is a convenience wrapper for synchronous callers: initialize then
// execute to completion, returning the final Execution row.
func (e *Engine) Run(
	ctx context.Context,
	processID int64,
	input map[string]any,
	userID string,
) (*Execution, error) {
	execID, err := e.InitializeExecution(ctx, &processID, input, userID)
	if err != nil {
		return nil, err
	}
	if err := e.ExecuteFromID(ctx, execID, nil, nil); err != nil {
		return nil, err
	}
	return e.Repo.GetExecution(ctx, execID)
}

// ExecuteFromID runs the workflow identified by executionID to a terminal
// state. structureOverride supplies the graph when the Execution has no
// ProcessID (an ad-hoc, dynamically-submitted run).
func (e *Engine) ExecuteFromID(
	ctx context.Context,
	executionID int64,
	onStep OnStepComplete,
	structureOverride *Structure,
) (err error) {
	log := logger.FromContext(ctx)
	structure, fatalErr := e.resolveStructure(ctx, executionID, structureOverride)
	if fatalErr != nil {
		_ = e.Repo.FinalizeExecution(ctx, executionID, ExecutionFailed, nil, fatalErr.Error())
		return fatalErr
	}

	idx := BuildIndex(*structure)
	start, findErr := FindStart(*structure, e.Repo.NodeTypeByShape)
	if findErr != nil {
		_ = e.Repo.FinalizeExecution(ctx, executionID, ExecutionFailed, nil, findErr.Error())
		return findErr
	}

	runCtx := map[string]any{}
	exec, getErr := e.Repo.GetExecution(ctx, executionID)
	if getErr != nil {
		_ = e.Repo.FinalizeExecution(ctx, executionID, ExecutionFailed, nil, getErr.Error())
		return fmt.Errorf("loading execution: %w", getErr)
	}
	for k, v := range exec.InputData {
		runCtx[k] = v
	}
	current := start
	steps := 0

	for current != nil {
		steps++
		if steps > e.MaxSteps {
			msg := "max step count exceeded"
			_ = e.Repo.FinalizeExecution(ctx, executionID, ExecutionFailed, nil, msg)
			return apperrors.Engine(msg, nil)
		}

		nt, ok := e.Repo.NodeTypeByShape(current.Data.Type)
		if !ok {
			msg := fmt.Sprintf("unknown node type %q", current.Data.Type)
			_ = e.Repo.FinalizeExecution(ctx, executionID, ExecutionFailed, nil, msg)
			return apperrors.Engine(msg, nil)
		}

		step := &Step{
			ExecutionID: executionID,
			NodeID:      current.ID,
			NodeLabel:   current.Data.Label,
			Status:      StepRunning,
			StartDate:   now(),
		}
		stepID, err := e.Repo.InsertStep(ctx, step)
		if err != nil {
			_ = e.Repo.FinalizeExecution(ctx, executionID, ExecutionFailed, nil, err.Error())
			return fmt.Errorf("inserting step: %w", err)
		}

		outcome := e.dispatch(ctx, nt, current, runCtx)

		finalStatus := StepCompleted
		if outcome.terminal {
			finalStatus = StepPassed
		}
		if outcome.skipped {
			finalStatus = StepSkipped
		}
		if outcome.failed {
			finalStatus = StepFailed
		}
		if ferr := e.Repo.FinalizeStep(ctx, stepID, finalStatus, outcome.result, outcome.errMsg); ferr != nil {
			log.Error("failed to finalize step", "error", ferr)
		}
		step.Status = finalStatus
		step.Result = outcome.result
		step.ErrorMessage = outcome.errMsg
		if onStep != nil {
			onStep(step)
		}

		if outcome.failed {
			_ = e.Repo.FinalizeExecution(ctx, executionID, ExecutionFailed, nil, outcome.errMsg)
			return nil
		}

		if outcome.result != nil {
			if err := mergo.Merge(&runCtx, outcome.result, mergo.WithOverride); err != nil {
				log.Warn("failed to merge step result into context", "error", err)
			}
		}

		if outcome.stop {
			_ = e.Repo.FinalizeExecution(ctx, executionID, ExecutionCompleted, runCtx, "")
			return nil
		}

		next, selErr := e.selectNext(nt, current, idx, runCtx)
		if selErr != nil {
			_ = e.Repo.FinalizeExecution(ctx, executionID, ExecutionFailed, nil, selErr.Error())
			return selErr
		}
		current = next
	}
	_ = e.Repo.FinalizeExecution(ctx, executionID, ExecutionCompleted, runCtx, "")
	return nil
}

func (e *Engine) resolveStructure(ctx context.Context, executionID int64, override *Structure) (*Structure, error) {
	if override != nil {
		return override, nil
	}
	exec, err := e.Repo.GetExecution(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("loading execution: %w", err)
	}
	if exec.ProcessID == nil {
		return nil, fmt.Errorf("workflow: execution has no process and no structure override supplied")
	}
	proc, err := e.Repo.GetProcess(ctx, *exec.ProcessID)
	if err != nil {
		return nil, fmt.Errorf("loading process: %w", err)
	}
	return &proc.Structure, nil
}

type stepOutcome struct {
	result   map[string]any
	errMsg   string
	failed   bool
	skipped  bool
	terminal bool
	stop     bool
}

func (e *Engine) dispatch(ctx context.Context, nt NodeType, node *Node, runCtx map[string]any) stepOutcome {
	switch nt.Behavior {
	case BehaviorEvent:
		out := stepOutcome{terminal: true}
		if node.ID == "Stop" || node.Data.Label == "Stop" {
			out.stop = true
		}
		return out
	case BehaviorGateway:
		return stepOutcome{terminal: true}
	case BehaviorTask:
		return e.dispatchTask(ctx, node, runCtx)
	default:
		return stepOutcome{failed: true, errMsg: fmt.Sprintf("unknown node behavior %q", nt.Behavior)}
	}
}

func (e *Engine) dispatchTask(ctx context.Context, node *Node, runCtx map[string]any) (out stepOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = stepOutcome{failed: true, errMsg: fmt.Sprintf("panic during task execution: %v", r)}
		}
	}()
	if node.Data.StepFunction == "" {
		return stepOutcome{skipped: true}
	}
	binding, err := e.Resolver(ctx, node.Data.StepFunction)
	if err != nil {
		return stepOutcome{failed: true, errMsg: err.Error()}
	}
	named := mergeContext(runCtx, node.Data.Attributes)
	result, err := e.Registry.Invoke(ctx, binding.Kind, binding.Descriptor, nil, named)
	if err != nil {
		return stepOutcome{failed: true, errMsg: err.Error()}
	}
	if result.Error != "" {
		return stepOutcome{failed: true, errMsg: result.Error, result: result.Result}
	}
	return stepOutcome{result: result.Result}
}

// mergeContext merges the node's static attributes over a copy of the
// running context, without mutating the caller's copy. Static attributes
// win only for this invocation; they never persist downstream unless the
// executor itself returns them.
func mergeContext(runCtx map[string]any, attrs []NodeAttribute) map[string]any {
	named := make(map[string]any, len(runCtx)+len(attrs))
	for k, v := range runCtx {
		named[k] = v
	}
	for _, a := range attrs {
		named[a.Name] = a.Value
	}
	return named
}

// selectNext picks the single successor node per spec.md §4.3 step 7: for
// GATEWAY nodes, first-matching condition wins, falling back to the
// is_default edge or else the first outgoing edge; for all other node
// kinds, the first outgoing edge (additional ones are ignored).
func (e *Engine) selectNext(nt NodeType, node *Node, idx *Index, runCtx map[string]any) (*Node, error) {
	edges := idx.EdgesBySrc[node.ID]
	if len(edges) == 0 {
		if nt.Behavior == BehaviorGateway {
			return nil, apperrors.Engine(fmt.Sprintf("gateway %q has no outgoing edges", node.ID), nil)
		}
		return nil, nil
	}
	if nt.Behavior != BehaviorGateway {
		return idx.NodesByID[edges[0].Target], nil
	}
	var defaultEdge *Edge
	for _, edge := range edges {
		cond := edge.Data.Condition
		if cond == nil {
			continue
		}
		if cond.IsDefault && defaultEdge == nil {
			defaultEdge = edge
		}
		if cond.IsDefault {
			continue
		}
		if e.Gateway.Evaluate(*cond, contextFieldAsString(runCtx, cond.Field)) {
			return idx.NodesByID[edge.Target], nil
		}
	}
	if defaultEdge != nil {
		return idx.NodesByID[defaultEdge.Target], nil
	}
	return idx.NodesByID[edges[0].Target], nil
}

// contextFieldAsString resolves an edge condition's field against the
// running context; unreferenced fields resolve to the empty string, per
// spec.md §4.3's safe operator set notes.
func contextFieldAsString(runCtx map[string]any, field string) string {
	v, ok := runCtx[field]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
