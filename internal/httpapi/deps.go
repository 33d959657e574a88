package httpapi

import (
	"context"

	"github.com/compozy/workflows/internal/paramanalyzer"
	"github.com/compozy/workflows/internal/scheduler"
	"github.com/compozy/workflows/internal/stream"
	"github.com/compozy/workflows/internal/workflow"
)

// WorkflowRepo is the subset of the Workflow Repository (C4) the HTTP
// Surface depends on directly (beyond what the Engine already needs).
type WorkflowRepo interface {
	workflow.Repository
	UpdateProcess(ctx context.Context, p *workflow.Process) error
	ListProcesses(ctx context.Context) ([]*workflow.Process, error)
	ProcessByName(ctx context.Context, name string) (*workflow.Process, error)
	DeleteProcess(ctx context.Context, processID int64) error
	DeleteProcessByName(ctx context.Context, name string) error
	UpsertNodeType(ctx context.Context, nt *workflow.NodeType) error
	ListNodeTypes(ctx context.Context) ([]workflow.NodeType, error)
	DeleteNodeType(ctx context.Context, shapeName string) error
	ListExecutions(ctx context.Context, processID *int64) ([]*workflow.Execution, error)
	ListSteps(ctx context.Context, executionID int64) ([]*workflow.Step, error)
}

// Deps bundles every collaborator the HTTP Surface's handlers close over.
type Deps struct {
	Engine         *workflow.Engine
	Repo           WorkflowRepo
	NodeTypeOf     func(shapeName string) (workflow.NodeType, bool)
	DeclaredParams paramanalyzer.DeclaredParams
	ScriptPath     paramanalyzer.ScriptPath
	StreamSource   stream.Source
	Scheduler      *scheduler.Scheduler
	MaxSteps       int
	Metrics        *Metrics
}
