package httpapi

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/compozy/workflows/internal/apperrors"
	"github.com/compozy/workflows/internal/logger"
	"github.com/compozy/workflows/internal/paramanalyzer"
	"github.com/compozy/workflows/internal/postgres"
	"github.com/compozy/workflows/internal/workflow"
)

// createWorkflowBody is the body of POST /workflow.
type createWorkflowBody struct {
	ProcessName      string             `json:"process_name" binding:"required"`
	ProcessStructure workflow.Structure `json:"process_structure" binding:"required"`
}

// CreateWorkflow handles POST /workflow.
func (d *Deps) CreateWorkflow(c *gin.Context) {
	var body createWorkflowBody
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, apperrors.Validation("invalid request body", err))
		return
	}
	proc := &workflow.Process{
		ProcessName: body.ProcessName,
		Structure:   body.ProcessStructure,
		CreatedBy:   UserID(c),
		UpdatedBy:   UserID(c),
	}
	id, err := d.Repo.CreateProcess(c.Request.Context(), proc)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			RespondError(c, apperrors.Conflict("a workflow with this process_name already exists", err))
			return
		}
		RespondError(c, err)
		return
	}
	proc.ProcessID = id
	RespondCreated(c, proc)
}

// updateWorkflowBody is the body of PUT /workflow.
type updateWorkflowBody struct {
	ProcessName      string              `json:"process_name"`
	ProcessStructure *workflow.Structure `json:"process_structure"`
}

// UpdateWorkflow handles PUT /workflow?process_id=….
func (d *Deps) UpdateWorkflow(c *gin.Context) {
	processID, err := strconv.ParseInt(c.Query("process_id"), 10, 64)
	if err != nil {
		RespondError(c, apperrors.Validation("process_id query parameter is required", err))
		return
	}
	existing, err := d.Repo.GetProcess(c.Request.Context(), processID)
	if err != nil {
		RespondError(c, err)
		return
	}
	var body updateWorkflowBody
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, apperrors.Validation("invalid request body", err))
		return
	}
	if body.ProcessName != "" {
		existing.ProcessName = body.ProcessName
	}
	if body.ProcessStructure != nil {
		existing.Structure = *body.ProcessStructure
	}
	existing.UpdatedBy = UserID(c)
	if err := d.Repo.UpdateProcess(c.Request.Context(), existing); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, existing)
}

// GetWorkflows handles GET /workflow[?process_id|process_name].
func (d *Deps) GetWorkflows(c *gin.Context) {
	ctx := c.Request.Context()
	if raw := c.Query("process_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			RespondError(c, apperrors.Validation("invalid process_id", err))
			return
		}
		proc, err := d.Repo.GetProcess(ctx, id)
		if err != nil {
			RespondError(c, err)
			return
		}
		RespondOK(c, []*workflow.Process{proc})
		return
	}
	if name := c.Query("process_name"); name != "" {
		proc, err := d.Repo.ProcessByName(ctx, name)
		if err != nil {
			RespondError(c, err)
			return
		}
		RespondOK(c, []*workflow.Process{proc})
		return
	}
	procs, err := d.Repo.ListProcesses(ctx)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, procs)
}

// DeleteWorkflow handles DELETE /workflow?process_id|process_name.
func (d *Deps) DeleteWorkflow(c *gin.Context) {
	ctx := c.Request.Context()
	if raw := c.Query("process_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			RespondError(c, apperrors.Validation("invalid process_id", err))
			return
		}
		if err := d.Repo.DeleteProcess(ctx, id); err != nil {
			RespondError(c, err)
			return
		}
		RespondOK(c, gin.H{"deleted": true})
		return
	}
	if name := c.Query("process_name"); name != "" {
		if err := d.Repo.DeleteProcessByName(ctx, name); err != nil {
			RespondError(c, err)
			return
		}
		RespondOK(c, gin.H{"deleted": true})
		return
	}
	RespondError(c, apperrors.Validation("process_id or process_name query parameter is required", nil))
}

// validateWorkflowBody is the body of POST /workflow/validate.
type validateWorkflowBody struct {
	ProcessStructure workflow.Structure `json:"process_structure" binding:"required"`
}

// ValidateWorkflow handles POST /workflow/validate.
func (d *Deps) ValidateWorkflow(c *gin.Context) {
	var body validateWorkflowBody
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, apperrors.Validation("invalid request body", err))
		return
	}
	errs := workflow.Validate(body.ProcessStructure, d.NodeTypeOf)
	c.JSON(200, gin.H{"valid": len(errs) == 0, "errors": errs})
}

// requiredParamsBody is the body of POST /workflow/required_params.
type requiredParamsBody struct {
	Nodes []workflow.Node `json:"nodes"`
	Edges []workflow.Edge `json:"edges"`
}

// RequiredParams handles POST /workflow/required_params.
func (d *Deps) RequiredParams(c *gin.Context) {
	var body requiredParamsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, apperrors.Validation("invalid request body", err))
		return
	}
	structure := workflow.Structure{Nodes: body.Nodes, Edges: body.Edges}
	inputs := paramanalyzer.Analyze(c.Request.Context(), structure, d.NodeTypeOf, d.DeclaredParams, d.ScriptPath)
	c.JSON(200, gin.H{
		"workflow_inputs":     inputs,
		"has_required_inputs": len(inputs) > 0,
		"total_inputs":        len(inputs),
	})
}

// runWorkflowBody is the body of POST /workflow/run/<process_id>.
type runWorkflowBody struct {
	Context map[string]any `json:"context"`
}

// RunWorkflow handles POST /workflow/run/<process_id>: initializes the
// Execution synchronously then hands traversal off to a background worker
// the request handler does not wait on, per spec.md §5.
func (d *Deps) RunWorkflow(c *gin.Context) {
	processID, err := strconv.ParseInt(c.Param("process_id"), 10, 64)
	if err != nil {
		RespondError(c, apperrors.Validation("invalid process_id", err))
		return
	}
	var body runWorkflowBody
	_ = c.ShouldBindJSON(&body)
	execID, err := d.Engine.InitializeExecution(c.Request.Context(), &processID, body.Context, UserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	d.runInBackground(c.Request.Context(), execID, nil)
	RespondAccepted(c, gin.H{"def_process_execution_id": execID, "status": "RUNNING"})
}

// runDynamicBody is the body of POST /workflow/run_dynamic.
type runDynamicBody struct {
	ProcessStructure workflow.Structure `json:"process_structure" binding:"required"`
	Context          map[string]any     `json:"context"`
}

// RunDynamic handles POST /workflow/run_dynamic: validates the submitted
// graph, then runs it ad hoc (no persisted process_id).
func (d *Deps) RunDynamic(c *gin.Context) {
	var body runDynamicBody
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, apperrors.Validation("invalid request body", err))
		return
	}
	if errs := workflow.Validate(body.ProcessStructure, d.NodeTypeOf); len(errs) > 0 {
		c.JSON(400, gin.H{"valid": false, "errors": errs})
		return
	}
	execID, err := d.Engine.InitializeExecution(c.Request.Context(), nil, body.Context, UserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	structure := body.ProcessStructure
	d.runInBackground(c.Request.Context(), execID, &structure)
	RespondAccepted(c, gin.H{"def_process_execution_id": execID, "status": "RUNNING"})
}

// runInBackground spawns the single background worker that owns an
// Execution until terminal, per spec.md §5. It uses a detached context
// (the request context is canceled once the handler returns) but carries
// the request's logger forward.
func (d *Deps) runInBackground(reqCtx context.Context, execID int64, structureOverride *workflow.Structure) {
	log := logger.FromContext(reqCtx)
	go func() {
		ctx := logger.ContextWithLogger(context.Background(), log)
		if err := d.Engine.ExecuteFromID(ctx, execID, nil, structureOverride); err != nil {
			log.Error("workflow execution failed", "execution_id", execID, "error", err)
		}
	}()
}

// GetExecutions handles GET /workflow/executions.
func (d *Deps) GetExecutions(c *gin.Context) {
	ctx := c.Request.Context()
	if raw := c.Query("def_process_execution_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			RespondError(c, apperrors.Validation("invalid def_process_execution_id", err))
			return
		}
		exec, err := d.Repo.GetExecution(ctx, id)
		if err != nil {
			RespondError(c, err)
			return
		}
		RespondOK(c, []*workflow.Execution{exec})
		return
	}
	var processID *int64
	if raw := c.Query("process_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			RespondError(c, apperrors.Validation("invalid process_id", err))
			return
		}
		processID = &id
	}
	execs, err := d.Repo.ListExecutions(ctx, processID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, execs)
}

// GetExecutionSteps handles GET /workflow/execution_steps.
func (d *Deps) GetExecutionSteps(c *gin.Context) {
	executionID, err := strconv.ParseInt(c.Query("def_process_execution_id"), 10, 64)
	if err != nil {
		RespondError(c, apperrors.Validation("def_process_execution_id query parameter is required", err))
		return
	}
	steps, err := d.Repo.ListSteps(c.Request.Context(), executionID)
	if err != nil {
		RespondError(c, err)
		return
	}
	if nodeID := c.Query("node_id"); nodeID != "" {
		filtered := make([]*workflow.Step, 0, len(steps))
		for _, s := range steps {
			if s.NodeID == nodeID {
				filtered = append(filtered, s)
			}
		}
		steps = filtered
	}
	RespondOK(c, steps)
}
