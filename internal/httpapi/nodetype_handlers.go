package httpapi

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/compozy/workflows/internal/apperrors"
	"github.com/compozy/workflows/internal/postgres"
	"github.com/compozy/workflows/internal/workflow"
)

// upsertNodeTypeBody is the shared body of POST/PUT /workflow/node_types.
type upsertNodeTypeBody struct {
	ShapeName            string                `json:"shape_name"             binding:"required"`
	Behavior             workflow.NodeBehavior `json:"behavior"                binding:"required"`
	DisplayName          string                `json:"display_name"`
	RequiresStepFunction bool                  `json:"requires_step_function"`
	Description          string                `json:"description"`
}

// CreateNodeType handles POST /workflow/node_types.
func (d *Deps) CreateNodeType(c *gin.Context) {
	d.upsertNodeType(c, true)
}

// UpdateNodeType handles PUT /workflow/node_types.
func (d *Deps) UpdateNodeType(c *gin.Context) {
	d.upsertNodeType(c, false)
}

func (d *Deps) upsertNodeType(c *gin.Context, isCreate bool) {
	var body upsertNodeTypeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, apperrors.Validation("invalid request body", err))
		return
	}
	nt := &workflow.NodeType{
		ShapeName:            body.ShapeName,
		Behavior:             body.Behavior,
		DisplayName:          body.DisplayName,
		RequiresStepFunction: body.RequiresStepFunction,
		Description:          body.Description,
	}
	if err := d.Repo.UpsertNodeType(c.Request.Context(), nt); err != nil {
		if postgres.IsUniqueViolation(err) {
			RespondError(c, apperrors.Conflict("a node type with this shape_name already exists", err))
			return
		}
		RespondError(c, err)
		return
	}
	if isCreate {
		RespondCreated(c, nt)
		return
	}
	RespondOK(c, nt)
}

// GetNodeTypes handles GET /workflow/node_types[?def_node_type_id=…].
func (d *Deps) GetNodeTypes(c *gin.Context) {
	nts, err := d.Repo.ListNodeTypes(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	if raw := c.Query("def_node_type_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			RespondError(c, apperrors.Validation("invalid def_node_type_id", err))
			return
		}
		filtered := make([]workflow.NodeType, 0, 1)
		for _, nt := range nts {
			if nt.ID == id {
				filtered = append(filtered, nt)
			}
		}
		nts = filtered
	}
	RespondOK(c, nts)
}

// DeleteNodeType handles DELETE /workflow/node_types?shape_name=….
func (d *Deps) DeleteNodeType(c *gin.Context) {
	shapeName := c.Query("shape_name")
	if shapeName == "" {
		RespondError(c, apperrors.Validation("shape_name query parameter is required", nil))
		return
	}
	if err := d.Repo.DeleteNodeType(c.Request.Context(), shapeName); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}
