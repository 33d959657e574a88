// Package httpapi implements the HTTP Surface (C9): a thin gin
// request/response layer around the Workflow Engine (C5), the Execution
// Stream (C8), and the Task Scheduler (C7).
package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/compozy/workflows/internal/apperrors"
)

// RespondOK writes a 200 with the given result payload.
func RespondOK(c *gin.Context, result any) {
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// RespondCreated writes a 201 with the given result payload.
func RespondCreated(c *gin.Context, result any) {
	c.JSON(http.StatusCreated, gin.H{"result": result})
}

// RespondAccepted writes a 202 with the given result payload.
func RespondAccepted(c *gin.Context, result any) {
	c.JSON(http.StatusAccepted, gin.H{"result": result})
}

// RespondError maps err onto its apperrors.Kind-derived status code (or
// 500 for an untyped error) and writes the Error envelope.
func RespondError(c *gin.Context, err error) {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		c.JSON(appErr.StatusCode(), appErr.AsMap())
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
}
