package httpapi

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/compozy/workflows/internal/apperrors"
	"github.com/compozy/workflows/internal/stream"
)

// ExecutionStream handles GET /workflow/execution_stream/<execution_id>,
// the Server-Sent-Events transport (C8).
func (d *Deps) ExecutionStream(c *gin.Context) {
	executionID, err := strconv.ParseInt(c.Param("execution_id"), 10, 64)
	if err != nil {
		RespondError(c, apperrors.Validation("invalid execution_id", err))
		return
	}
	lastEventID, _, err := stream.LastEventID(c.Request)
	if err != nil {
		RespondError(c, apperrors.Validation("invalid Last-Event-ID header", err))
		return
	}
	w, ok := c.Writer.(stream.ResponseWriter)
	if !ok {
		RespondError(c, apperrors.Validation("response writer does not support streaming", nil))
		return
	}
	sse := stream.StartSSE(w)
	stream.Run(c.Request.Context(), sse, d.StreamSource, nil, executionID, lastEventID)
}
