package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/compozy/workflows/internal/workflow"
)

type fakeStreamSource struct {
	exec *workflow.Execution
}

func (f *fakeStreamSource) GetExecution(_ context.Context, _ int64) (*workflow.Execution, error) {
	return f.exec, nil
}

func (f *fakeStreamSource) ListStepsSince(
	_ context.Context,
	_ int64,
	_ int64,
) ([]*workflow.Step, error) {
	return nil, nil
}

func TestExecutionStream(t *testing.T) {
	t.Run("Should reject a non-numeric execution_id", func(t *testing.T) {
		deps := &Deps{StreamSource: &fakeStreamSource{}}
		r := gin.New()
		r.GET("/workflow/execution_stream/:execution_id", deps.ExecutionStream)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/workflow/execution_stream/abc", nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Should frame a complete event immediately for a terminal execution", func(t *testing.T) {
		end := time.Now()
		deps := &Deps{StreamSource: &fakeStreamSource{
			exec: &workflow.Execution{ExecutionID: 1, Status: workflow.ExecutionCompleted, EndDate: &end},
		}}
		r := gin.New()
		r.GET("/workflow/execution_stream/:execution_id", deps.ExecutionStream)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/workflow/execution_stream/1", nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Body.String(), "event: complete")
	})
}
