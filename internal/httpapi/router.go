package httpapi

import (
	"github.com/gin-gonic/gin"
)

// Register wires every route spec.md §6 names onto r, guarding every
// non-auth endpoint with jwtSecret-validated bearer tokens.
func (d *Deps) Register(r *gin.Engine, jwtSecret []byte) {
	r.Use(RequestID())
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware())
		r.GET("/metrics", d.Metrics.Handler())
	}
	api := r.Group("/")
	api.Use(JWTAuth(jwtSecret))

	wf := api.Group("/workflow")
	{
		wf.POST("", d.CreateWorkflow)
		wf.PUT("", d.UpdateWorkflow)
		wf.GET("", d.GetWorkflows)
		wf.DELETE("", d.DeleteWorkflow)
		wf.POST("/validate", d.ValidateWorkflow)
		wf.POST("/required_params", d.RequiredParams)
		wf.POST("/run/:process_id", d.RunWorkflow)
		wf.POST("/run_dynamic", d.RunDynamic)
		wf.GET("/executions", d.GetExecutions)
		wf.GET("/execution_steps", d.GetExecutionSteps)
		wf.GET("/execution_stream/:execution_id", d.ExecutionStream)

		wf.GET("/node_types", d.GetNodeTypes)
		wf.POST("/node_types", d.CreateNodeType)
		wf.PUT("/node_types", d.UpdateNodeType)
		wf.DELETE("/node_types", d.DeleteNodeType)
	}

	api.POST("/Create_TaskSchedule", d.CreateTaskSchedule)
	api.GET("/Show_TaskSchedules", d.ShowTaskSchedules)
	api.GET("/Show_TaskSchedules/paginated", d.ShowTaskSchedulesPaginated)
	api.PUT("/Update_TaskSchedule/:task_name", d.UpdateTaskSchedule)
	api.PUT("/Cancel_TaskSchedule/:task_name", d.CancelTaskSchedule)
	api.PUT("/Reschedule_Task/:task_name", d.RescheduleTask)
	api.PUT(
		"/Cancel_AdHoc_Task/:task_name/:user_schedule_name/:schedule_id/:task_id",
		d.CancelAdHocTask,
	)
}
