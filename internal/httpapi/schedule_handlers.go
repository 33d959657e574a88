package httpapi

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/compozy/workflows/internal/apperrors"
	"github.com/compozy/workflows/internal/scheduler"
)

// createScheduleBody is the body of POST /Create_TaskSchedule.
type createScheduleBody struct {
	UserScheduleName string            `json:"user_schedule_name" binding:"required"`
	TaskName         string            `json:"task_name"          binding:"required"`
	ScheduleType     scheduler.Type    `json:"schedule_type"      binding:"required"`
	Schedule         scheduler.Payload `json:"schedule"`
	Parameters       map[string]any    `json:"parameters"`
}

// CreateTaskSchedule handles POST /Create_TaskSchedule.
func (d *Deps) CreateTaskSchedule(c *gin.Context) {
	var body createScheduleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, apperrors.Validation("invalid request body", err))
		return
	}
	sch, err := d.Scheduler.Create(c.Request.Context(), scheduler.CreateRequest{
		UserScheduleName: body.UserScheduleName,
		TaskName:         body.TaskName,
		ScheduleType:     body.ScheduleType,
		Schedule:         body.Schedule,
		Parameters:       body.Parameters,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, sch)
}

// ShowTaskSchedules handles GET /Show_TaskSchedules.
func (d *Deps) ShowTaskSchedules(c *gin.Context) {
	scheds, err := d.Scheduler.List(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, scheds)
}

// ShowTaskSchedulesPaginated handles the paginated/search variant of
// GET /Show_TaskSchedules.
func (d *Deps) ShowTaskSchedulesPaginated(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 {
		limit = 20
	}
	search := c.Query("search")
	scheds, err := d.Scheduler.ListPage(c.Request.Context(), search, limit, offset)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, scheds)
}

// UpdateTaskSchedule handles PUT /Update_TaskSchedule/<task_name>: a
// cancel-then-recreate: the old Schedule is cancelled and a new one is
// created under a fresh redbeat name.
func (d *Deps) UpdateTaskSchedule(c *gin.Context) {
	taskName := c.Param("task_name")
	var body createScheduleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, apperrors.Validation("invalid request body", err))
		return
	}
	if err := d.Scheduler.Cancel(c.Request.Context(), taskName); err != nil {
		RespondError(c, err)
		return
	}
	sch, err := d.Scheduler.Create(c.Request.Context(), scheduler.CreateRequest{
		UserScheduleName: body.UserScheduleName,
		TaskName:         taskName,
		ScheduleType:     body.ScheduleType,
		Schedule:         body.Schedule,
		Parameters:       body.Parameters,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, sch)
}

// CancelTaskSchedule handles PUT /Cancel_TaskSchedule/<task_name>.
func (d *Deps) CancelTaskSchedule(c *gin.Context) {
	taskName := c.Param("task_name")
	if err := d.Scheduler.Cancel(c.Request.Context(), taskName); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"cancelled": true})
}

// RescheduleTask handles PUT /Reschedule_Task/<task_name>.
func (d *Deps) RescheduleTask(c *gin.Context) {
	taskName := c.Param("task_name")
	sch, err := d.Scheduler.Reschedule(c.Request.Context(), taskName)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, sch)
}

// CancelAdHocTask handles
// PUT /Cancel_AdHoc_Task/<task_name>/<user_schedule_name>/<schedule_id>/<task_id>.
func (d *Deps) CancelAdHocTask(c *gin.Context) {
	taskName := c.Param("task_name")
	taskID := c.Param("task_id")
	if err := d.Scheduler.CancelAdHoc(c.Request.Context(), taskName, taskID); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"cancelled": true})
}
