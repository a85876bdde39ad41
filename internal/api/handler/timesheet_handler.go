package handler

import (
	"github.com/gin-gonic/gin"

	"ims-cics/backend/internal/dto"
	"ims-cics/backend/internal/service"
	"ims-cics/backend/pkg/jwt"
	"ims-cics/backend/pkg/response"
)

// TimesheetHandler 打卡模块 HTTP 处理器
type TimesheetHandler struct {
	timesheetSvc service.TimesheetService
}

// NewTimesheetHandler 创建 TimesheetHandler
func NewTimesheetHandler(timesheetSvc service.TimesheetService) *TimesheetHandler {
	return &TimesheetHandler{timesheetSvc: timesheetSvc}
}

// ClockEvent 统一打卡入口
// POST /api/v1/attendance/clock-event
func (h *TimesheetHandler) ClockEvent(c *gin.Context) {
	var req dto.ClockEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	h.dispatch(c, &req)
}

// CheckIn 签到
// POST /api/v1/attendance/check-in
func (h *TimesheetHandler) CheckIn(c *gin.Context) {
	var req dto.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	h.dispatch(c, req.ToClockEvent())
}

// CheckOut 签退
// POST /api/v1/attendance/check-out
func (h *TimesheetHandler) CheckOut(c *gin.Context) {
	var req dto.CheckOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	h.dispatch(c, req.ToClockEvent())
}

func (h *TimesheetHandler) dispatch(c *gin.Context, req *dto.ClockEventRequest) {
	scope, ok := actorScope(c, req.StudentID)
	if !ok {
		return
	}
	req.CompanyScope = scope

	record, err := h.timesheetSvc.HandleClockEvent(c.Request.Context(), req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	if req.Action == service.ActionCheckIn {
		response.Created(c, record)
		return
	}
	response.OK(c, record)
}

// TodaySessions 今日上下午打卡状态
// GET /api/v1/attendance/sessions/today[?student_id=xxx]
func (h *TimesheetHandler) TodaySessions(c *gin.Context) {
	studentID, ok := h.resolveStudent(c)
	if !ok {
		return
	}
	scope, ok := actorScope(c, studentID)
	if !ok {
		return
	}

	res, err := h.timesheetSvc.TodaySessions(c.Request.Context(), studentID, scope)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, res)
}

// SignalCheck 原始定位信号自检（仅提示）
// POST /api/v1/attendance/signal-check
func (h *TimesheetHandler) SignalCheck(c *gin.Context) {
	var req dto.SignalCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	response.OK(c, h.timesheetSvc.CheckSignal(c.Request.Context(), userID, &req))
}

// resolveStudent 学生取自身；管理员与指导老师需通过 student_id 指定
func (h *TimesheetHandler) resolveStudent(c *gin.Context) (string, bool) {
	role, ok := MustGetRole(c)
	if !ok {
		return "", false
	}
	if role == jwt.RoleStudent {
		return MustGetUserID(c)
	}

	studentID := c.Query("student_id")
	if studentID == "" {
		response.BadRequest(c, 10001, "student_id 不能为空")
		return "", false
	}
	return studentID, true
}
