package handler

import (
	"github.com/gin-gonic/gin"

	"ims-cics/backend/internal/dto"
	"ims-cics/backend/internal/service"
	"ims-cics/backend/pkg/jwt"
	"ims-cics/backend/pkg/response"
)

// AttendanceHandler 日考勤汇总 HTTP 处理器
type AttendanceHandler struct {
	attendanceSvc service.AttendanceService
}

// NewAttendanceHandler 创建 AttendanceHandler
func NewAttendanceHandler(attendanceSvc service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendanceSvc: attendanceSvc}
}

// Daily 单位日考勤汇总
// GET /api/v1/attendance/daily?company_id=xxx&start_date=&end_date=&student_id=
func (h *AttendanceHandler) Daily(c *gin.Context) {
	var req dto.DailyAttendanceQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	if !scopeCompany(c, &req) {
		return
	}

	rows, err := h.attendanceSvc.ListDaily(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": rows})
}

// Me 学生本人日考勤
// GET /api/v1/attendance/me?start_date=&end_date=
func (h *AttendanceHandler) Me(c *gin.Context) {
	var req dto.MyAttendanceQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	rows, err := h.attendanceSvc.ListMine(c.Request.Context(), userID, &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, gin.H{"list": rows})
}

// scopeCompany 指导老师只能查看 Token 所属单位
func scopeCompany(c *gin.Context, req *dto.DailyAttendanceQuery) bool {
	role, ok := MustGetRole(c)
	if !ok {
		return false
	}
	if role != jwt.RoleSupervisor {
		return true
	}

	companyID := GetCompanyID(c)
	if companyID == "" {
		response.Forbidden(c, 10003, "账号未绑定实习单位")
		return false
	}
	if req.CompanyID != "" && req.CompanyID != companyID {
		response.Forbidden(c, 10003, "无权查看其他单位考勤")
		return false
	}
	req.CompanyID = companyID
	return true
}
