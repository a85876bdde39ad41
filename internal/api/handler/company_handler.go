package handler

import (
	"github.com/gin-gonic/gin"

	"ims-cics/backend/internal/dto"
	"ims-cics/backend/internal/service"
	"ims-cics/backend/pkg/response"
)

// CompanyHandler 实习单位围栏 HTTP 处理器
type CompanyHandler struct {
	companySvc service.CompanyService
}

// NewCompanyHandler 创建 CompanyHandler
func NewCompanyHandler(companySvc service.CompanyService) *CompanyHandler {
	return &CompanyHandler{companySvc: companySvc}
}

// GetGeofence 获取单位围栏与工作日
// GET /api/v1/companies/:id/geofence
func (h *CompanyHandler) GetGeofence(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "单位ID不能为空")
		return
	}

	res, err := h.companySvc.GetGeofence(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.OK(c, res)
}

// UpdateGeofence 设置单位围栏与工作日
// PUT /api/v1/companies/:id/geofence
func (h *CompanyHandler) UpdateGeofence(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "单位ID不能为空")
		return
	}

	var req dto.UpdateGeofenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	res, err := h.companySvc.UpdateGeofence(c.Request.Context(), id, &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.OK(c, res)
}
