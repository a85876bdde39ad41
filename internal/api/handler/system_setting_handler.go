package handler

import (
	"github.com/gin-gonic/gin"

	"ims-cics/backend/internal/dto"
	"ims-cics/backend/internal/service"
	"ims-cics/backend/pkg/response"
)

// SystemSettingHandler 作息配置 HTTP 处理器
type SystemSettingHandler struct {
	settingSvc service.SystemSettingService
}

// NewSystemSettingHandler 创建 SystemSettingHandler
func NewSystemSettingHandler(settingSvc service.SystemSettingService) *SystemSettingHandler {
	return &SystemSettingHandler{settingSvc: settingSvc}
}

// GetSchedule 获取当前生效的上下午打卡窗口
// GET /api/v1/system-settings/schedule
func (h *SystemSettingHandler) GetSchedule(c *gin.Context) {
	res, err := h.settingSvc.GetSchedule(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.OK(c, res)
}

// UpdateSchedule 更新打卡窗口（字段缺省保持不变，空串清除回落默认值）
// PUT /api/v1/system-settings/schedule
func (h *SystemSettingHandler) UpdateSchedule(c *gin.Context) {
	var req dto.UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	res, err := h.settingSvc.UpdateSchedule(c.Request.Context(), &req, callerID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.OK(c, res)
}
