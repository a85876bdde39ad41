package dto

// ── 作息时间设置 DTO ──

// UpdateScheduleRequest 更新作息时间；字段为 nil 表示不修改，空字符串表示清除（回落兜底值）
type UpdateScheduleRequest struct {
	MorningCheckinStart    *string `json:"morning_checkin_start"    binding:"omitempty,clock"`
	MorningCheckinEnd      *string `json:"morning_checkin_end"      binding:"omitempty,clock"`
	MorningStandardStart   *string `json:"morning_standard_start"   binding:"omitempty,clock"`
	AfternoonCheckinStart  *string `json:"afternoon_checkin_start"  binding:"omitempty,clock"`
	AfternoonCheckinEnd    *string `json:"afternoon_checkin_end"    binding:"omitempty,clock"`
	AfternoonStandardStart *string `json:"afternoon_standard_start" binding:"omitempty,clock"`
}

// SessionWindowResponse 单个时段的生效配置
type SessionWindowResponse struct {
	CheckinStart  string `json:"checkin_start"`
	CheckinEnd    string `json:"checkin_end"`
	StandardStart string `json:"standard_start"`
	WrapsMidnight bool   `json:"wraps_midnight"`
}

// ScheduleResponse 生效中的作息时间
type ScheduleResponse struct {
	Morning      SessionWindowResponse `json:"morning"`
	Afternoon    SessionWindowResponse `json:"afternoon"`
	UsesFallback bool                  `json:"uses_fallback"`
}

// ── 实习单位围栏 DTO ──

// UpdateGeofenceRequest 设置实习单位地理围栏与工作日
type UpdateGeofenceRequest struct {
	Latitude     float64 `json:"latitude"      binding:"min=-90,max=90"`
	Longitude    float64 `json:"longitude"     binding:"min=-180,max=180"`
	RadiusMeters int     `json:"radius_meters" binding:"required,min=1,max=100000"`
	WorkingDays  []int   `json:"working_days"  binding:"omitempty,dive,min=1,max=7"`
}

// GeofenceResponse 实习单位围栏信息
type GeofenceResponse struct {
	CompanyID    string   `json:"company_id"`
	Name         string   `json:"name"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	RadiusMeters *int     `json:"radius_meters"`
	Configured   bool     `json:"configured"`
	WorkingDays  []int    `json:"working_days"`
}
