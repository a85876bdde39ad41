package model

import (
	"fmt"
	"time"
)

// SessionType 半日时段
type SessionType string

const (
	SessionMorning   SessionType = "morning"
	SessionAfternoon SessionType = "afternoon"
)

// ParseSessionType 解析时段取值
func ParseSessionType(s string) (SessionType, error) {
	switch SessionType(s) {
	case SessionMorning, SessionAfternoon:
		return SessionType(s), nil
	default:
		return "", fmt.Errorf("未知时段 %q", s)
	}
}

// Label 中文名称
func (s SessionType) Label() string {
	if s == SessionAfternoon {
		return "下午"
	}
	return "上午"
}

// SessionState 单条考勤记录的状态：NotStarted → CheckedIn → CheckedOut（终态）
type SessionState string

const (
	StateNotStarted SessionState = "not_started"
	StateCheckedIn  SessionState = "checked_in"
	StateCheckedOut SessionState = "checked_out"
)

// CheckInMethodGPS 带定位签到
const CheckInMethodGPS = "gps"

// SessionRecord 半日考勤记录 — 对应 session_records
// 唯一键 (student_id, attendance_date, session) 由数据库唯一约束保证
type SessionRecord struct {
	SessionRecordID  string      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"session_record_id"`
	StudentID        string      `gorm:"type:uuid;not null"                             json:"student_id"`
	AttendanceDate   time.Time   `gorm:"type:date;not null"                             json:"attendance_date"`
	Session          SessionType `gorm:"type:varchar(10);not null"                      json:"session"`
	CheckInTime      *time.Time  `json:"check_in_time,omitempty"`
	CheckOutTime     *time.Time  `json:"check_out_time,omitempty"`
	TotalHours       float64     `gorm:"type:numeric(6,2);not null;default:0"           json:"total_hours"`
	LateMinutes      int         `gorm:"not null;default:0"                             json:"late_minutes"`
	LocationVerified bool        `gorm:"not null;default:false"                         json:"location_verified"`
	IsVerified       bool        `gorm:"not null;default:false"                         json:"is_verified"`
	CheckInMethod    string      `gorm:"type:varchar(20);not null;default:'gps'"        json:"check_in_method"`
	Remarks          *string     `gorm:"type:text"                                      json:"remarks,omitempty"`
	BaseModel

	// 关联
	Student *Student `gorm:"foreignKey:StudentID;references:StudentID" json:"student,omitempty"`
}

// TableName 指定表名
func (SessionRecord) TableName() string { return "session_records" }

// State 由签到/签退时间推导当前状态
func (r *SessionRecord) State() SessionState {
	switch {
	case r == nil || r.CheckInTime == nil:
		return StateNotStarted
	case r.CheckOutTime == nil:
		return StateCheckedIn
	default:
		return StateCheckedOut
	}
}

// LocationSample 签到定位历史 — 对应 location_samples（只追加，不修改）
type LocationSample struct {
	LocationSampleID int64     `gorm:"primaryKey;autoIncrement"  json:"location_sample_id"`
	StudentID        string    `gorm:"type:uuid;not null"        json:"student_id"`
	Latitude         float64   `gorm:"not null"                  json:"lat"`
	Longitude        float64   `gorm:"not null"                  json:"lng"`
	Accuracy         *float64  `json:"accuracy,omitempty"`
	RecordedAt       time.Time `gorm:"not null"                  json:"recorded_at"`
	SessionRecordID  *string   `gorm:"type:uuid"                 json:"session_record_id,omitempty"`
	CreatedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName 指定表名
func (LocationSample) TableName() string { return "location_samples" }
