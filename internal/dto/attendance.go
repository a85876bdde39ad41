package dto

// ── 考勤打卡 DTO ──

// LocationInput 设备上报的定位
type LocationInput struct {
	Lat      float64  `json:"lat"      binding:"min=-90,max=90"`
	Lng      float64  `json:"lng"      binding:"min=-180,max=180"`
	Accuracy *float64 `json:"accuracy"`
}

// ClockEventRequest 打卡事件请求
// POST /api/v1/attendance/clock-event
type ClockEventRequest struct {
	StudentID string         `json:"student_id" binding:"required"`
	Date      string         `json:"date"       binding:"required,datestr"`
	Session   string         `json:"session"    binding:"required,oneof=morning afternoon"`
	Action    string         `json:"action"     binding:"required,oneof=check_in check_out"`
	Time      string         `json:"time"       binding:"required,clock"`
	Location  *LocationInput `json:"location"`
	Remarks   *string        `json:"remarks"    binding:"omitempty,max=500"`

	// CompanyScope 由鉴权层填入：非空时只允许操作该单位的学生
	CompanyScope string `json:"-"`
}

// CheckInRequest 签到便捷接口请求（action 固定为 check_in）
type CheckInRequest struct {
	StudentID string         `json:"student_id" binding:"required"`
	Date      string         `json:"date"       binding:"required,datestr"`
	Session   string         `json:"session"    binding:"required,oneof=morning afternoon"`
	Time      string         `json:"time"       binding:"required,clock"`
	Location  *LocationInput `json:"location"   binding:"required"`
	Remarks   *string        `json:"remarks"    binding:"omitempty,max=500"`
}

// CheckOutRequest 签退便捷接口请求
type CheckOutRequest struct {
	StudentID string  `json:"student_id" binding:"required"`
	Date      string  `json:"date"       binding:"required,datestr"`
	Session   string  `json:"session"    binding:"required,oneof=morning afternoon"`
	Time      string  `json:"time"       binding:"required,clock"`
	Remarks   *string `json:"remarks"    binding:"omitempty,max=500"`
}

// ToClockEvent 转换为统一打卡事件
func (r *CheckInRequest) ToClockEvent() *ClockEventRequest {
	return &ClockEventRequest{
		StudentID: r.StudentID,
		Date:      r.Date,
		Session:   r.Session,
		Action:    "check_in",
		Time:      r.Time,
		Location:  r.Location,
		Remarks:   r.Remarks,
	}
}

// ToClockEvent 转换为统一打卡事件
func (r *CheckOutRequest) ToClockEvent() *ClockEventRequest {
	return &ClockEventRequest{
		StudentID: r.StudentID,
		Date:      r.Date,
		Session:   r.Session,
		Action:    "check_out",
		Time:      r.Time,
		Remarks:   r.Remarks,
	}
}

// SessionRecordResponse 半日考勤记录响应
type SessionRecordResponse struct {
	ID               string  `json:"id"`
	StudentID        string  `json:"student_id"`
	Date             string  `json:"date"`
	Session          string  `json:"session"`
	State            string  `json:"state"`
	CheckInTime      *string `json:"check_in_time"`
	CheckOutTime     *string `json:"check_out_time"`
	TotalHours       float64 `json:"total_hours"`
	LateMinutes      int     `json:"late_minutes"`
	LocationVerified bool    `json:"location_verified"`
	IsVerified       bool    `json:"is_verified"`
	CheckInMethod    string  `json:"check_in_method"`
	Remarks          *string `json:"remarks,omitempty"`
}

// SessionStatusResponse 某时段当前状态（今日打卡面板）
type SessionStatusResponse struct {
	Session       string                 `json:"session"`
	State         string                 `json:"state"`
	CheckinStart  string                 `json:"checkin_start"`
	CheckinEnd    string                 `json:"checkin_end"`
	StandardStart string                 `json:"standard_start"`
	Record        *SessionRecordResponse `json:"record,omitempty"`
}

// TodaySessionsResponse 今日两个半日时段的状态
type TodaySessionsResponse struct {
	Date     string                  `json:"date"`
	Weekday  int                     `json:"weekday"`
	Working  bool                    `json:"working_day"`
	Sessions []SessionStatusResponse `json:"sessions"`
}

// SignalCheckRequest 原始定位信号自检请求（仅提示，不拦截）
type SignalCheckRequest struct {
	Lat      float64  `json:"lat"      binding:"min=-90,max=90"`
	Lng      float64  `json:"lng"      binding:"min=-180,max=180"`
	Accuracy *float64 `json:"accuracy"`
	Altitude *float64 `json:"altitude"`
	Speed    *float64 `json:"speed"`
}

// SignalCheckResponse 定位信号自检结果
type SignalCheckResponse struct {
	Valid      bool     `json:"valid"`
	Indicators []string `json:"indicators"`
}

// ── 日考勤汇总 DTO ──

// DailyAttendanceQuery 日考勤汇总查询参数
// GET /api/v1/attendance/daily
type DailyAttendanceQuery struct {
	CompanyID string `form:"company_id"`
	StartDate string `form:"start_date" binding:"omitempty,datestr"`
	EndDate   string `form:"end_date"   binding:"omitempty,datestr"`
	StudentID string `form:"student_id"`
}

// MyAttendanceQuery 学生查询本人考勤
// GET /api/v1/attendance/me
type MyAttendanceQuery struct {
	StartDate string `form:"start_date" binding:"omitempty,datestr"`
	EndDate   string `form:"end_date"   binding:"omitempty,datestr"`
}

// DailyAttendanceResponse 合并上下午后的日考勤行
type DailyAttendanceResponse struct {
	StudentID            string  `json:"student_id"`
	StudentName          string  `json:"student_name,omitempty"`
	NIM                  string  `json:"nim,omitempty"`
	Date                 string  `json:"date"`
	MorningCheckIn       *string `json:"morning_check_in"`
	MorningCheckOut      *string `json:"morning_check_out"`
	MorningLateMinutes   int     `json:"morning_late_minutes"`
	TotalMorningHours    float64 `json:"total_morning_hours"`
	AfternoonCheckIn     *string `json:"afternoon_check_in"`
	AfternoonCheckOut    *string `json:"afternoon_check_out"`
	AfternoonLateMinutes int     `json:"afternoon_late_minutes"`
	TotalAfternoonHours  float64 `json:"total_afternoon_hours"`
	TotalHours           float64 `json:"total_hours"`
	IsVerified           bool    `json:"is_verified"`
}
