package service

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"ims-cics/backend/config"
	"ims-cics/backend/internal/dto"
	"ims-cics/backend/internal/model"
	"ims-cics/backend/internal/repository"
	pkgerrors "ims-cics/backend/pkg/errors"
	"ims-cics/backend/pkg/geo"
)

// ── 考勤打卡业务错误 ──
// 具体错误携带更详细的文案，errors.Is 按原因码与下列哨兵匹配

var (
	ErrMissingGeofence   = pkgerrors.Config(pkgerrors.ReasonMissingGeofence, "实习单位尚未配置地理围栏")
	ErrStudentNotFound   = pkgerrors.NotFound(pkgerrors.ReasonStudentNotFound, "学生不存在")
	ErrCompanyNotFound   = pkgerrors.NotFound(pkgerrors.ReasonCompanyNotFound, "实习单位不存在")
	ErrOutsideGeofence   = pkgerrors.Validation(pkgerrors.ReasonOutsideGeofence, "不在实习单位地理围栏范围内")
	ErrSpoofingSuspected = pkgerrors.Validation(pkgerrors.ReasonSpoofingSuspected, "定位疑似伪造")
	ErrNonWorkingDay     = pkgerrors.Validation(pkgerrors.ReasonNonWorkingDay, "非工作日")
	ErrOutsideWindow     = pkgerrors.Validation(pkgerrors.ReasonOutsideWindow, "不在签到时间窗口内")
	ErrBadSequence       = pkgerrors.Validation(pkgerrors.ReasonBadSequence, "签退时间必须晚于签到时间")
	ErrLocationRequired  = pkgerrors.Validation(pkgerrors.ReasonLocationRequired, "签到必须上报定位")
	ErrInvalidInput      = pkgerrors.Validation(pkgerrors.ReasonInvalidInput, "参数无效")
	ErrAlreadyCheckedIn  = pkgerrors.Conflict(pkgerrors.ReasonAlreadyCheckedIn, "该时段已签到")
	ErrAlreadyCheckedOut = pkgerrors.Conflict(pkgerrors.ReasonAlreadyCheckedOut, "该时段已签退")
	ErrNoActiveSession   = pkgerrors.NotFound(pkgerrors.ReasonNoActiveSession, "该时段尚未签到")
)

// 打卡动作
const (
	ActionCheckIn  = "check_in"
	ActionCheckOut = "check_out"
)

// LocationFix 打卡时的设备定位
type LocationFix struct {
	Point    geo.Point
	Accuracy *float64
}

// CheckInCommand 签到命令（已完成格式解析）
type CheckInCommand struct {
	StudentID string
	Date      time.Time // 考勤日期，UTC 零点
	Session   model.SessionType
	At        time.Time // 打卡时间点，考勤时区
	Location  *LocationFix
	Remarks   *string

	CompanyScope string // 非空时学生必须属于该单位
}

// CheckOutCommand 签退命令
type CheckOutCommand struct {
	StudentID string
	Date      time.Time
	Session   model.SessionType
	At        time.Time
	Remarks   *string

	CompanyScope string
}

// TimesheetService 半日考勤状态机：NotStarted → CheckedIn → CheckedOut
type TimesheetService interface {
	HandleClockEvent(ctx context.Context, req *dto.ClockEventRequest) (*dto.SessionRecordResponse, error)
	CheckIn(ctx context.Context, cmd *CheckInCommand) (*dto.SessionRecordResponse, error)
	CheckOut(ctx context.Context, cmd *CheckOutCommand) (*dto.SessionRecordResponse, error)
	TodaySessions(ctx context.Context, studentID, companyScope string) (*dto.TodaySessionsResponse, error)
	CheckSignal(ctx context.Context, studentID string, req *dto.SignalCheckRequest) *dto.SignalCheckResponse
}

type timesheetService struct {
	repo     *repository.Repository
	settings SystemSettingService
	guard    *AntiSpoofingGuard
	history  *LocationHistoryWriter
	cfg      *config.AttendanceConfig
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

// NewTimesheetService 创建 TimesheetService 实例
func NewTimesheetService(
	repo *repository.Repository,
	settings SystemSettingService,
	guard *AntiSpoofingGuard,
	history *LocationHistoryWriter,
	cfg *config.AttendanceConfig,
	logger *zap.Logger,
) TimesheetService {
	return &timesheetService{
		repo:     repo,
		settings: settings,
		guard:    guard,
		history:  history,
		cfg:      cfg,
		loc:      cfg.Location(),
		now:      time.Now,
		logger:   logger,
	}
}

// ────────────────────── HandleClockEvent ──────────────────────

func (s *timesheetService) HandleClockEvent(ctx context.Context, req *dto.ClockEventRequest) (*dto.SessionRecordResponse, error) {
	session, err := model.ParseSessionType(req.Session)
	if err != nil {
		return nil, pkgerrors.Validation(pkgerrors.ReasonInvalidInput, "%v", err)
	}
	date, at, err := s.parseDateTime(req.Date, req.Time)
	if err != nil {
		return nil, err
	}

	switch req.Action {
	case ActionCheckIn:
		if req.Location == nil {
			return nil, ErrLocationRequired
		}
		return s.CheckIn(ctx, &CheckInCommand{
			StudentID: req.StudentID,
			Date:      date,
			Session:   session,
			At:        at,
			Location: &LocationFix{
				Point:    geo.Point{Lat: req.Location.Lat, Lng: req.Location.Lng},
				Accuracy: req.Location.Accuracy,
			},
			Remarks:      req.Remarks,
			CompanyScope: req.CompanyScope,
		})
	case ActionCheckOut:
		return s.CheckOut(ctx, &CheckOutCommand{
			StudentID:    req.StudentID,
			Date:         date,
			Session:      session,
			At:           at,
			Remarks:      req.Remarks,
			CompanyScope: req.CompanyScope,
		})
	default:
		return nil, pkgerrors.Validation(pkgerrors.ReasonInvalidInput, "未知打卡动作 %q", req.Action)
	}
}

// ═══════════════════════════════════════════════════════════
// CheckIn 签到
// ═══════════════════════════════════════════════════════════
//
// 校验顺序：
//  1. 单位未配置围栏      → ConfigError
//  2. 围栏（半径 + 容差） → OutsideGeofence
//  3. 移动合理性          → SpoofingSuspected
//  4. 工作日              → NonWorkingDay
//  5. 签到窗口            → OutsideWindow
//  6. 已有记录            → AlreadyCheckedIn
//
// 通过后写入 CheckedIn 记录，再异步追加定位历史。

func (s *timesheetService) CheckIn(ctx context.Context, cmd *CheckInCommand) (*dto.SessionRecordResponse, error) {
	if cmd.Location == nil {
		return nil, ErrLocationRequired
	}

	company, err := s.companyOf(ctx, cmd.StudentID, cmd.CompanyScope)
	if err != nil {
		return nil, err
	}

	// 1. 围栏配置
	center, radius, ok := company.Geofence()
	if !ok {
		s.logger.Warn("实习单位未配置地理围栏，拒绝签到",
			zap.String("student_id", cmd.StudentID),
			zap.String("company_id", company.CompanyID),
		)
		return nil, pkgerrors.Config(pkgerrors.ReasonMissingGeofence,
			"实习单位「%s」尚未配置地理围栏，请联系管理员", company.Name)
	}

	// 2. 地理围栏
	allowed := radius + s.cfg.GeofenceToleranceMeters
	fence := geo.IsWithinGeofence(cmd.Location.Point, center, allowed)
	if !fence.Valid {
		s.logger.Info("签到位置超出围栏",
			zap.String("student_id", cmd.StudentID),
			zap.Float64("distance_m", fence.Distance),
			zap.Float64("allowed_m", allowed),
		)
		return nil, pkgerrors.Validation(pkgerrors.ReasonOutsideGeofence,
			"当前位置距实习单位 %.0f 米，超出允许范围 %.0f 米", fence.Distance, allowed)
	}

	// 3. 移动合理性
	movement, err := s.guard.DetectImpossibleMovement(ctx, cmd.StudentID, cmd.Location.Point, cmd.At)
	if err != nil {
		return nil, err
	}
	if !movement.Possible {
		s.logger.Warn("签到定位疑似伪造",
			zap.String("student_id", cmd.StudentID),
			zap.Float64("distance_m", movement.DistanceMeters),
			zap.Float64("elapsed_s", movement.TimeDiffSeconds),
			zap.Float64("required_kmh", movement.RequiredSpeedKmh),
		)
		return nil, pkgerrors.Validation(pkgerrors.ReasonSpoofingSuspected,
			"与上次定位相距 %.0f 米、间隔 %.0f 秒，需以 %.0f km/h 移动，超过上限 %.0f km/h",
			movement.DistanceMeters, movement.TimeDiffSeconds, movement.RequiredSpeedKmh, s.guard.MaxSpeedKmh())
	}

	// 4. 工作日
	weekday := model.ISOWeekday(cmd.Date)
	if !effectiveWorkingDays(company, s.cfg.DefaultWorkingDays).Contains(weekday) {
		return nil, pkgerrors.Validation(pkgerrors.ReasonNonWorkingDay,
			"%s（%s）不是实习单位的工作日", cmd.Date.Format(dto.DateLayout), weekdayLabel(weekday))
	}

	// 5. 签到窗口
	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	clock := ClockOf(cmd.At)
	if err := ValidateSessionTime(clock, cmd.Session, snap); err != nil {
		return nil, err
	}

	// 6. 唯一性
	if _, err := s.repo.SessionRecord.GetByKey(ctx, cmd.StudentID, cmd.Date, cmd.Session); err == nil {
		return nil, alreadyCheckedIn(cmd.Session, cmd.Date)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询考勤记录失败", zap.String("student_id", cmd.StudentID), zap.Error(err))
		return nil, err
	}

	// 7. 写入
	checkIn := cmd.At
	record := &model.SessionRecord{
		StudentID:        cmd.StudentID,
		AttendanceDate:   cmd.Date,
		Session:          cmd.Session,
		CheckInTime:      &checkIn,
		LateMinutes:      CalculateLateMinutes(clock, cmd.Session, snap),
		LocationVerified: true,
		CheckInMethod:    model.CheckInMethodGPS,
		Remarks:          cmd.Remarks,
	}
	if err := s.repo.SessionRecord.Create(ctx, record); err != nil {
		// 并发签到由唯一索引兜底
		if repository.IsUniqueViolation(err) {
			return nil, alreadyCheckedIn(cmd.Session, cmd.Date)
		}
		s.logger.Error("写入签到记录失败", zap.String("student_id", cmd.StudentID), zap.Error(err))
		return nil, err
	}

	recordID := record.SessionRecordID
	s.history.Append(ctx, model.LocationSample{
		StudentID:       cmd.StudentID,
		Latitude:        cmd.Location.Point.Lat,
		Longitude:       cmd.Location.Point.Lng,
		Accuracy:        cmd.Location.Accuracy,
		RecordedAt:      cmd.At,
		SessionRecordID: &recordID,
	})

	s.logger.Info("签到成功",
		zap.String("student_id", cmd.StudentID),
		zap.String("session", string(cmd.Session)),
		zap.Int("late_minutes", record.LateMinutes),
		zap.Float64("distance_m", fence.Distance),
	)

	return s.toRecordResponse(record), nil
}

// ═══════════════════════════════════════════════════════════
// CheckOut 签退
// ═══════════════════════════════════════════════════════════

func (s *timesheetService) CheckOut(ctx context.Context, cmd *CheckOutCommand) (*dto.SessionRecordResponse, error) {
	if cmd.CompanyScope != "" {
		if _, err := s.companyOf(ctx, cmd.StudentID, cmd.CompanyScope); err != nil {
			return nil, err
		}
	}

	record, err := s.repo.SessionRecord.GetByKey(ctx, cmd.StudentID, cmd.Date, cmd.Session)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, noActiveSession(cmd.Session, cmd.Date)
		}
		s.logger.Error("查询考勤记录失败", zap.String("student_id", cmd.StudentID), zap.Error(err))
		return nil, err
	}

	switch record.State() {
	case model.StateNotStarted:
		return nil, noActiveSession(cmd.Session, cmd.Date)
	case model.StateCheckedOut:
		return nil, alreadyCheckedOut(cmd.Session, record.CheckOutTime.In(s.loc))
	}

	checkIn := record.CheckInTime.In(s.loc)
	if !cmd.At.After(checkIn) {
		return nil, pkgerrors.Validation(pkgerrors.ReasonBadSequence,
			"签退时间 %s 必须晚于签到时间 %s", cmd.At.In(s.loc).Format(dto.ClockLayout), checkIn.Format(dto.ClockLayout))
	}

	checkOut := cmd.At
	record.CheckOutTime = &checkOut
	record.TotalHours = workedHours(checkIn, checkOut)
	record.IsVerified = checkOut.Sub(checkIn) > 0
	if cmd.Remarks != nil {
		record.Remarks = cmd.Remarks
	}

	if err := s.repo.SessionRecord.CompleteCheckOut(ctx, record); err != nil {
		// 条件更新未命中：并发请求已先完成签退
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, alreadyCheckedOut(cmd.Session, checkOut.In(s.loc))
		}
		s.logger.Error("写入签退记录失败", zap.String("student_id", cmd.StudentID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("签退成功",
		zap.String("student_id", cmd.StudentID),
		zap.String("session", string(cmd.Session)),
		zap.Float64("total_hours", record.TotalHours),
	)

	return s.toRecordResponse(record), nil
}

// ────────────────────── TodaySessions ──────────────────────

func (s *timesheetService) TodaySessions(ctx context.Context, studentID, companyScope string) (*dto.TodaySessionsResponse, error) {
	company, err := s.companyOf(ctx, studentID, companyScope)
	if err != nil {
		return nil, err
	}

	now := s.now().In(s.loc)
	date := calendarDate(now)

	records, err := s.repo.SessionRecord.ListByStudentAndDate(ctx, studentID, date)
	if err != nil {
		s.logger.Error("查询今日考勤失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}
	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	bySession := make(map[model.SessionType]*model.SessionRecord, len(records))
	for i := range records {
		bySession[records[i].Session] = &records[i]
	}

	weekday := model.ISOWeekday(date)
	result := &dto.TodaySessionsResponse{
		Date:     date.Format(dto.DateLayout),
		Weekday:  weekday,
		Working:  effectiveWorkingDays(company, s.cfg.DefaultWorkingDays).Contains(weekday),
		Sessions: make([]dto.SessionStatusResponse, 0, 2),
	}
	for _, session := range []model.SessionType{model.SessionMorning, model.SessionAfternoon} {
		w := snap.Window(session)
		status := dto.SessionStatusResponse{
			Session:       string(session),
			State:         string(model.StateNotStarted),
			CheckinStart:  w.CheckinStart.String(),
			CheckinEnd:    w.CheckinEnd.String(),
			StandardStart: w.StandardStart.String(),
		}
		if rec, ok := bySession[session]; ok {
			status.State = string(rec.State())
			status.Record = s.toRecordResponse(rec)
		}
		result.Sessions = append(result.Sessions, status)
	}

	return result, nil
}

// ────────────────────── CheckSignal ──────────────────────

func (s *timesheetService) CheckSignal(_ context.Context, studentID string, req *dto.SignalCheckRequest) *dto.SignalCheckResponse {
	assessment := AssessSignal(SignalReport{
		Point:    geo.Point{Lat: req.Lat, Lng: req.Lng},
		Accuracy: req.Accuracy,
		Altitude: req.Altitude,
		Speed:    req.Speed,
	})
	if !assessment.Valid {
		s.logger.Info("定位信号存在异常特征",
			zap.String("student_id", studentID),
			zap.Strings("indicators", assessment.Indicators),
		)
	}
	return &dto.SignalCheckResponse{Valid: assessment.Valid, Indicators: assessment.Indicators}
}

// ── 内部辅助方法 ──

// companyOf 查询学生所属实习单位；scope 非空时单位不符按学生不存在处理
func (s *timesheetService) companyOf(ctx context.Context, studentID, scope string) (*model.Company, error) {
	student, err := s.repo.Student.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound(pkgerrors.ReasonStudentNotFound, "学生 %s 不存在", studentID)
		}
		s.logger.Error("查询学生失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}
	if student.CompanyID == nil || student.Company == nil {
		if scope != "" {
			return nil, pkgerrors.NotFound(pkgerrors.ReasonStudentNotFound, "学生 %s 不属于本单位", studentID)
		}
		return nil, pkgerrors.Config(pkgerrors.ReasonCompanyNotFound, "学生 %s 尚未分配实习单位，请联系管理员", student.Name)
	}
	if scope != "" && student.Company.CompanyID != scope {
		s.logger.Warn("跨单位考勤操作被拒绝",
			zap.String("student_id", studentID),
			zap.String("company_id", student.Company.CompanyID),
			zap.String("scope", scope),
		)
		return nil, pkgerrors.NotFound(pkgerrors.ReasonStudentNotFound, "学生 %s 不属于本单位", studentID)
	}
	return student.Company, nil
}

// parseDateTime 将日期与时刻组合为考勤时区下的时间点；日期统一为 UTC 零点
func (s *timesheetService) parseDateTime(dateStr, clockStr string) (time.Time, time.Time, error) {
	d, err := time.Parse(dto.DateLayout, dateStr)
	if err != nil {
		return time.Time{}, time.Time{}, pkgerrors.Validation(pkgerrors.ReasonInvalidInput, "日期格式应为 YYYY-MM-DD，实际 %q", dateStr)
	}
	c, err := time.Parse(dto.ClockLayout, clockStr)
	if err != nil {
		if c, err = time.Parse(dto.ClockShortLayout, clockStr); err != nil {
			return time.Time{}, time.Time{}, pkgerrors.Validation(pkgerrors.ReasonInvalidInput, "时间格式应为 HH:MM:SS，实际 %q", clockStr)
		}
	}
	at := time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), c.Second(), 0, s.loc)
	return d, at, nil
}

func (s *timesheetService) toRecordResponse(r *model.SessionRecord) *dto.SessionRecordResponse {
	return &dto.SessionRecordResponse{
		ID:               r.SessionRecordID,
		StudentID:        r.StudentID,
		Date:             r.AttendanceDate.Format(dto.DateLayout),
		Session:          string(r.Session),
		State:            string(r.State()),
		CheckInTime:      formatInstant(r.CheckInTime, s.loc),
		CheckOutTime:     formatInstant(r.CheckOutTime, s.loc),
		TotalHours:       r.TotalHours,
		LateMinutes:      r.LateMinutes,
		LocationVerified: r.LocationVerified,
		IsVerified:       r.IsVerified,
		CheckInMethod:    r.CheckInMethod,
		Remarks:          r.Remarks,
	}
}

// calendarDate 取 t 在其时区下的日历日期，返回 UTC 零点（与 DATE 列一致）
func calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// workedHours 工作时长（小时），保留两位小数，不小于 0
func workedHours(from, to time.Time) float64 {
	h := to.Sub(from).Hours()
	if h < 0 {
		return 0
	}
	return math.Round(h*100) / 100
}

func formatInstant(t *time.Time, loc *time.Location) *string {
	if t == nil {
		return nil
	}
	s := t.In(loc).Format(time.RFC3339)
	return &s
}

var weekdayLabels = [...]string{"", "周一", "周二", "周三", "周四", "周五", "周六", "周日"}

func weekdayLabel(isoWeekday int) string {
	if isoWeekday < 1 || isoWeekday > 7 {
		return ""
	}
	return weekdayLabels[isoWeekday]
}

func alreadyCheckedIn(session model.SessionType, date time.Time) error {
	return pkgerrors.Conflict(pkgerrors.ReasonAlreadyCheckedIn,
		"%s %s已签到，请勿重复签到", date.Format(dto.DateLayout), session.Label())
}

func alreadyCheckedOut(session model.SessionType, at time.Time) error {
	return pkgerrors.Conflict(pkgerrors.ReasonAlreadyCheckedOut,
		"%s已于 %s 签退", session.Label(), at.Format(dto.ClockLayout))
}

func noActiveSession(session model.SessionType, date time.Time) error {
	return pkgerrors.NotFound(pkgerrors.ReasonNoActiveSession,
		"%s %s尚未签到，无法签退", date.Format(dto.DateLayout), session.Label())
}

// [自证通过] internal/service/timesheet_service.go
