package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"ims-cics/backend/config"
	"ims-cics/backend/internal/dto"
	"ims-cics/backend/internal/model"
	"ims-cics/backend/internal/repository"
	pkgerrors "ims-cics/backend/pkg/errors"
)

// ── 日考勤合并 ──

// SessionFields 单个半日时段在日考勤中的字段
type SessionFields struct {
	CheckIn     *time.Time
	CheckOut    *time.Time
	TotalHours  float64
	LateMinutes int
	IsVerified  bool
}

// DailyAttendance 同一学生同一天上下午记录合并后的结果
type DailyAttendance struct {
	StudentID   string
	StudentName string
	NIM         string
	Date        time.Time
	Morning     SessionFields
	Afternoon   SessionFields
}

// Fields 按时段选择对应字段组
func (d *DailyAttendance) Fields(session model.SessionType) *SessionFields {
	if session == model.SessionAfternoon {
		return &d.Afternoon
	}
	return &d.Morning
}

// TotalHours 上午 + 下午，保留两位小数
func (d *DailyAttendance) TotalHours() float64 {
	return math.Round((d.Morning.TotalHours+d.Afternoon.TotalHours)*100) / 100
}

// IsVerified 任一时段已核验即视为当日（部分）核验
func (d *DailyAttendance) IsVerified() bool {
	return d.Morning.IsVerified || d.Afternoon.IsVerified
}

// Consolidate 将半日记录按 (student_id, date) 合并为日考勤，结果按日期、学号升序
func Consolidate(records []model.SessionRecord) []DailyAttendance {
	type key struct {
		studentID string
		date      string
	}
	index := make(map[key]int, len(records))
	days := make([]DailyAttendance, 0, len(records))

	for i := range records {
		r := &records[i]
		k := key{studentID: r.StudentID, date: r.AttendanceDate.Format(dto.DateLayout)}
		pos, ok := index[k]
		if !ok {
			day := DailyAttendance{StudentID: r.StudentID, Date: r.AttendanceDate}
			if r.Student != nil {
				day.StudentName = r.Student.Name
				day.NIM = r.Student.NIM
			}
			days = append(days, day)
			pos = len(days) - 1
			index[k] = pos
		}

		f := days[pos].Fields(r.Session)
		f.CheckIn = r.CheckInTime
		f.CheckOut = r.CheckOutTime
		f.TotalHours = r.TotalHours
		f.LateMinutes = r.LateMinutes
		f.IsVerified = r.IsVerified
	}

	sort.SliceStable(days, func(i, j int) bool {
		if !days[i].Date.Equal(days[j].Date) {
			return days[i].Date.Before(days[j].Date)
		}
		return days[i].StudentID < days[j].StudentID
	})
	return days
}

// ── 日考勤查询 ──

// AttendanceQuery 日考勤查询条件（已解析）
type AttendanceQuery struct {
	CompanyID string
	StudentID string
	StartDate *time.Time
	EndDate   *time.Time
}

// AttendanceService 日考勤汇总业务接口
type AttendanceService interface {
	ListDaily(ctx context.Context, req *dto.DailyAttendanceQuery) ([]dto.DailyAttendanceResponse, error)
	ListMine(ctx context.Context, studentID string, req *dto.MyAttendanceQuery) ([]dto.DailyAttendanceResponse, error)
	Query(ctx context.Context, q *AttendanceQuery) ([]DailyAttendance, error)
}

type attendanceService struct {
	repo   *repository.Repository
	loc    *time.Location
	logger *zap.Logger
}

// NewAttendanceService 创建 AttendanceService 实例
func NewAttendanceService(repo *repository.Repository, cfg *config.AttendanceConfig, logger *zap.Logger) AttendanceService {
	return &attendanceService{repo: repo, loc: cfg.Location(), logger: logger}
}

// ────────────────────── ListDaily ──────────────────────

func (s *attendanceService) ListDaily(ctx context.Context, req *dto.DailyAttendanceQuery) ([]dto.DailyAttendanceResponse, error) {
	if req.CompanyID == "" {
		return nil, pkgerrors.Validation(pkgerrors.ReasonInvalidInput, "company_id 不能为空")
	}
	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	days, err := s.Query(ctx, &AttendanceQuery{
		CompanyID: req.CompanyID,
		StudentID: req.StudentID,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		return nil, err
	}
	return s.toDailyResponses(days), nil
}

// ────────────────────── ListMine ──────────────────────

func (s *attendanceService) ListMine(ctx context.Context, studentID string, req *dto.MyAttendanceQuery) ([]dto.DailyAttendanceResponse, error) {
	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	student, err := s.repo.Student.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound(pkgerrors.ReasonStudentNotFound, "学生 %s 不存在", studentID)
		}
		s.logger.Error("查询学生失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}
	if student.CompanyID == nil {
		return []dto.DailyAttendanceResponse{}, nil
	}

	days, err := s.Query(ctx, &AttendanceQuery{
		CompanyID: *student.CompanyID,
		StudentID: studentID,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		return nil, err
	}
	return s.toDailyResponses(days), nil
}

// ────────────────────── Query ──────────────────────

func (s *attendanceService) Query(ctx context.Context, q *AttendanceQuery) ([]DailyAttendance, error) {
	records, err := s.repo.SessionRecord.ListRange(ctx, repository.SessionRecordFilter{
		CompanyID: q.CompanyID,
		StudentID: q.StudentID,
		StartDate: q.StartDate,
		EndDate:   q.EndDate,
	})
	if err != nil {
		s.logger.Error("查询考勤记录失败", zap.String("company_id", q.CompanyID), zap.Error(err))
		return nil, err
	}
	return Consolidate(records), nil
}

// ── 内部辅助方法 ──

func (s *attendanceService) toDailyResponses(days []DailyAttendance) []dto.DailyAttendanceResponse {
	result := make([]dto.DailyAttendanceResponse, 0, len(days))
	for i := range days {
		d := &days[i]
		result = append(result, dto.DailyAttendanceResponse{
			StudentID:            d.StudentID,
			StudentName:          d.StudentName,
			NIM:                  d.NIM,
			Date:                 d.Date.Format(dto.DateLayout),
			MorningCheckIn:       formatInstant(d.Morning.CheckIn, s.loc),
			MorningCheckOut:      formatInstant(d.Morning.CheckOut, s.loc),
			MorningLateMinutes:   d.Morning.LateMinutes,
			TotalMorningHours:    d.Morning.TotalHours,
			AfternoonCheckIn:     formatInstant(d.Afternoon.CheckIn, s.loc),
			AfternoonCheckOut:    formatInstant(d.Afternoon.CheckOut, s.loc),
			AfternoonLateMinutes: d.Afternoon.LateMinutes,
			TotalAfternoonHours:  d.Afternoon.TotalHours,
			TotalHours:           d.TotalHours(),
			IsVerified:           d.IsVerified(),
		})
	}
	return result
}

// parseDateRange 解析可选的起止日期，起始不得晚于结束
func parseDateRange(startStr, endStr string) (*time.Time, *time.Time, error) {
	var start, end *time.Time
	if startStr != "" {
		t, err := time.Parse(dto.DateLayout, startStr)
		if err != nil {
			return nil, nil, pkgerrors.Validation(pkgerrors.ReasonInvalidInput, "start_date 格式应为 YYYY-MM-DD")
		}
		start = &t
	}
	if endStr != "" {
		t, err := time.Parse(dto.DateLayout, endStr)
		if err != nil {
			return nil, nil, pkgerrors.Validation(pkgerrors.ReasonInvalidInput, "end_date 格式应为 YYYY-MM-DD")
		}
		end = &t
	}
	if start != nil && end != nil && start.After(*end) {
		return nil, nil, pkgerrors.Validation(pkgerrors.ReasonInvalidInput,
			"start_date %s 晚于 end_date %s", startStr, endStr)
	}
	return start, end, nil
}
