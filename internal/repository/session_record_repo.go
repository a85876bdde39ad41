package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"ims-cics/backend/internal/model"
	pkgerrors "ims-cics/backend/pkg/errors"
)

// SessionRecordFilter 考勤记录范围查询条件
type SessionRecordFilter struct {
	CompanyID string     // 必填：按学生所属单位过滤
	StudentID string     // 可选
	StartDate *time.Time // 可选，含
	EndDate   *time.Time // 可选，含
}

// SessionRecordRepository 半日考勤记录数据访问接口
type SessionRecordRepository interface {
	// Create 插入新记录；唯一键冲突时返回的错误满足 IsUniqueViolation
	Create(ctx context.Context, record *model.SessionRecord) error
	GetByKey(ctx context.Context, studentID string, date time.Time, session model.SessionType) (*model.SessionRecord, error)
	ListByStudentAndDate(ctx context.Context, studentID string, date time.Time) ([]model.SessionRecord, error)
	// CompleteCheckOut 仅当记录尚未签退时写入签退结果，否则返回 ErrOptimisticLock
	CompleteCheckOut(ctx context.Context, record *model.SessionRecord) error
	ListRange(ctx context.Context, filter SessionRecordFilter) ([]model.SessionRecord, error)
}

type sessionRecordRepo struct {
	db *gorm.DB
}

// NewSessionRecordRepo 创建 SessionRecordRepository 实例
func NewSessionRecordRepo(db *gorm.DB) SessionRecordRepository {
	return &sessionRecordRepo{db: db}
}

func (r *sessionRecordRepo) Create(ctx context.Context, record *model.SessionRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *sessionRecordRepo) GetByKey(ctx context.Context, studentID string, date time.Time, session model.SessionType) (*model.SessionRecord, error) {
	var record model.SessionRecord
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND attendance_date = ? AND session = ?", studentID, date.Format("2006-01-02"), session).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *sessionRecordRepo) ListByStudentAndDate(ctx context.Context, studentID string, date time.Time) ([]model.SessionRecord, error) {
	var records []model.SessionRecord
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND attendance_date = ?", studentID, date.Format("2006-01-02")).
		Order("session DESC"). // morning 在前
		Find(&records).Error
	return records, err
}

func (r *sessionRecordRepo) CompleteCheckOut(ctx context.Context, record *model.SessionRecord) error {
	result := r.db.WithContext(ctx).
		Model(&model.SessionRecord{}).
		Where("session_record_id = ? AND check_out_time IS NULL", record.SessionRecordID).
		Updates(map[string]interface{}{
			"check_out_time": record.CheckOutTime,
			"total_hours":    record.TotalHours,
			"is_verified":    record.IsVerified,
			"remarks":        record.Remarks,
			"updated_at":     gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

func (r *sessionRecordRepo) ListRange(ctx context.Context, filter SessionRecordFilter) ([]model.SessionRecord, error) {
	var records []model.SessionRecord
	db := r.db.WithContext(ctx).
		Preload("Student").
		Joins("JOIN students ON students.student_id = session_records.student_id").
		Where("students.company_id = ?", filter.CompanyID)

	if filter.StudentID != "" {
		db = db.Where("session_records.student_id = ?", filter.StudentID)
	}
	if filter.StartDate != nil {
		db = db.Where("session_records.attendance_date >= ?", filter.StartDate.Format("2006-01-02"))
	}
	if filter.EndDate != nil {
		db = db.Where("session_records.attendance_date <= ?", filter.EndDate.Format("2006-01-02"))
	}

	err := db.
		Order("session_records.attendance_date ASC, session_records.student_id ASC, session_records.session DESC").
		Find(&records).Error
	return records, err
}
