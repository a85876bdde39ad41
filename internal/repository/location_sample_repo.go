package repository

import (
	"context"

	"gorm.io/gorm"

	"ims-cics/backend/internal/model"
)

// LocationSampleRepository 签到定位历史数据访问接口（只追加）
type LocationSampleRepository interface {
	Create(ctx context.Context, sample *model.LocationSample) error
	// LatestByStudent 返回最近一条样本；无历史时返回 gorm.ErrRecordNotFound
	LatestByStudent(ctx context.Context, studentID string) (*model.LocationSample, error)
}

type locationSampleRepo struct {
	db *gorm.DB
}

// NewLocationSampleRepo 创建 LocationSampleRepository 实例
func NewLocationSampleRepo(db *gorm.DB) LocationSampleRepository {
	return &locationSampleRepo{db: db}
}

func (r *locationSampleRepo) Create(ctx context.Context, sample *model.LocationSample) error {
	return r.db.WithContext(ctx).Create(sample).Error
}

func (r *locationSampleRepo) LatestByStudent(ctx context.Context, studentID string) (*model.LocationSample, error) {
	var sample model.LocationSample
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("recorded_at DESC, location_sample_id DESC").
		First(&sample).Error
	if err != nil {
		return nil, err
	}
	return &sample, nil
}
