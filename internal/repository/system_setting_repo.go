package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ims-cics/backend/internal/model"
)

// SystemSettingRepository 系统设置数据访问接口
type SystemSettingRepository interface {
	Get(ctx context.Context) (*model.SystemSetting, error)
	Upsert(ctx context.Context, setting *model.SystemSetting) error
}

type systemSettingRepo struct {
	db *gorm.DB
}

// NewSystemSettingRepo 创建 SystemSettingRepository 实例
func NewSystemSettingRepo(db *gorm.DB) SystemSettingRepository {
	return &systemSettingRepo{db: db}
}

func (r *systemSettingRepo) Get(ctx context.Context) (*model.SystemSetting, error) {
	var setting model.SystemSetting
	err := r.db.WithContext(ctx).First(&setting).Error
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

// Upsert 单行表不存在时插入，存在时整体覆盖作息字段
func (r *systemSettingRepo) Upsert(ctx context.Context, setting *model.SystemSetting) error {
	setting.Singleton = true
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "singleton"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"morning_checkin_start", "morning_checkin_end", "morning_standard_start",
				"afternoon_checkin_start", "afternoon_checkin_end", "afternoon_standard_start",
				"updated_by", "updated_at",
			}),
		}).
		Create(setting).Error
}
