package repository

import (
	"context"

	"gorm.io/gorm"

	"ims-cics/backend/internal/model"
)

// CompanyRepository 实习单位数据访问接口（考勤只读围栏与工作日，管理员可更新）
type CompanyRepository interface {
	GetByID(ctx context.Context, id string) (*model.Company, error)
	UpdateGeofence(ctx context.Context, company *model.Company) error
}

type companyRepo struct {
	db *gorm.DB
}

// NewCompanyRepo 创建 CompanyRepository 实例
func NewCompanyRepo(db *gorm.DB) CompanyRepository {
	return &companyRepo{db: db}
}

func (r *companyRepo) GetByID(ctx context.Context, id string) (*model.Company, error) {
	var company model.Company
	err := r.db.WithContext(ctx).
		Where("company_id = ?", id).
		First(&company).Error
	if err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *companyRepo) UpdateGeofence(ctx context.Context, company *model.Company) error {
	return r.db.WithContext(ctx).
		Model(&model.Company{}).
		Where("company_id = ?", company.CompanyID).
		Updates(map[string]interface{}{
			"latitude":      company.Latitude,
			"longitude":     company.Longitude,
			"radius_meters": company.RadiusMeters,
			"working_days":  company.WorkingDays,
			"updated_at":    gorm.Expr("NOW()"),
		}).Error
}

// StudentRepository 学生数据访问接口（只读）
type StudentRepository interface {
	GetByID(ctx context.Context, id string) (*model.Student, error)
}

type studentRepo struct {
	db *gorm.DB
}

// NewStudentRepo 创建 StudentRepository 实例
func NewStudentRepo(db *gorm.DB) StudentRepository {
	return &studentRepo{db: db}
}

func (r *studentRepo) GetByID(ctx context.Context, id string) (*model.Student, error) {
	var student model.Student
	err := r.db.WithContext(ctx).
		Preload("Company").
		Where("student_id = ?", id).
		First(&student).Error
	if err != nil {
		return nil, err
	}
	return &student, nil
}
