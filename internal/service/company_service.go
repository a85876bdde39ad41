package service

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"ims-cics/backend/internal/dto"
	"ims-cics/backend/internal/model"
	"ims-cics/backend/internal/repository"
	pkgerrors "ims-cics/backend/pkg/errors"
)

// CompanyService 实习单位围栏与工作日业务接口
type CompanyService interface {
	GetGeofence(ctx context.Context, companyID string) (*dto.GeofenceResponse, error)
	UpdateGeofence(ctx context.Context, companyID string, req *dto.UpdateGeofenceRequest, callerID string) (*dto.GeofenceResponse, error)
}

type companyService struct {
	repo        *repository.Repository
	defaultDays []int
	logger      *zap.Logger
}

// NewCompanyService 创建 CompanyService 实例
func NewCompanyService(repo *repository.Repository, defaultDays []int, logger *zap.Logger) CompanyService {
	return &companyService{repo: repo, defaultDays: defaultDays, logger: logger}
}

// ────────────────────── GetGeofence ──────────────────────

func (s *companyService) GetGeofence(ctx context.Context, companyID string) (*dto.GeofenceResponse, error) {
	company, err := s.getCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return s.toGeofenceResponse(company), nil
}

// ────────────────────── UpdateGeofence ──────────────────────

func (s *companyService) UpdateGeofence(ctx context.Context, companyID string, req *dto.UpdateGeofenceRequest, callerID string) (*dto.GeofenceResponse, error) {
	company, err := s.getCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	lat, lng, radius := req.Latitude, req.Longitude, req.RadiusMeters
	company.Latitude = &lat
	company.Longitude = &lng
	company.RadiusMeters = &radius
	if req.WorkingDays != nil {
		company.WorkingDays = normalizeWorkingDays(req.WorkingDays)
	}

	if err := s.repo.Company.UpdateGeofence(ctx, company); err != nil {
		s.logger.Error("更新实习单位围栏失败", zap.String("company_id", companyID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("实习单位围栏已更新",
		zap.String("company_id", companyID),
		zap.String("updated_by", callerID),
		zap.Int("radius_meters", radius),
		zap.Ints("working_days", company.WorkingDays),
	)

	return s.toGeofenceResponse(company), nil
}

// ── 内部辅助方法 ──

func (s *companyService) getCompany(ctx context.Context, companyID string) (*model.Company, error) {
	company, err := s.repo.Company.GetByID(ctx, companyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound(pkgerrors.ReasonCompanyNotFound, "实习单位 %s 不存在", companyID)
		}
		s.logger.Error("查询实习单位失败", zap.String("company_id", companyID), zap.Error(err))
		return nil, err
	}
	return company, nil
}

func (s *companyService) toGeofenceResponse(c *model.Company) *dto.GeofenceResponse {
	_, _, configured := c.Geofence()
	return &dto.GeofenceResponse{
		CompanyID:    c.CompanyID,
		Name:         c.Name,
		Latitude:     c.Latitude,
		Longitude:    c.Longitude,
		RadiusMeters: c.RadiusMeters,
		Configured:   configured,
		WorkingDays:  effectiveWorkingDays(c, s.defaultDays),
	}
}

// effectiveWorkingDays 单位未配置工作日时使用默认工作日
func effectiveWorkingDays(c *model.Company, defaultDays []int) model.IntArray {
	if len(c.WorkingDays) > 0 {
		return c.WorkingDays
	}
	return model.IntArray(defaultDays)
}

// normalizeWorkingDays 去重并升序
func normalizeWorkingDays(days []int) model.IntArray {
	seen := make(map[int]bool, len(days))
	out := make(model.IntArray, 0, len(days))
	for _, d := range days {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Ints(out)
	return out
}
