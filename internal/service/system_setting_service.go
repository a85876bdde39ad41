package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"ims-cics/backend/config"
	"ims-cics/backend/internal/dto"
	"ims-cics/backend/internal/model"
	"ims-cics/backend/internal/repository"
	pkgerrors "ims-cics/backend/pkg/errors"
)

// SystemSettingService 作息时间设置业务接口
type SystemSettingService interface {
	// Snapshot 读取并补齐当前作息配置，供单次请求使用
	Snapshot(ctx context.Context) (ScheduleSnapshot, error)
	GetSchedule(ctx context.Context) (*dto.ScheduleResponse, error)
	UpdateSchedule(ctx context.Context, req *dto.UpdateScheduleRequest, callerID string) (*dto.ScheduleResponse, error)
}

type systemSettingService struct {
	repo     *repository.Repository
	fallback config.FallbackConfig
	logger   *zap.Logger
}

// NewSystemSettingService 创建 SystemSettingService 实例
func NewSystemSettingService(repo *repository.Repository, fallback config.FallbackConfig, logger *zap.Logger) SystemSettingService {
	return &systemSettingService{repo: repo, fallback: fallback, logger: logger}
}

// ────────────────────── Snapshot ──────────────────────

func (s *systemSettingService) Snapshot(ctx context.Context) (ScheduleSnapshot, error) {
	setting, err := s.load(ctx)
	if err != nil {
		return ScheduleSnapshot{}, err
	}
	return ResolveSchedule(setting, s.fallback)
}

// ────────────────────── GetSchedule ──────────────────────

func (s *systemSettingService) GetSchedule(ctx context.Context) (*dto.ScheduleResponse, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return toScheduleResponse(snap), nil
}

// ────────────────────── UpdateSchedule ──────────────────────

func (s *systemSettingService) UpdateSchedule(ctx context.Context, req *dto.UpdateScheduleRequest, callerID string) (*dto.ScheduleResponse, error) {
	setting, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if setting == nil {
		setting = &model.SystemSetting{}
	}

	fields := []struct {
		name string
		in   *string
		dst  **datatypes.Time
	}{
		{"morning_checkin_start", req.MorningCheckinStart, &setting.MorningCheckinStart},
		{"morning_checkin_end", req.MorningCheckinEnd, &setting.MorningCheckinEnd},
		{"morning_standard_start", req.MorningStandardStart, &setting.MorningStandardStart},
		{"afternoon_checkin_start", req.AfternoonCheckinStart, &setting.AfternoonCheckinStart},
		{"afternoon_checkin_end", req.AfternoonCheckinEnd, &setting.AfternoonCheckinEnd},
		{"afternoon_standard_start", req.AfternoonStandardStart, &setting.AfternoonStandardStart},
	}
	for _, f := range fields {
		if f.in == nil {
			continue
		}
		if *f.in == "" {
			*f.dst = nil
			continue
		}
		c, err := ParseClock(*f.in)
		if err != nil {
			return nil, pkgerrors.Validation(pkgerrors.ReasonInvalidInput, "%s: %v", f.name, err)
		}
		t := c.ToTime()
		*f.dst = &t
	}
	setting.UpdatedBy = &callerID

	if err := s.repo.SystemSetting.Upsert(ctx, setting); err != nil {
		s.logger.Error("保存作息时间失败", zap.Error(err))
		return nil, err
	}

	snap, err := ResolveSchedule(setting, s.fallback)
	if err != nil {
		return nil, err
	}

	s.logger.Info("作息时间已更新",
		zap.String("updated_by", callerID),
		zap.String("morning", snap.Morning.CheckinStart.String()+"-"+snap.Morning.CheckinEnd.String()),
		zap.String("afternoon", snap.Afternoon.CheckinStart.String()+"-"+snap.Afternoon.CheckinEnd.String()),
	)

	return toScheduleResponse(snap), nil
}

// ── 内部辅助方法 ──

// load 未配置时返回 nil, nil
func (s *systemSettingService) load(ctx context.Context) (*model.SystemSetting, error) {
	setting, err := s.repo.SystemSetting.Get(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		s.logger.Error("查询作息时间失败", zap.Error(err))
		return nil, err
	}
	return setting, nil
}

func toScheduleResponse(snap ScheduleSnapshot) *dto.ScheduleResponse {
	toWindow := func(w SessionWindow) dto.SessionWindowResponse {
		return dto.SessionWindowResponse{
			CheckinStart:  w.CheckinStart.String(),
			CheckinEnd:    w.CheckinEnd.String(),
			StandardStart: w.StandardStart.String(),
			WrapsMidnight: w.WrapsMidnight(),
		}
	}
	return &dto.ScheduleResponse{
		Morning:      toWindow(snap.Morning),
		Afternoon:    toWindow(snap.Afternoon),
		UsesFallback: snap.UsesFallback,
	}
}
