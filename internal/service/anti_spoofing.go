package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"ims-cics/backend/internal/repository"
	"ims-cics/backend/pkg/geo"
	"ims-cics/backend/pkg/redis"
)

// ── 原始信号自检（仅提示） ──

// 信号异常标记
const (
	IndicatorAccuracyZero       = "accuracy_zero"        // 精度恰为 0
	IndicatorAccuracyTooPerfect = "accuracy_too_perfect" // 精度优于 1 米，真实设备几乎不可能
	IndicatorAccuracyOutOfRange = "accuracy_out_of_range"
	IndicatorAccuracyMissing    = "accuracy_missing"
	IndicatorMotionFieldsAbsent = "motion_fields_absent" // 缺少海拔与速度
)

const (
	minPlausibleAccuracy = 1.0
	maxPlausibleAccuracy = 1000.0
)

// SignalReport 设备上报的原始定位信号
type SignalReport struct {
	Point    geo.Point
	Accuracy *float64
	Altitude *float64
	Speed    *float64
}

// SignalAssessment 信号自检结果；Indicators 非空即可疑
type SignalAssessment struct {
	Valid      bool
	Indicators []string
}

// AssessSignal 检查原始定位信号中的模拟定位特征。
// 结果只作提示，服务端以 DetectImpossibleMovement 为准。
func AssessSignal(r SignalReport) SignalAssessment {
	indicators := make([]string, 0, 2)

	switch {
	case r.Accuracy == nil:
		indicators = append(indicators, IndicatorAccuracyMissing)
	case *r.Accuracy == 0:
		indicators = append(indicators, IndicatorAccuracyZero)
	case *r.Accuracy < 0 || *r.Accuracy > maxPlausibleAccuracy:
		indicators = append(indicators, IndicatorAccuracyOutOfRange)
	case *r.Accuracy < minPlausibleAccuracy:
		indicators = append(indicators, IndicatorAccuracyTooPerfect)
	}

	if r.Altitude == nil && r.Speed == nil {
		indicators = append(indicators, IndicatorMotionFieldsAbsent)
	}

	return SignalAssessment{Valid: len(indicators) == 0, Indicators: indicators}
}

// ── 服务端移动合理性校验 ──

// LastLocationCache 最近定位缓存（Redis 实现见 pkg/redis）
type LastLocationCache interface {
	GetLastLocation(ctx context.Context, studentID string) (*redis.LastLocation, error)
	SetLastLocation(ctx context.Context, studentID string, loc redis.LastLocation, ttl time.Duration) error
}

// MovementCheck 移动合理性判定结果
type MovementCheck struct {
	Possible         bool
	HasHistory       bool
	DistanceMeters   float64
	TimeDiffSeconds  float64
	RequiredSpeedKmh float64
}

// AntiSpoofingGuard 根据学生上一次已知定位判断本次位置是否可达
type AntiSpoofingGuard struct {
	repo        *repository.Repository
	cache       LastLocationCache // 可为 nil，此时直接查库
	maxSpeedKmh float64
	logger      *zap.Logger
}

// NewAntiSpoofingGuard 创建 AntiSpoofingGuard
func NewAntiSpoofingGuard(repo *repository.Repository, cache LastLocationCache, maxSpeedKmh float64, logger *zap.Logger) *AntiSpoofingGuard {
	return &AntiSpoofingGuard{repo: repo, cache: cache, maxSpeedKmh: maxSpeedKmh, logger: logger}
}

// MaxSpeedKmh 速度上限
func (g *AntiSpoofingGuard) MaxSpeedKmh() float64 {
	return g.maxSpeedKmh
}

// DetectImpossibleMovement 以上一条定位为基准计算所需速度，超过上限即判定不可能。
// 无历史定位时直接通过；时间差不大于 0 时按 1 秒计算。
func (g *AntiSpoofingGuard) DetectImpossibleMovement(ctx context.Context, studentID string, point geo.Point, at time.Time) (*MovementCheck, error) {
	last, err := g.lastKnown(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return &MovementCheck{Possible: true}, nil
	}

	distance := geo.DistanceMeters(geo.Point{Lat: last.Lat, Lng: last.Lng}, point)
	elapsed := at.Sub(last.RecordedAt).Seconds()
	if elapsed < 1 {
		elapsed = 1
	}
	speed := distance / elapsed * 3.6

	return &MovementCheck{
		Possible:         speed <= g.maxSpeedKmh,
		HasHistory:       true,
		DistanceMeters:   distance,
		TimeDiffSeconds:  elapsed,
		RequiredSpeedKmh: speed,
	}, nil
}

// lastKnown 先读缓存，未命中或缓存异常时回源数据库
func (g *AntiSpoofingGuard) lastKnown(ctx context.Context, studentID string) (*redis.LastLocation, error) {
	if g.cache != nil {
		loc, err := g.cache.GetLastLocation(ctx, studentID)
		if err != nil {
			g.logger.Warn("读取最近定位缓存失败，回源数据库", zap.String("student_id", studentID), zap.Error(err))
		} else if loc != nil {
			return loc, nil
		}
	}

	sample, err := g.repo.LocationSample.LatestByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		g.logger.Error("查询最近定位失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}

	return &redis.LastLocation{Lat: sample.Latitude, Lng: sample.Longitude, RecordedAt: sample.RecordedAt}, nil
}
