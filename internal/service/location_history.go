package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"ims-cics/backend/internal/model"
	"ims-cics/backend/internal/repository"
	"ims-cics/backend/pkg/redis"
)

// LocationHistoryWriter 签到成功后追加定位历史。
// 写入与签到请求脱离：独立 goroutine、独立超时，失败只记日志，不影响签到结果。
type LocationHistoryWriter struct {
	repo    *repository.Repository
	cache   LastLocationCache
	timeout time.Duration
	ttl     time.Duration
	logger  *zap.Logger

	wg sync.WaitGroup
}

// NewLocationHistoryWriter 创建 LocationHistoryWriter；cache 可为 nil
func NewLocationHistoryWriter(repo *repository.Repository, cache LastLocationCache, timeout, ttl time.Duration, logger *zap.Logger) *LocationHistoryWriter {
	return &LocationHistoryWriter{repo: repo, cache: cache, timeout: timeout, ttl: ttl, logger: logger}
}

// Append 异步写入一条定位样本，立即返回
func (w *LocationHistoryWriter) Append(ctx context.Context, sample model.LocationSample) {
	detached := context.WithoutCancel(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ctx, cancel := context.WithTimeout(detached, w.timeout)
		defer cancel()

		if err := w.repo.LocationSample.Create(ctx, &sample); err != nil {
			w.logger.Error("追加定位历史失败",
				zap.String("student_id", sample.StudentID),
				zap.Error(err),
			)
			return
		}

		if w.cache == nil {
			return
		}
		loc := redis.LastLocation{Lat: sample.Latitude, Lng: sample.Longitude, RecordedAt: sample.RecordedAt}
		if err := w.cache.SetLastLocation(ctx, sample.StudentID, loc, w.ttl); err != nil {
			w.logger.Warn("写入最近定位缓存失败",
				zap.String("student_id", sample.StudentID),
				zap.Error(err),
			)
		}
	}()
}

// Wait 等待所有在途写入完成；ctx 到期时放弃等待并返回 ctx.Err()
func (w *LocationHistoryWriter) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
