package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ims-cics/backend/config"
)

// Client Redis 客户端封装
// 用于 Token 黑名单、接口限流，以及防作弊检测的最近定位缓存
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// NewFromRedis 基于已有 go-redis 客户端构造（测试使用 miniredis）
func NewFromRedis(rdb *goredis.Client, logger *zap.Logger) *Client {
	return &Client{rdb: rdb, logger: logger}
}

// ── Token 黑名单 ──

const blacklistPrefix = "token:blacklist:"

// BlacklistToken 将 JWT ID 加入黑名单，TTL 与 Token 剩余有效期一致
func (c *Client) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // Token 已过期，无需加入黑名单
	}
	return c.rdb.Set(ctx, blacklistPrefix+jti, "1", ttl).Err()
}

// IsBlacklisted 检查 JWT ID 是否在黑名单中
func (c *Client) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := c.rdb.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ── 限流 ──

// CheckRateLimit 基于有序集合的滑动窗口限流，返回本次请求是否放行
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	windowStart := now.Add(-window).UnixNano()

	pipe := c.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	card := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, goredis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return card.Val() < int64(limit), nil
}

// ── 最近定位缓存 ──

const lastLocationPrefix = "attendance:last_location:"

// LastLocation 学生最近一次签到定位快照
type LastLocation struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RecordedAt time.Time `json:"recorded_at"`
}

// SetLastLocation 写入最近定位；仅当新样本不早于已缓存样本时覆盖
func (c *Client) SetLastLocation(ctx context.Context, studentID string, loc LastLocation, ttl time.Duration) error {
	current, err := c.GetLastLocation(ctx, studentID)
	if err != nil {
		return err
	}
	if current != nil && current.RecordedAt.After(loc.RecordedAt) {
		return nil
	}

	payload, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, lastLocationPrefix+studentID, payload, ttl).Err()
}

// GetLastLocation 读取最近定位；未命中返回 nil, nil
func (c *Client) GetLastLocation(ctx context.Context, studentID string) (*LastLocation, error) {
	raw, err := c.rdb.Get(ctx, lastLocationPrefix+studentID).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var loc LastLocation
	if err := json.Unmarshal(raw, &loc); err != nil {
		c.logger.Warn("最近定位缓存格式异常，已忽略", zap.String("student_id", studentID), zap.Error(err))
		return nil, nil
	}
	return &loc, nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
