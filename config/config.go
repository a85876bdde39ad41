package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // 容器镜像可能缺少系统时区数据

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"db"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Log        LogConfig        `mapstructure:"log"`
	Attendance AttendanceConfig `mapstructure:"attendance"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port int        `mapstructure:"port"`
	CORS CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 缓存配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置（Token 由外部身份服务签发，本服务只校验）
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AttendanceConfig 考勤引擎配置
type AttendanceConfig struct {
	Timezone                string         `mapstructure:"timezone"`
	GeofenceToleranceMeters float64        `mapstructure:"geofence_tolerance_meters"`
	MaxSpeedKmh             float64        `mapstructure:"max_speed_kmh"`
	DefaultWorkingDays      []int          `mapstructure:"default_working_days"`
	Fallback                FallbackConfig `mapstructure:"fallback"`
	HistoryWriteTimeout     time.Duration  `mapstructure:"history_write_timeout"`
	LastLocationTTL         time.Duration  `mapstructure:"last_location_ttl"`
	ClockRateLimit          int            `mapstructure:"clock_rate_limit"`
	ClockRateWindow         time.Duration  `mapstructure:"clock_rate_window"`
}

// FallbackConfig 未配置作息时间时使用的兜底时段
type FallbackConfig struct {
	Morning   SessionWindowConfig `mapstructure:"morning"`
	Afternoon SessionWindowConfig `mapstructure:"afternoon"`
}

// SessionWindowConfig 单个半日时段，格式 HH:MM
type SessionWindowConfig struct {
	CheckinStart  string `mapstructure:"checkin_start"`
	CheckinEnd    string `mapstructure:"checkin_end"`
	StandardStart string `mapstructure:"standard_start"`
}

// Location 解析考勤时区，Validate 已保证可解析
func (c *AttendanceConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("IMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// ── 关键配置校验 ──
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "ims_cics")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Asia/Jakarta")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)  // 60分钟
	v.SetDefault("db.conn_max_idle_time", 30) // 30分钟

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.access_token_ttl", "15m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("attendance.timezone", "Asia/Jakarta")
	v.SetDefault("attendance.geofence_tolerance_meters", 20)
	v.SetDefault("attendance.max_speed_kmh", 200)
	v.SetDefault("attendance.default_working_days", []int{1, 2, 3, 4, 5})
	v.SetDefault("attendance.fallback.morning.checkin_start", "07:45")
	v.SetDefault("attendance.fallback.morning.checkin_end", "11:45")
	v.SetDefault("attendance.fallback.morning.standard_start", "08:00")
	v.SetDefault("attendance.fallback.afternoon.checkin_start", "12:45")
	v.SetDefault("attendance.fallback.afternoon.checkin_end", "16:45")
	v.SetDefault("attendance.fallback.afternoon.standard_start", "13:00")
	v.SetDefault("attendance.history_write_timeout", "5s")
	v.SetDefault("attendance.last_location_ttl", "72h")
	v.SetDefault("attendance.clock_rate_limit", 10)
	v.SetDefault("attendance.clock_rate_window", "1m")
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	return c.Attendance.validate()
}

func (c *AttendanceConfig) validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("配置校验失败: attendance.timezone %q 无效: %w", c.Timezone, err)
	}
	if c.GeofenceToleranceMeters < 0 {
		return fmt.Errorf("配置校验失败: attendance.geofence_tolerance_meters 不能为负数")
	}
	if c.MaxSpeedKmh <= 0 {
		return fmt.Errorf("配置校验失败: attendance.max_speed_kmh 必须大于 0")
	}
	for _, d := range c.DefaultWorkingDays {
		if d < 1 || d > 7 {
			return fmt.Errorf("配置校验失败: attendance.default_working_days 取值必须在 1-7 之间，实际 %d", d)
		}
	}
	windows := map[string]SessionWindowConfig{
		"morning":   c.Fallback.Morning,
		"afternoon": c.Fallback.Afternoon,
	}
	for name, w := range windows {
		for field, val := range map[string]string{
			"checkin_start":  w.CheckinStart,
			"checkin_end":    w.CheckinEnd,
			"standard_start": w.StandardStart,
		} {
			if _, err := time.Parse("15:04", val); err != nil {
				return fmt.Errorf("配置校验失败: attendance.fallback.%s.%s 格式应为 HH:MM，实际 %q", name, field, val)
			}
		}
	}
	return nil
}
