package errors

import (
	"errors"
	"fmt"
)

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// Kind 业务错误大类，决定 HTTP 状态码
type Kind int

const (
	KindConfig     Kind = iota + 1 // 管理员配置缺失，需管理员修复
	KindValidation                 // 输入或业务规则校验未通过
	KindConflict                   // 状态冲突（重复签到/签退）
	KindNotFound                   // 依赖的记录不存在
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Reason 细分原因码，errors.Is 以此判等
type Reason string

const (
	ReasonMissingGeofence   Reason = "missing_geofence"
	ReasonStudentNotFound   Reason = "student_not_found"
	ReasonCompanyNotFound   Reason = "company_not_found"
	ReasonOutsideGeofence   Reason = "outside_geofence"
	ReasonSpoofingSuspected Reason = "spoofing_suspected"
	ReasonNonWorkingDay     Reason = "non_working_day"
	ReasonOutsideWindow     Reason = "outside_window"
	ReasonBadSequence       Reason = "bad_sequence"
	ReasonLocationRequired  Reason = "location_required"
	ReasonInvalidInput      Reason = "invalid_input"
	ReasonAlreadyCheckedIn  Reason = "already_checked_in"
	ReasonAlreadyCheckedOut Reason = "already_checked_out"
	ReasonNoActiveSession   Reason = "no_active_session"
)

// AppError 可由调用方修正输入或由管理员处理的业务错误
type AppError struct {
	Kind    Kind
	Reason  Reason
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// Is 按 Reason 判等，使带具体文案的错误仍能匹配哨兵值
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Reason == t.Reason
}

// New 创建业务错误
func New(kind Kind, reason Reason, format string, args ...interface{}) *AppError {
	return &AppError{Kind: kind, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Config 配置类错误
func Config(reason Reason, format string, args ...interface{}) *AppError {
	return New(KindConfig, reason, format, args...)
}

// Validation 校验类错误
func Validation(reason Reason, format string, args ...interface{}) *AppError {
	return New(KindValidation, reason, format, args...)
}

// Conflict 冲突类错误
func Conflict(reason Reason, format string, args ...interface{}) *AppError {
	return New(KindConflict, reason, format, args...)
}

// NotFound 不存在类错误
func NotFound(reason Reason, format string, args ...interface{}) *AppError {
	return New(KindNotFound, reason, format, args...)
}

// As 提取 AppError；非业务错误返回 nil, false
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
