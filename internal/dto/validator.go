package dto

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// 日期与时刻格式
const (
	DateLayout       = "2006-01-02"
	ClockLayout      = "15:04:05"
	ClockShortLayout = "15:04"
)

// RegisterValidators 在 gin 默认校验器上注册自定义 tag：
//   - datestr: YYYY-MM-DD
//   - clock:   HH:MM 或 HH:MM:SS
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("binding 校验引擎不是 validator/v10")
	}
	if err := v.RegisterValidation("datestr", validateDate); err != nil {
		return err
	}
	return v.RegisterValidation("clock", validateClock)
}

func validateDate(fl validator.FieldLevel) bool {
	_, err := time.Parse(DateLayout, fl.Field().String())
	return err == nil
}

func validateClock(fl validator.FieldLevel) bool {
	return IsClock(fl.Field().String())
}

// IsClock 判断是否为合法时刻
func IsClock(s string) bool {
	if _, err := time.Parse(ClockLayout, s); err == nil {
		return true
	}
	_, err := time.Parse(ClockShortLayout, s)
	return err == nil
}
