package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"ims-cics/backend/config"
	"ims-cics/backend/internal/dto"
	pkgerrors "ims-cics/backend/pkg/errors"
)

// ── 导出模块业务错误 ──

var (
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 设计说明：
//   - 导出合并后的日考勤（每个学生每天一行）为 Excel (.xlsx)
//   - 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
//   - 无数据时仍返回只含表头的文件
type ExportService interface {
	// ExportAttendance 导出日考勤为 Excel
	ExportAttendance(ctx context.Context, req *dto.DailyAttendanceQuery) (*bytes.Buffer, string, error)
}

type exportService struct {
	attendance AttendanceService
	loc        *time.Location
	logger     *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(attendance AttendanceService, cfg *config.AttendanceConfig, logger *zap.Logger) ExportService {
	return &exportService{attendance: attendance, loc: cfg.Location(), logger: logger}
}

var attendanceHeaders = []string{
	"日期", "学号", "姓名",
	"上午签到", "上午签退", "上午迟到(分钟)", "上午时长(小时)",
	"下午签到", "下午签退", "下午迟到(分钟)", "下午时长(小时)",
	"合计(小时)", "已核验",
}

// ═══════════════════════════════════════════════════════════
// ExportAttendance 导出日考勤为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "考勤汇总"
//   - 第 1 行标题（日期范围），第 2 行表头，第 3 行起为数据
//
// 返回值：buf（Excel 内容）, filename（建议文件名）, error

func (s *exportService) ExportAttendance(ctx context.Context, req *dto.DailyAttendanceQuery) (*bytes.Buffer, string, error) {
	if req.CompanyID == "" {
		return nil, "", pkgerrors.Validation(pkgerrors.ReasonInvalidInput, "company_id 不能为空")
	}
	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, "", err
	}

	days, err := s.attendance.Query(ctx, &AttendanceQuery{
		CompanyID: req.CompanyID,
		StudentID: req.StudentID,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		return nil, "", err
	}

	rangeLabel := exportRangeLabel(req.StartDate, req.EndDate)

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "考勤汇总"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 12)
	f.SetColWidth(sheetName, "B", "C", 16)
	f.SetColWidth(sheetName, "D", colName(len(attendanceHeaders)-1), 14)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	lastCol := colName(len(attendanceHeaders) - 1)
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("实习考勤汇总（%s）", rangeLabel))
	f.MergeCell(sheetName, "A1", cell(lastCol, 1))
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	for i, h := range attendanceHeaders {
		f.SetCellValue(sheetName, cell(colName(i), 2), h)
	}
	f.SetCellStyle(sheetName, "A2", cell(lastCol, 2), headerStyle)

	// 数据行
	row := 3
	for i := range days {
		d := &days[i]
		values := []interface{}{
			d.Date.Format(dto.DateLayout),
			d.NIM,
			d.StudentName,
			s.clockText(d.Morning.CheckIn),
			s.clockText(d.Morning.CheckOut),
			d.Morning.LateMinutes,
			d.Morning.TotalHours,
			s.clockText(d.Afternoon.CheckIn),
			s.clockText(d.Afternoon.CheckOut),
			d.Afternoon.LateMinutes,
			d.Afternoon.TotalHours,
			d.TotalHours(),
			verifiedText(d.IsVerified()),
		}
		for col, v := range values {
			f.SetCellValue(sheetName, cell(colName(col), row), v)
		}
		row++
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	s.logger.Info("导出考勤汇总",
		zap.String("company_id", req.CompanyID),
		zap.String("range", rangeLabel),
		zap.Int("rows", len(days)),
	)

	filename := fmt.Sprintf("考勤汇总_%s.xlsx", rangeLabel)
	return buf, filename, nil
}

// ── 辅助函数 ──

func (s *exportService) clockText(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.In(s.loc).Format(dto.ClockLayout)
}

func verifiedText(v bool) string {
	if v {
		return "是"
	}
	return "否"
}

func exportRangeLabel(start, end string) string {
	switch {
	case start != "" && end != "":
		return start + "_" + end
	case start != "":
		return start + "_起"
	case end != "":
		return "截至_" + end
	default:
		return "全部"
	}
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
