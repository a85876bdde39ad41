package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"ims-cics/backend/internal/dto"
	"ims-cics/backend/internal/service"
	"ims-cics/backend/pkg/jwt"
	"ims-cics/backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := dto.RegisterValidators(); err != nil {
		panic(err)
	}
}

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock TimesheetService ──

type mockTimesheetService struct {
	lastEvent   *dto.ClockEventRequest
	clockResult *dto.SessionRecordResponse
	clockErr    error
	todayID     string
	todayScope  string
	todayResult *dto.TodaySessionsResponse
	todayErr    error
	signal      *dto.SignalCheckResponse
}

func (m *mockTimesheetService) HandleClockEvent(_ context.Context, req *dto.ClockEventRequest) (*dto.SessionRecordResponse, error) {
	m.lastEvent = req
	return m.clockResult, m.clockErr
}
func (m *mockTimesheetService) CheckIn(_ context.Context, _ *service.CheckInCommand) (*dto.SessionRecordResponse, error) {
	return m.clockResult, m.clockErr
}
func (m *mockTimesheetService) CheckOut(_ context.Context, _ *service.CheckOutCommand) (*dto.SessionRecordResponse, error) {
	return m.clockResult, m.clockErr
}
func (m *mockTimesheetService) TodaySessions(_ context.Context, studentID, companyScope string) (*dto.TodaySessionsResponse, error) {
	m.todayID = studentID
	m.todayScope = companyScope
	return m.todayResult, m.todayErr
}
func (m *mockTimesheetService) CheckSignal(_ context.Context, _ string, _ *dto.SignalCheckRequest) *dto.SignalCheckResponse {
	return m.signal
}

// ── Mock AttendanceService ──

type mockAttendanceService struct {
	lastQuery *dto.DailyAttendanceQuery
	lastMine  string
	rows      []dto.DailyAttendanceResponse
	err       error
}

func (m *mockAttendanceService) ListDaily(_ context.Context, req *dto.DailyAttendanceQuery) ([]dto.DailyAttendanceResponse, error) {
	m.lastQuery = req
	return m.rows, m.err
}
func (m *mockAttendanceService) ListMine(_ context.Context, studentID string, _ *dto.MyAttendanceQuery) ([]dto.DailyAttendanceResponse, error) {
	m.lastMine = studentID
	return m.rows, m.err
}
func (m *mockAttendanceService) Query(_ context.Context, _ *service.AttendanceQuery) ([]service.DailyAttendance, error) {
	return nil, m.err
}

// ── Mock ExportService ──

type mockExportService struct {
	buf      *bytes.Buffer
	filename string
	err      error
}

func (m *mockExportService) ExportAttendance(_ context.Context, _ *dto.DailyAttendanceQuery) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}

// ── Mock SystemSettingService ──

type mockSystemSettingService struct {
	result *dto.ScheduleResponse
	err    error
}

func (m *mockSystemSettingService) Snapshot(_ context.Context) (service.ScheduleSnapshot, error) {
	return service.ScheduleSnapshot{}, m.err
}
func (m *mockSystemSettingService) GetSchedule(_ context.Context) (*dto.ScheduleResponse, error) {
	return m.result, m.err
}
func (m *mockSystemSettingService) UpdateSchedule(_ context.Context, _ *dto.UpdateScheduleRequest, _ string) (*dto.ScheduleResponse, error) {
	return m.result, m.err
}

// ── Mock CompanyService ──

type mockCompanyService struct {
	result *dto.GeofenceResponse
	err    error
}

func (m *mockCompanyService) GetGeofence(_ context.Context, _ string) (*dto.GeofenceResponse, error) {
	return m.result, m.err
}
func (m *mockCompanyService) UpdateGeofence(_ context.Context, _ string, _ *dto.UpdateGeofenceRequest, _ string) (*dto.GeofenceResponse, error) {
	return m.result, m.err
}

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

// withAuth 模拟 JWTAuth 注入的上下文
func withAuth(userID, role, companyID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Set("role", role)
		c.Set("company_id", companyID)
	}
}

func asStudent() gin.HandlerFunc    { return withAuth("stu-001", jwt.RoleStudent, "com-001") }
func asAdmin() gin.HandlerFunc      { return withAuth("admin-001", jwt.RoleAdmin, "") }
func asSupervisor() gin.HandlerFunc { return withAuth("sup-001", jwt.RoleSupervisor, "com-001") }

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func parseResponse(w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

func serve(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		reader = jsonBody(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func validClockEvent() gin.H {
	return gin.H{
		"student_id": "stu-001",
		"date":       "2024-03-04",
		"session":    "morning",
		"action":     "check_in",
		"time":       "08:00",
		"location":   gin.H{"lat": -6.2, "lng": 106.8, "accuracy": 12.5},
	}
}

// ═══════════════════════════════════════════════════════════
// TimesheetHandler Tests
// ═══════════════════════════════════════════════════════════

func TestTimesheetHandler_ClockEvent_CheckIn(t *testing.T) {
	mock := &mockTimesheetService{clockResult: &dto.SessionRecordResponse{ID: "rec-001", State: "checked_in"}}
	h := NewTimesheetHandler(mock)

	r := gin.New()
	r.POST("/attendance/clock-event", asStudent(), h.ClockEvent)
	w := serve(r, http.MethodPost, "/attendance/clock-event", validClockEvent())

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if mock.lastEvent == nil || mock.lastEvent.Location == nil || mock.lastEvent.Location.Lat != -6.2 {
		t.Errorf("定位未透传到服务层: %+v", mock.lastEvent)
	}
}

func TestTimesheetHandler_ClockEvent_ValidationFailed(t *testing.T) {
	h := NewTimesheetHandler(&mockTimesheetService{})
	r := gin.New()
	r.POST("/attendance/clock-event", asStudent(), h.ClockEvent)

	cases := map[string]func(gin.H){
		"bad date":    func(b gin.H) { b["date"] = "04/03/2024" },
		"bad time":    func(b gin.H) { b["time"] = "8am" },
		"bad session": func(b gin.H) { b["session"] = "evening" },
		"bad action":  func(b gin.H) { b["action"] = "punch" },
	}
	for name, mutate := range cases {
		body := validClockEvent()
		mutate(body)
		w := serve(r, http.MethodPost, "/attendance/clock-event", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, w.Code)
		}
	}
}

func TestTimesheetHandler_ClockEvent_OtherStudentForbidden(t *testing.T) {
	mock := &mockTimesheetService{}
	h := NewTimesheetHandler(mock)

	r := gin.New()
	r.POST("/attendance/clock-event", asStudent(), h.ClockEvent)
	body := validClockEvent()
	body["student_id"] = "stu-999"
	w := serve(r, http.MethodPost, "/attendance/clock-event", body)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
	if mock.lastEvent != nil {
		t.Error("越权请求不应到达服务层")
	}
}

func TestTimesheetHandler_ClockEvent_AdminOnBehalf(t *testing.T) {
	mock := &mockTimesheetService{clockResult: &dto.SessionRecordResponse{ID: "rec-001"}}
	h := NewTimesheetHandler(mock)

	r := gin.New()
	r.POST("/attendance/clock-event", asAdmin(), h.ClockEvent)
	body := validClockEvent()
	body["student_id"] = "stu-999"
	w := serve(r, http.MethodPost, "/attendance/clock-event", body)

	if w.Code != http.StatusCreated {
		t.Errorf("管理员可代为打卡, expected 201, got %d", w.Code)
	}
	if mock.lastEvent == nil || mock.lastEvent.CompanyScope != "" {
		t.Errorf("管理员不应限定单位: %+v", mock.lastEvent)
	}
}

func TestTimesheetHandler_ClockEvent_SupervisorScoped(t *testing.T) {
	mock := &mockTimesheetService{clockResult: &dto.SessionRecordResponse{ID: "rec-001"}}
	h := NewTimesheetHandler(mock)

	r := gin.New()
	r.POST("/supervisor/clock-event", asSupervisor(), h.ClockEvent)
	r.POST("/unbound/clock-event", withAuth("sup-002", jwt.RoleSupervisor, ""), h.ClockEvent)

	body := validClockEvent()
	body["student_id"] = "stu-002"
	w := serve(r, http.MethodPost, "/supervisor/clock-event", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if mock.lastEvent.CompanyScope != "com-001" {
		t.Errorf("指导老师打卡应限定为所属单位, got %q", mock.lastEvent.CompanyScope)
	}

	mock.lastEvent = nil
	w = serve(r, http.MethodPost, "/unbound/clock-event", body)
	if w.Code != http.StatusForbidden {
		t.Errorf("未绑定单位的指导老师 expected 403, got %d", w.Code)
	}
	if mock.lastEvent != nil {
		t.Error("未绑定单位的请求不应到达服务层")
	}
}

func TestTimesheetHandler_ClockEvent_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   int
		reason string
	}{
		{"missing geofence", service.ErrMissingGeofence, http.StatusUnprocessableEntity, 17001, "missing_geofence"},
		{"outside geofence", service.ErrOutsideGeofence, http.StatusBadRequest, 17004, "outside_geofence"},
		{"spoofing", service.ErrSpoofingSuspected, http.StatusBadRequest, 17005, "spoofing_suspected"},
		{"outside window", service.ErrOutsideWindow, http.StatusBadRequest, 17007, "outside_window"},
		{"duplicate", service.ErrAlreadyCheckedIn, http.StatusConflict, 17011, "already_checked_in"},
		{"no session", service.ErrNoActiveSession, http.StatusNotFound, 17013, "no_active_session"},
	}

	for _, tc := range cases {
		h := NewTimesheetHandler(&mockTimesheetService{clockErr: tc.err})
		r := gin.New()
		r.POST("/attendance/clock-event", asStudent(), h.ClockEvent)
		w := serve(r, http.MethodPost, "/attendance/clock-event", validClockEvent())

		if w.Code != tc.status {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.status, w.Code)
			continue
		}
		resp := parseResponse(w)
		if resp.Code != tc.code || resp.Reason != tc.reason {
			t.Errorf("%s: expected code=%d reason=%s, got code=%d reason=%s", tc.name, tc.code, tc.reason, resp.Code, resp.Reason)
		}
		if resp.Message == "" {
			t.Errorf("%s: 应返回具体拒绝原因", tc.name)
		}
	}
}

func TestTimesheetHandler_ClockEvent_InternalError(t *testing.T) {
	h := NewTimesheetHandler(&mockTimesheetService{clockErr: errors.New("db down")})
	r := gin.New()
	r.POST("/attendance/clock-event", asStudent(), h.ClockEvent)
	w := serve(r, http.MethodPost, "/attendance/clock-event", validClockEvent())

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "db down") {
		t.Error("基础设施错误不应泄露给客户端")
	}
}

func TestTimesheetHandler_CheckOut(t *testing.T) {
	mock := &mockTimesheetService{clockResult: &dto.SessionRecordResponse{ID: "rec-001", State: "checked_out"}}
	h := NewTimesheetHandler(mock)

	r := gin.New()
	r.POST("/attendance/check-out", asStudent(), h.CheckOut)
	w := serve(r, http.MethodPost, "/attendance/check-out", gin.H{
		"student_id": "stu-001",
		"date":       "2024-03-04",
		"session":    "morning",
		"time":       "12:00:00",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if mock.lastEvent.Action != service.ActionCheckOut || mock.lastEvent.Location != nil {
		t.Errorf("签退应转为 check_out 事件且不带定位: %+v", mock.lastEvent)
	}
}

func TestTimesheetHandler_CheckIn_MissingLocation(t *testing.T) {
	mock := &mockTimesheetService{clockResult: &dto.SessionRecordResponse{ID: "rec-001"}}
	h := NewTimesheetHandler(mock)

	r := gin.New()
	r.POST("/attendance/check-in", asStudent(), h.CheckIn)
	w := serve(r, http.MethodPost, "/attendance/check-in", gin.H{
		"student_id": "stu-001",
		"date":       "2024-03-04",
		"session":    "morning",
		"time":       "08:00:00",
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("签到缺少定位 expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if mock.lastEvent != nil {
		t.Errorf("缺少定位的签到不应到达服务层: %+v", mock.lastEvent)
	}
}

func TestTimesheetHandler_CheckIn_PassesLocation(t *testing.T) {
	mock := &mockTimesheetService{clockResult: &dto.SessionRecordResponse{ID: "rec-001"}}
	h := NewTimesheetHandler(mock)

	r := gin.New()
	r.POST("/attendance/check-in", asStudent(), h.CheckIn)
	w := serve(r, http.MethodPost, "/attendance/check-in", gin.H{
		"student_id": "stu-001",
		"date":       "2024-03-04",
		"session":    "morning",
		"time":       "08:00:00",
		"location":   gin.H{"lat": -6.2, "lng": 106.8},
	})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if mock.lastEvent.Action != service.ActionCheckIn || mock.lastEvent.Location == nil || mock.lastEvent.Location.Lng != 106.8 {
		t.Errorf("签到应转为带定位的 check_in 事件: %+v", mock.lastEvent)
	}
}

func TestTimesheetHandler_TodaySessions(t *testing.T) {
	mock := &mockTimesheetService{todayResult: &dto.TodaySessionsResponse{Date: "2024-03-04", Working: true}}
	h := NewTimesheetHandler(mock)

	r := gin.New()
	r.GET("/student/today", asStudent(), h.TodaySessions)
	r.GET("/admin/today", asAdmin(), h.TodaySessions)
	r.GET("/supervisor/today", asSupervisor(), h.TodaySessions)

	if w := serve(r, http.MethodGet, "/student/today?student_id=stu-999", nil); w.Code != http.StatusOK || mock.todayID != "stu-001" {
		t.Errorf("学生只能查看本人, got %d id=%s", w.Code, mock.todayID)
	}
	if w := serve(r, http.MethodGet, "/admin/today", nil); w.Code != http.StatusBadRequest {
		t.Errorf("管理员未指定 student_id expected 400, got %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/admin/today?student_id=stu-002", nil); w.Code != http.StatusOK || mock.todayID != "stu-002" {
		t.Errorf("管理员指定学生, got %d id=%s", w.Code, mock.todayID)
	}
	if mock.todayScope != "" {
		t.Errorf("管理员不应限定单位, got %q", mock.todayScope)
	}
	if w := serve(r, http.MethodGet, "/supervisor/today?student_id=stu-002", nil); w.Code != http.StatusOK || mock.todayScope != "com-001" {
		t.Errorf("指导老师应限定为所属单位, got %d scope=%q", w.Code, mock.todayScope)
	}
}

func TestTimesheetHandler_SignalCheck(t *testing.T) {
	mock := &mockTimesheetService{signal: &dto.SignalCheckResponse{Valid: false, Indicators: []string{"accuracy_zero"}}}
	h := NewTimesheetHandler(mock)

	r := gin.New()
	r.POST("/attendance/signal-check", asStudent(), h.SignalCheck)
	w := serve(r, http.MethodPost, "/attendance/signal-check", gin.H{"lat": -6.2, "lng": 106.8, "accuracy": 0})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "accuracy_zero") {
		t.Errorf("应返回可疑指标: %s", w.Body.String())
	}
}

// ═══════════════════════════════════════════════════════════
// AttendanceHandler Tests
// ═══════════════════════════════════════════════════════════

func TestAttendanceHandler_Daily_SupervisorScoped(t *testing.T) {
	mock := &mockAttendanceService{rows: []dto.DailyAttendanceResponse{{StudentID: "stu-001", Date: "2024-03-04"}}}
	h := NewAttendanceHandler(mock)

	r := gin.New()
	r.GET("/attendance/daily", asSupervisor(), h.Daily)

	w := serve(r, http.MethodGet, "/attendance/daily?start_date=2024-03-01&end_date=2024-03-31", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.lastQuery.CompanyID != "com-001" {
		t.Errorf("指导老师应限定为所属单位, got %q", mock.lastQuery.CompanyID)
	}

	w = serve(r, http.MethodGet, "/attendance/daily?company_id=com-999", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("跨单位查询 expected 403, got %d", w.Code)
	}
}

func TestAttendanceHandler_Daily_BadDate(t *testing.T) {
	h := NewAttendanceHandler(&mockAttendanceService{})
	r := gin.New()
	r.GET("/attendance/daily", asAdmin(), h.Daily)

	w := serve(r, http.MethodGet, "/attendance/daily?company_id=com-001&start_date=2024-13-01", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAttendanceHandler_Daily_MissingCompany(t *testing.T) {
	h := NewAttendanceHandler(&mockAttendanceService{err: service.ErrInvalidInput})
	r := gin.New()
	r.GET("/attendance/daily", asAdmin(), h.Daily)

	w := serve(r, http.MethodGet, "/attendance/daily", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 17010 {
		t.Errorf("expected code 17010, got %d", resp.Code)
	}
}

func TestAttendanceHandler_Me(t *testing.T) {
	mock := &mockAttendanceService{}
	h := NewAttendanceHandler(mock)

	r := gin.New()
	r.GET("/attendance/me", asStudent(), h.Me)
	w := serve(r, http.MethodGet, "/attendance/me", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.lastMine != "stu-001" {
		t.Errorf("应按 Token 用户查询, got %q", mock.lastMine)
	}
}

// ═══════════════════════════════════════════════════════════
// ExportHandler Tests
// ═══════════════════════════════════════════════════════════

func TestExportHandler_Success(t *testing.T) {
	mock := &mockExportService{
		buf:      bytes.NewBufferString("excel content"),
		filename: "考勤汇总_2024-03-01_2024-03-31.xlsx",
	}
	h := NewExportHandler(mock)

	r := gin.New()
	r.GET("/export/attendance", asAdmin(), h.ExportAttendance)
	w := serve(r, http.MethodGet, "/export/attendance?company_id=com-001", nil)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("unexpected content type: %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") {
		t.Errorf("expected Content-Disposition attachment, got %q", cd)
	}
}

func TestExportHandler_GenerateFail(t *testing.T) {
	h := NewExportHandler(&mockExportService{err: service.ErrExportGenerateFail})
	r := gin.New()
	r.GET("/export/attendance", asAdmin(), h.ExportAttendance)

	if w := serve(r, http.MethodGet, "/export/attendance?company_id=com-001", nil); w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// SystemSettingHandler / CompanyHandler Tests
// ═══════════════════════════════════════════════════════════

func TestSystemSettingHandler_UpdateSchedule(t *testing.T) {
	mock := &mockSystemSettingService{result: &dto.ScheduleResponse{UsesFallback: true}}
	h := NewSystemSettingHandler(mock)

	r := gin.New()
	r.PUT("/system-settings/schedule", asAdmin(), h.UpdateSchedule)

	if w := serve(r, http.MethodPut, "/system-settings/schedule", gin.H{"morning_checkin_start": "07:30"}); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w := serve(r, http.MethodPut, "/system-settings/schedule", gin.H{"morning_checkin_start": "7.30"}); w.Code != http.StatusBadRequest {
		t.Errorf("非法时刻 expected 400, got %d", w.Code)
	}
}

func TestCompanyHandler_GetGeofence_NotFound(t *testing.T) {
	h := NewCompanyHandler(&mockCompanyService{err: service.ErrCompanyNotFound})
	r := gin.New()
	r.GET("/companies/:id/geofence", asAdmin(), h.GetGeofence)

	w := serve(r, http.MethodGet, "/companies/ghost/geofence", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 17003 {
		t.Errorf("expected code 17003, got %d", resp.Code)
	}
}

func TestCompanyHandler_UpdateGeofence_Validation(t *testing.T) {
	h := NewCompanyHandler(&mockCompanyService{result: &dto.GeofenceResponse{CompanyID: "com-001"}})
	r := gin.New()
	r.PUT("/companies/:id/geofence", asAdmin(), h.UpdateGeofence)

	w := serve(r, http.MethodPut, "/companies/com-001/geofence", gin.H{
		"latitude": -6.2, "longitude": 106.8, "radius_meters": 100, "working_days": []int{1, 8},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("工作日越界 expected 400, got %d", w.Code)
	}

	w = serve(r, http.MethodPut, "/companies/com-001/geofence", gin.H{
		"latitude": -6.2, "longitude": 106.8, "radius_meters": 100, "working_days": []int{1, 2, 3},
	})
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}
