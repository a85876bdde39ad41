package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"ims-cics/backend/internal/model"
	"ims-cics/backend/internal/repository"
	pkgerrors "ims-cics/backend/pkg/errors"
	"ims-cics/backend/pkg/redis"
)

// ── Mock CompanyRepository ──

type mockCompanyRepo struct {
	companies map[string]*model.Company
}

func newMockCompanyRepo() *mockCompanyRepo {
	return &mockCompanyRepo{companies: make(map[string]*model.Company)}
}

func (m *mockCompanyRepo) GetByID(_ context.Context, id string) (*model.Company, error) {
	if c, ok := m.companies[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCompanyRepo) UpdateGeofence(_ context.Context, company *model.Company) error {
	cp := *company
	m.companies[company.CompanyID] = &cp
	return nil
}

// ── Mock StudentRepository ──

type mockStudentRepo struct {
	students  map[string]*model.Student
	companies *mockCompanyRepo
}

func newMockStudentRepo(companies *mockCompanyRepo) *mockStudentRepo {
	return &mockStudentRepo{students: make(map[string]*model.Student), companies: companies}
}

// GetByID 模拟 Preload("Company")
func (m *mockStudentRepo) GetByID(_ context.Context, id string) (*model.Student, error) {
	s, ok := m.students[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	cp.Company = nil
	if cp.CompanyID != nil {
		if c, ok := m.companies.companies[*cp.CompanyID]; ok {
			company := *c
			cp.Company = &company
		}
	}
	return &cp, nil
}

// ── Mock SystemSettingRepository ──

type mockSystemSettingRepo struct {
	setting *model.SystemSetting
	getErr  error
}

func newMockSystemSettingRepo() *mockSystemSettingRepo {
	return &mockSystemSettingRepo{}
}

func (m *mockSystemSettingRepo) Get(_ context.Context) (*model.SystemSetting, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.setting == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *m.setting
	return &cp, nil
}

func (m *mockSystemSettingRepo) Upsert(_ context.Context, setting *model.SystemSetting) error {
	setting.Singleton = true
	cp := *setting
	m.setting = &cp
	return nil
}

// ── Mock SessionRecordRepository ──

type mockSessionRecordRepo struct {
	mu        sync.Mutex
	records   map[string]*model.SessionRecord
	students  *mockStudentRepo
	seq       int
	createErr error // 非 nil 时 Create 直接返回该错误（模拟并发写入冲突）
}

func newMockSessionRecordRepo(students *mockStudentRepo) *mockSessionRecordRepo {
	return &mockSessionRecordRepo{records: make(map[string]*model.SessionRecord), students: students}
}

func recordKey(studentID string, date time.Time, session model.SessionType) string {
	return studentID + "|" + date.Format("2006-01-02") + "|" + string(session)
}

func (m *mockSessionRecordRepo) Create(_ context.Context, record *model.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return m.createErr
	}
	key := recordKey(record.StudentID, record.AttendanceDate, record.Session)
	if _, exists := m.records[key]; exists {
		return gorm.ErrDuplicatedKey
	}
	m.seq++
	if record.SessionRecordID == "" {
		record.SessionRecordID = fmt.Sprintf("rec-%03d", m.seq)
	}
	cp := *record
	m.records[key] = &cp
	return nil
}

func (m *mockSessionRecordRepo) GetByKey(_ context.Context, studentID string, date time.Time, session model.SessionType) (*model.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.records[recordKey(studentID, date, session)]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSessionRecordRepo) ListByStudentAndDate(_ context.Context, studentID string, date time.Time) ([]model.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []model.SessionRecord
	for _, session := range []model.SessionType{model.SessionMorning, model.SessionAfternoon} {
		if r, ok := m.records[recordKey(studentID, date, session)]; ok {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (m *mockSessionRecordRepo) CompleteCheckOut(_ context.Context, record *model.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.records {
		if r.SessionRecordID != record.SessionRecordID {
			continue
		}
		if r.CheckOutTime != nil {
			return pkgerrors.ErrOptimisticLock
		}
		r.CheckOutTime = record.CheckOutTime
		r.TotalHours = record.TotalHours
		r.IsVerified = record.IsVerified
		r.Remarks = record.Remarks
		return nil
	}
	return pkgerrors.ErrOptimisticLock
}

// ListRange 模拟 JOIN students 后按单位过滤，并预加载 Student
func (m *mockSessionRecordRepo) ListRange(ctx context.Context, filter repository.SessionRecordFilter) ([]model.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []model.SessionRecord
	for _, r := range m.records {
		student, err := m.students.GetByID(ctx, r.StudentID)
		if err != nil || student.CompanyID == nil || *student.CompanyID != filter.CompanyID {
			continue
		}
		if filter.StudentID != "" && r.StudentID != filter.StudentID {
			continue
		}
		if filter.StartDate != nil && r.AttendanceDate.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && r.AttendanceDate.After(*filter.EndDate) {
			continue
		}
		cp := *r
		cp.Student = student
		result = append(result, cp)
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.AttendanceDate.Equal(b.AttendanceDate) {
			return a.AttendanceDate.Before(b.AttendanceDate)
		}
		if a.StudentID != b.StudentID {
			return a.StudentID < b.StudentID
		}
		return a.Session > b.Session
	})
	return result, nil
}

// ── Mock LocationSampleRepository ──

type mockLocationSampleRepo struct {
	mu        sync.Mutex
	samples   []model.LocationSample
	createErr error
	latestErr error
}

func newMockLocationSampleRepo() *mockLocationSampleRepo {
	return &mockLocationSampleRepo{}
}

func (m *mockLocationSampleRepo) Create(_ context.Context, sample *model.LocationSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return m.createErr
	}
	sample.LocationSampleID = int64(len(m.samples) + 1)
	m.samples = append(m.samples, *sample)
	return nil
}

func (m *mockLocationSampleRepo) LatestByStudent(_ context.Context, studentID string) (*model.LocationSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.latestErr != nil {
		return nil, m.latestErr
	}
	var latest *model.LocationSample
	for i := range m.samples {
		s := &m.samples[i]
		if s.StudentID != studentID {
			continue
		}
		if latest == nil || !s.RecordedAt.Before(latest.RecordedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *mockLocationSampleRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.samples)
}

// ── Mock LastLocationCache ──

type mockLastLocationCache struct {
	mu     sync.Mutex
	data   map[string]redis.LastLocation
	getErr error
	setErr error
}

func newMockLastLocationCache() *mockLastLocationCache {
	return &mockLastLocationCache{data: make(map[string]redis.LastLocation)}
}

func (m *mockLastLocationCache) GetLastLocation(_ context.Context, studentID string) (*redis.LastLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	if loc, ok := m.data[studentID]; ok {
		return &loc, nil
	}
	return nil, nil
}

func (m *mockLastLocationCache) SetLastLocation(_ context.Context, studentID string, loc redis.LastLocation, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.setErr != nil {
		return m.setErr
	}
	m.data[studentID] = loc
	return nil
}

func (m *mockLastLocationCache) get(studentID string) (redis.LastLocation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loc, ok := m.data[studentID]
	return loc, ok
}

// ── 测试夹具 ──

type testRepos struct {
	repo      *repository.Repository
	companies *mockCompanyRepo
	students  *mockStudentRepo
	settings  *mockSystemSettingRepo
	records   *mockSessionRecordRepo
	samples   *mockLocationSampleRepo
}

func newTestRepos() *testRepos {
	companies := newMockCompanyRepo()
	students := newMockStudentRepo(companies)
	settings := newMockSystemSettingRepo()
	records := newMockSessionRecordRepo(students)
	samples := newMockLocationSampleRepo()
	return &testRepos{
		repo: &repository.Repository{
			Company:        companies,
			Student:        students,
			SystemSetting:  settings,
			SessionRecord:  records,
			LocationSample: samples,
		},
		companies: companies,
		students:  students,
		settings:  settings,
		records:   records,
		samples:   samples,
	}
}
