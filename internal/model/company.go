package model

import "ims-cics/backend/pkg/geo"

// Company 实习单位表 — 对应 companies（考勤引擎只读地理围栏与工作日）
type Company struct {
	CompanyID    string   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"company_id"`
	Name         string   `gorm:"type:varchar(150);not null"                     json:"name"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	RadiusMeters *int     `json:"radius_meters,omitempty"`
	WorkingDays  IntArray `gorm:"type:int[];not null;default:'{}'"              json:"working_days"` // 1=周一 … 7=周日
	BaseModel
}

// TableName 指定表名
func (Company) TableName() string { return "companies" }

// Geofence 返回围栏中心与半径；未完整配置时 ok=false
func (c *Company) Geofence() (center geo.Point, radiusMeters float64, ok bool) {
	if c.Latitude == nil || c.Longitude == nil || c.RadiusMeters == nil || *c.RadiusMeters <= 0 {
		return geo.Point{}, 0, false
	}
	return geo.Point{Lat: *c.Latitude, Lng: *c.Longitude}, float64(*c.RadiusMeters), true
}

// Student 实习学生 — 对应 students（身份由外部维护，这里只用于定位所属单位）
type Student struct {
	StudentID string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"student_id"`
	CompanyID *string `gorm:"type:uuid"                                      json:"company_id,omitempty"`
	Name      string  `gorm:"type:varchar(100);not null"                     json:"name"`
	NIM       string  `gorm:"column:nim;type:varchar(30)"                    json:"nim,omitempty"`
	BaseModel

	// 关联
	Company *Company `gorm:"foreignKey:CompanyID;references:CompanyID" json:"company,omitempty"`
}

// TableName 指定表名
func (Student) TableName() string { return "students" }
