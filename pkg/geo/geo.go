// Package geo 提供球面距离与地理围栏判定，无外部依赖。
package geo

import "math"

// EarthRadiusMeters 平均地球半径（米）
const EarthRadiusMeters = 6371000.0

// Point 经纬度坐标（十进制度）
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// GeofenceResult 围栏判定结果
type GeofenceResult struct {
	Valid    bool    `json:"valid"`
	Distance float64 `json:"distance"` // 与中心点距离（米）
}

// DistanceMeters 以 haversine 公式计算两点大圆距离（米）
func DistanceMeters(a, b Point) float64 {
	phi1 := a.Lat * math.Pi / 180
	phi2 := b.Lat * math.Pi / 180
	dPhi := (b.Lat - a.Lat) * math.Pi / 180
	dLambda := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	// 浮点误差可能使 h 略超出 [0,1]
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// IsWithinGeofence 判断 point 是否在以 center 为圆心、radiusMeters 为半径的围栏内（含边界）。
// 调用方负责在公司配置半径上叠加 GPS 漂移容差。
func IsWithinGeofence(point, center Point, radiusMeters float64) GeofenceResult {
	d := DistanceMeters(point, center)
	return GeofenceResult{Valid: d <= radiusMeters, Distance: d}
}
