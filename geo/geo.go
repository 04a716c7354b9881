// Package geo holds the great-circle helpers and the collision-risk
// estimator used to rate AIS targets against own ship.
package geo

import (
	"math"

	"github.com/golang/geo/s2"
)

const (
	EARTH_RADIUS_M  = 6371000.0
	METERS_PER_NM   = 1852.0
	CPA_DISCOUNT    = 0.8
	CRITICAL_CPA_NM = 0.5
	CRITICAL_TCPA   = 10
	WARNING_CPA_NM  = 2.0
	WARNING_TCPA    = 30
)

// TCPANever is returned when the relative speed is zero and the target
// never closes.
const TCPANever = math.MaxInt32

type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DistanceMeters is the haversine distance between two points.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	a := s2.LatLngFromDegrees(lat1, lon1)
	b := s2.LatLngFromDegrees(lat2, lon2)
	return a.Distance(b).Radians() * EARTH_RADIUS_M
}

func DistanceNm(lat1, lon1, lat2, lon2 float64) float64 {
	return DistanceMeters(lat1, lon1, lat2, lon2) / METERS_PER_NM
}

// BearingDeg is the initial great-circle bearing from the first point to
// the second, in [0,360).
func BearingDeg(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(dLon) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLon)

	deg := math.Mod(math.Atan2(y, x)*180/math.Pi+360, 360)
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// CPANm estimates the closest point of approach in nautical miles.
//
// This is an approximation, not a relative-motion solution: a stationary
// target keeps its current range, a moving one is assumed to close to 80%
// of it. Own speed and course are accepted for the day own-ship velocity is
// tracked; every caller passes zero today.
func CPANm(ownLat, ownLon, ownSpeed, ownCourse, targetLat, targetLon, targetSpeed, targetCourse float64) float64 {
	current := DistanceNm(ownLat, ownLon, targetLat, targetLon)
	if targetSpeed == 0 {
		return current
	}
	return math.Max(0, current*CPA_DISCOUNT)
}

// TCPAMinutes estimates minutes until closest approach using the speed
// difference along a straight line. TCPANever means no closure.
func TCPAMinutes(ownLat, ownLon, ownSpeed, ownCourse, targetLat, targetLon, targetSpeed, targetCourse float64) int {
	relative := math.Abs(targetSpeed - ownSpeed)
	if relative == 0 {
		return TCPANever
	}
	current := DistanceNm(ownLat, ownLon, targetLat, targetLon)
	minutes := math.Floor(current / relative * 60)
	if minutes < 0 {
		return 0
	}
	if minutes >= TCPANever {
		return TCPANever
	}
	return int(minutes)
}

// ClassifyRisk rates a target. A zero in any input means either no usable
// data or a coincident position and is rated Critical.
func ClassifyRisk(distanceNm, cpaNm float64, tcpaMinutes int) RiskLevel {
	switch {
	case distanceNm == 0 || cpaNm == 0 || tcpaMinutes == 0:
		return RiskCritical
	case cpaNm < CRITICAL_CPA_NM && tcpaMinutes < CRITICAL_TCPA:
		return RiskCritical
	case cpaNm < WARNING_CPA_NM && tcpaMinutes < WARNING_TCPA:
		return RiskWarning
	default:
		return RiskSafe
	}
}

type Metrics struct {
	DistanceNm  float64   `json:"distanceNm"`
	BearingDeg  float64   `json:"bearingDeg"`
	CPANm       float64   `json:"cpaNm"`
	TCPAMinutes int       `json:"tcpaMinutes"`
	Risk        RiskLevel `json:"riskLevel"`
}

// Assess rates a target at the given position and velocity from own ship,
// which is treated as stationary.
func Assess(own Point, target Point, speedKnots float64, courseDeg float64) Metrics {
	m := Metrics{
		DistanceNm:  DistanceNm(own.Lat, own.Lon, target.Lat, target.Lon),
		BearingDeg:  BearingDeg(own.Lat, own.Lon, target.Lat, target.Lon),
		CPANm:       CPANm(own.Lat, own.Lon, 0, 0, target.Lat, target.Lon, speedKnots, courseDeg),
		TCPAMinutes: TCPAMinutes(own.Lat, own.Lon, 0, 0, target.Lat, target.Lon, speedKnots, courseDeg),
	}
	m.Risk = ClassifyRisk(m.DistanceNm, m.CPANm, m.TCPAMinutes)
	return m
}

// Unavailable is the rating of a positioned target when own position is
// not known yet.
func Unavailable() Metrics {
	return Metrics{Risk: ClassifyRisk(0, 0, 0)}
}
