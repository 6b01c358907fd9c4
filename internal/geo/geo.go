package geo

import "math"

const earthRadiusMeters = 6371000.0

// Point is a WGS 84 coordinate in decimal degrees. A NaN component marks a
// coordinate the device could not report.
type Point struct {
	Lat float64
	Lon float64
}

// NewPoint builds a Point from optional components; a nil component becomes
// an absent (NaN) coordinate.
func NewPoint(lat, lon *float64) Point {
	p := Point{Lat: math.NaN(), Lon: math.NaN()}
	if lat != nil {
		p.Lat = *lat
	}
	if lon != nil {
		p.Lon = *lon
	}
	return p
}

// Valid reports whether both components are present, finite and in range.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lon) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Reading is a point plus the reporting device's stated margin of error.
// Absent or negative accuracy is treated as 0 (fully trusted).
type Reading struct {
	Point
	Accuracy float64
}

// Result is the immutable outcome of a verification. When the inputs were
// unusable, DistanceMeters is NaN, ErrorMarginMeters is +Inf and Reliable is
// false; an unreliable result is never Within.
type Result struct {
	DistanceMeters        float64
	ErrorMarginMeters     float64
	Reliable              bool
	EffectiveRadiusMeters float64
	Within                bool
}

// Distance computes the great-circle distance between two points using the
// haversine formula. Invalid or absent coordinates degrade to an unreliable
// result rather than an error; bad GPS input is an expected occurrence.
func Distance(a, b Point) Result {
	if !a.Valid() || !b.Valid() {
		return Result{DistanceMeters: math.NaN(), ErrorMarginMeters: math.Inf(1)}
	}
	return Result{DistanceMeters: haversine(a, b), Reliable: true}
}

// WithinRadius decides whether reading lies within allowedRadius meters of
// anchor. The error margin is the worse of the two reported accuracies, and
// it widens the usable radius: uncertainty must not penalize the reader.
func WithinRadius(reading, anchor Reading, allowedRadius float64) Result {
	res := Distance(reading.Point, anchor.Point)
	if res.Reliable {
		res.ErrorMarginMeters = math.Max(clampAccuracy(reading.Accuracy), clampAccuracy(anchor.Accuracy))
	}
	res.EffectiveRadiusMeters = allowedRadius + res.ErrorMarginMeters
	res.Reliable = res.Reliable && !math.IsInf(res.ErrorMarginMeters, 1)
	res.Within = res.Reliable && res.DistanceMeters <= res.EffectiveRadiusMeters
	return res
}

func haversine(a, b Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

func clampAccuracy(acc float64) float64 {
	if math.IsNaN(acc) || acc < 0 {
		return 0
	}
	return acc
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
