package geo

import (
	"math"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// Constants
const (
	EarthRadiusNM = 3440.065 // Mean Earth radius in nautical miles
	FeetToMeters  = 0.3048
	MetersPerSM   = 1609.344 // Metres per statute mile
)

// HaversineNM returns the great-circle distance in nautical miles between two
// points given in decimal degrees.
func HaversineNM(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lon2 - lon1)

	sinDPhi := math.Sin(dPhi / 2)
	sinDLambda := math.Sin(dLambda / 2)
	h := sinDPhi*sinDPhi + math.Cos(phi1)*math.Cos(phi2)*sinDLambda*sinDLambda

	return 2 * EarthRadiusNM * math.Asin(math.Sqrt(h))
}

// Midpoint returns the arithmetic mean of two positions. This is not the
// great-circle midpoint and misbehaves across the antimeridian.
func Midpoint(lat1, lon1, lat2, lon2 float64) (float64, float64) {
	return (lat1 + lat2) / 2, (lon1 + lon2) / 2
}

// WindComponents splits a wind into components relative to a runway heading.
// Both directions are in degrees true. Headwind is negative for a tailwind;
// crosswind is positive when the wind comes from the right of the runway.
func WindComponents(windDirDeg, windSpeedKt, runwayHeadingDeg float64) (headwind, crosswind float64) {
	angle := toRadians(NormalizeHeading(windDirDeg - runwayHeadingDeg))
	headwind = windSpeedKt * math.Cos(angle)
	crosswind = windSpeedKt * math.Sin(angle)
	return headwind, crosswind
}

// NormalizeHeading wraps a heading into [0, 360)
func NormalizeHeading(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// MagneticVariation calculates the magnetic declination for a given position and time
// Returns declination in degrees (+East, -West)
func MagneticVariation(lat, lon, altFt float64, date time.Time) float64 {
	altM := altFt * FeetToMeters

	loc := egm96.NewLocationGeodetic(lat, lon, altM)

	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		// Outside the model's validity window; treat as no variation
		return 0.0
	}

	return mag.D()
}

// MagneticToTrue converts a magnetic heading to true using the declination at the position
func MagneticToTrue(magneticDeg, lat, lon, altFt float64, date time.Time) float64 {
	return NormalizeHeading(magneticDeg + MagneticVariation(lat, lon, altFt, date))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
