package geo

import (
	"math"

	"github.com/example/service-matching/internal/models"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// Validate rejects coordinates outside the valid latitude/longitude ranges.
func Validate(c models.Coord) error {
	if c.Lat < -90 || c.Lat > 90 {
		return models.Invalid("lat", "latitude must be within [-90, 90]")
	}
	if c.Lon < -180 || c.Lon > 180 {
		return models.Invalid("lon", "longitude must be within [-180, 180]")
	}
	return nil
}

// DistanceKm returns the haversine great-circle distance between a and b in
// kilometers. Coordinates must have been validated by the caller.
func DistanceKm(a, b models.Coord) float64 {
	return HaversineKm(a.Lat, a.Lon, b.Lat, b.Lon)
}

// HaversineKm computes the haversine distance in kilometers.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}
