package core

import (
	"context"
	"math"
	"sort"

	"incidentcore/pkg/domain"
)

// DefaultNearbyRadius is used by Nearby when no positive radius is given.
const DefaultNearbyRadius = 5000.0

const earthRadiusMeters = 6371000.0

// NearbyIncident is an incident with its great-circle distance from the query point.
type NearbyIncident struct {
	domain.Incident
	DistanceMeters float64 `json:"distanceMeters"`
}

// Nearby lists incidents matching filter within radius meters of (lat, lng),
// closest first. It scans the joined list; there is no spatial index.
func (r *Repository) Nearby(ctx context.Context, lat, lng, radius float64, filter domain.IncidentFilter) ([]NearbyIncident, error) {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return nil, domain.InvalidArgument("nearby", "latitude and longitude must be finite numbers")
	}
	if filter.Limit < 0 {
		return nil, domain.InvalidArgument("nearby", "limit must not be negative")
	}
	if !(radius > 0) || math.IsInf(radius, 0) {
		radius = DefaultNearbyRadius
	}
	limit := filter.Limit
	filter.Limit = 0
	incidents, err := r.ListIncidents(ctx, filter)
	if err != nil {
		return nil, err
	}
	var out []NearbyIncident
	for _, inc := range incidents {
		d := haversineMeters(lat, lng, inc.Latitude, inc.Longitude)
		if d <= radius {
			out = append(out, NearbyIncident{Incident: inc, DistanceMeters: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceMeters < out[j].DistanceMeters })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	const rad = math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(a)))
}
