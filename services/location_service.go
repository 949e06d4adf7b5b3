package services

import (
	"math"

	"lan-linkup-server/models"
)

// Calculate distance between two points using Haversine formula
func CalculateDistance(lat1, lng1, lat2, lng2 float64) float64 {
	const R = 6371 // Earth's radius in kilometers

	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return R * c
}

// Check if a party is within radius (km) of a point
func IsPartyNearPoint(party *models.Party, lat, lng, radiusKm float64) bool {
	distance := CalculateDistance(party.Latitude, party.Longitude, lat, lng)
	return distance <= radiusKm
}

// FilterPartiesWithinRadius keeps parties whose geocoded coordinates fall
// within radiusKm of the given point. Parties that were never geocoded
// (0,0) are dropped.
func FilterPartiesWithinRadius(parties []models.Party, lat, lng, radiusKm float64) []models.Party {
	nearby := []models.Party{}
	for _, party := range parties {
		if party.Latitude == 0 && party.Longitude == 0 {
			continue
		}
		if IsPartyNearPoint(&party, lat, lng, radiusKm) {
			nearby = append(nearby, party)
		}
	}
	return nearby
}
