package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"
)

// GeocodeEndpoint is a package variable so tests can point it at a stub server.
var GeocodeEndpoint = "https://maps.googleapis.com/maps/api/geocode/json"

var geocodeClient = &http.Client{Timeout: 10 * time.Second}

// ErrNoGeocodeResults is returned when the geocoder resolves the request but
// finds nothing for the address. Callers treat it as invalid input rather
// than a server fault.
var ErrNoGeocodeResults = errors.New("geocoding returned no results")

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode resolves a free-text address to coordinates via the Google Maps
// Geocoding API. One outbound call per invocation, no retries.
func Geocode(address string) (*Coordinates, error) {
	query := url.Values{}
	query.Add("address", address)
	query.Add("key", os.Getenv("GOOGLE_MAPS_API_KEY"))

	res, err := geocodeClient.Get(GeocodeEndpoint + "?" + query.Encode())
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding request failed with status %d", res.StatusCode)
	}

	var payload geocodeResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, err
	}

	if len(payload.Results) == 0 {
		return nil, ErrNoGeocodeResults
	}

	location := payload.Results[0].Geometry.Location
	return &Coordinates{Latitude: location.Lat, Longitude: location.Lng}, nil
}
