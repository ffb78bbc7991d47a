package location

import (
	"fmt"

	"github.com/kelvins/geocoder"

	"github.com/weatherdeck/weather-deck/internal/weather"
)

// GeocodeCity resolves coordinates for a city configured by name only,
// using the Google geocoding API. Called once at startup per bare-name
// entry; refresh cycles never geocode.
func GeocodeCity(apiKey, name string) (weather.Coordinates, error) {
	if apiKey == "" {
		return weather.Coordinates{}, fmt.Errorf("geocoder api key is not configured; give %q explicit coordinates", name)
	}

	geocoder.ApiKey = apiKey

	loc, err := geocoder.Geocoding(geocoder.Address{City: name})
	if err != nil {
		return weather.Coordinates{}, fmt.Errorf("geocode %s: %w", name, err)
	}

	coords := weather.Coordinates{Lat: loc.Latitude, Lon: loc.Longitude}
	if err := coords.Validate(); err != nil {
		return weather.Coordinates{}, fmt.Errorf("geocode %s: %w", name, err)
	}

	return coords, nil
}
