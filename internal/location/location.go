package location

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/weatherdeck/weather-deck/internal/weather"
)

const defaultLookupURL = "http://ip-api.com/json/"

// IPLocator resolves the host's coordinates by geolocating its public
// IP address. This is the service-world stand-in for a device's
// "last known location": cheap, approximate, and allowed to fail.
type IPLocator struct {
	client    *http.Client
	lookupURL string
}

// NewIPLocator creates an IPLocator sharing the given HTTP client.
func NewIPLocator(client *http.Client) *IPLocator {
	return &IPLocator{
		client:    client,
		lookupURL: defaultLookupURL,
	}
}

func (l *IPLocator) Enabled() bool { return true }

// CurrentCoordinates performs one IP geolocation lookup. Every failure
// mode wraps weather.ErrLocationUnavailable.
func (l *IPLocator) CurrentCoordinates(ctx context.Context) (weather.Coordinates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.lookupURL, nil)
	if err != nil {
		return weather.Coordinates{}, fmt.Errorf("%w: %v", weather.ErrLocationUnavailable, err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return weather.Coordinates{}, fmt.Errorf("%w: %v", weather.ErrLocationUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return weather.Coordinates{}, fmt.Errorf("%w: lookup returned status %d", weather.ErrLocationUnavailable, resp.StatusCode)
	}

	var payload struct {
		Status string  `json:"status"`
		Lat    float64 `json:"lat"`
		Lon    float64 `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Coordinates{}, fmt.Errorf("%w: malformed lookup response: %v", weather.ErrLocationUnavailable, err)
	}
	if payload.Status != "success" {
		return weather.Coordinates{}, fmt.Errorf("%w: lookup status %q", weather.ErrLocationUnavailable, payload.Status)
	}

	coords := weather.Coordinates{Lat: payload.Lat, Lon: payload.Lon}
	if err := coords.Validate(); err != nil {
		return weather.Coordinates{}, fmt.Errorf("%w: %v", weather.ErrLocationUnavailable, err)
	}

	return coords, nil
}

// StaticLocator always reports a fixed position, for deployments that
// know where they run.
type StaticLocator struct {
	coords weather.Coordinates
}

// NewStaticLocator validates and wraps the configured coordinates.
func NewStaticLocator(coords weather.Coordinates) (*StaticLocator, error) {
	if err := coords.Validate(); err != nil {
		return nil, err
	}
	return &StaticLocator{coords: coords}, nil
}

func (l *StaticLocator) Enabled() bool { return true }

func (l *StaticLocator) CurrentCoordinates(context.Context) (weather.Coordinates, error) {
	return l.coords, nil
}

// Disabled is the no-permission locator: the coordinator sees it as
// "location not granted" and serves cached data only.
type Disabled struct{}

func (Disabled) Enabled() bool { return false }

func (Disabled) CurrentCoordinates(context.Context) (weather.Coordinates, error) {
	return weather.Coordinates{}, weather.ErrLocationUnavailable
}
