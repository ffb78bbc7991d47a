package openweather

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/weatherdeck/weather-deck/internal/weather"
)

const defaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

// Client implements weather.Client against the OpenWeatherMap
// current-weather endpoint. The API returns temperatures in Kelvin;
// conversion to whole Celsius degrees happens here.
type Client struct {
	apiKey  string
	baseURL string
	httpCfg httpClientConfig
	circuit *gobreaker.CircuitBreaker
}

// New creates a Client sharing the given HTTP client. Retry policy
// belongs to the coordinator, so MaxRetries is zero; the circuit
// breaker still protects the upstream from failure storms.
func New(client *http.Client, apiKey string) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpCfg: httpClientConfig{
			Client: client,
			Backoff: backoffConfig{
				MaxRetries:      0,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: cb,
	}
}

// FetchByCoordinates performs one lookup and maps the response into a
// weather.Record. Every failure mode — transport error, non-2xx
// status, malformed or incomplete payload — surfaces as a
// *weather.FetchError; nothing else crosses this boundary.
func (c *Client) FetchByCoordinates(ctx context.Context, coords weather.Coordinates) (weather.Record, error) {
	if c.apiKey == "" {
		return weather.Record{}, weather.NewFetchError("openweather api key is not configured")
	}
	if err := coords.Validate(); err != nil {
		return weather.Record{}, weather.NewFetchError("%v", err)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("lat", strconv.FormatFloat(coords.Lat, 'f', -1, 64))
		values.Set("lon", strconv.FormatFloat(coords.Lon, 'f', -1, 64))
		values.Set("appid", c.apiKey)

		u := fmt.Sprintf("%s?%s", c.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return weather.Record{}, weather.NewFetchError("%v", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Name string `json:"name"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Sys struct {
			Country string `json:"country"`
			Sunrise int64  `json:"sunrise"`
			Sunset  int64  `json:"sunset"`
		} `json:"sys"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Record{}, weather.NewFetchError("malformed response: %v", err)
	}
	if payload.Name == "" {
		return weather.Record{}, weather.NewFetchError("response missing city name")
	}
	if len(payload.Weather) == 0 {
		return weather.Record{}, weather.NewFetchError("response missing weather description")
	}

	return weather.Record{
		CityName:     payload.Name,
		TemperatureC: kelvinToCelsius(payload.Main.Temp),
		Description:  payload.Weather[0].Description,
		Country:      payload.Sys.Country,
		WindSpeed:    strconv.FormatFloat(payload.Wind.Speed, 'f', -1, 64),
		Sunrise:      localClock(payload.Sys.Sunrise),
		Sunset:       localClock(payload.Sys.Sunset),
	}, nil
}

// kelvinToCelsius rounds to the nearest whole degree: 300.00 K is 27 °C.
func kelvinToCelsius(kelvin float64) int {
	return int(math.Round(kelvin - 273.15))
}

// localClock renders epoch seconds as "HH:MM" in the system timezone
// at call time.
func localClock(sec int64) string {
	return time.Unix(sec, 0).Local().Format("15:04")
}
