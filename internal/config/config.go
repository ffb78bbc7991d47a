package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/weatherdeck/weather-deck/internal/weather"
)

// The default city list matches the dashboard's fixed set of tracked
// cities, with their reference coordinates.
const defaultCities = "New York:40.7128:-74.0060," +
	"Singapore:1.352083:103.819839," +
	"Mumbai:19.075983:72.877655," +
	"Delhi:28.704060:77.102493," +
	"Sydney:-33.8688:151.2093," +
	"Melbourne:-37.8136:144.9631"

type AppConfig struct {
	OpenWeatherAPIKey string
	GeocoderAPIKey    string

	// DBPath locates the SQLite cache file.
	DBPath string

	// Cities to track. Entries without coordinates are geocoded at startup.
	Cities []CityEntry

	// FetchTimeout bounds each individual weather lookup.
	FetchTimeout time.Duration
	// HTTPTimeout applies to the shared outbound HTTP client.
	HTTPTimeout time.Duration

	// LocationMode selects the locator: "ip", "static" or "off".
	LocationMode string
	StaticCoords weather.Coordinates

	// Connectivity probe target.
	ProbeAddr    string
	ProbeTimeout time.Duration

	Port string
}

// CityEntry is one configured city. HasCoords is false for bare-name
// entries that need geocoding.
type CityEntry struct {
	Name      string
	Coords    weather.Coordinates
	HasCoords bool
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	if cfg.OpenWeatherAPIKey == "" {
		return nil, fmt.Errorf("OPENWEATHER_API_KEY is required")
	}
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	cfg.DBPath = getenvDefault("DB_PATH", "weather-deck.db")

	fetchTimeoutStr := getenvDefault("FETCH_TIMEOUT", "5s")
	fetchTimeout, err := time.ParseDuration(fetchTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_TIMEOUT: %w", err)
	}
	cfg.FetchTimeout = fetchTimeout

	httpTimeoutStr := getenvDefault("HTTP_TIMEOUT", "10s")
	httpTimeout, err := time.ParseDuration(httpTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = httpTimeout

	cfg.LocationMode = getenvDefault("LOCATION_MODE", "ip")
	switch cfg.LocationMode {
	case "ip", "off":
	case "static":
		lat, err := getenvFloat("STATIC_LAT")
		if err != nil {
			return nil, fmt.Errorf("LOCATION_MODE=static requires STATIC_LAT: %w", err)
		}
		lon, err := getenvFloat("STATIC_LON")
		if err != nil {
			return nil, fmt.Errorf("LOCATION_MODE=static requires STATIC_LON: %w", err)
		}
		cfg.StaticCoords = weather.Coordinates{Lat: lat, Lon: lon}
		if err := cfg.StaticCoords.Validate(); err != nil {
			return nil, fmt.Errorf("invalid static coordinates: %w", err)
		}
	default:
		return nil, fmt.Errorf("invalid LOCATION_MODE %q; use ip, static or off", cfg.LocationMode)
	}

	cfg.ProbeAddr = getenvDefault("PROBE_ADDR", "1.1.1.1:53")

	probeTimeoutStr := getenvDefault("PROBE_TIMEOUT", "2s")
	probeTimeout, err := time.ParseDuration(probeTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PROBE_TIMEOUT: %w", err)
	}
	cfg.ProbeTimeout = probeTimeout

	cfg.Port = getenvDefault("PORT", "8080")

	cities, err := ParseCities(getenvDefault("CITIES", defaultCities))
	if err != nil {
		return nil, err
	}
	cfg.Cities = cities

	return cfg, nil
}

// ParseCities parses a comma-separated city list. Each entry is either
// "Name" (geocoded at startup) or "Name:lat:lon".
func ParseCities(s string) ([]CityEntry, error) {
	var entries []CityEntry

	for _, raw := range strings.Split(s, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		parts := strings.Split(raw, ":")
		switch len(parts) {
		case 1:
			entries = append(entries, CityEntry{Name: parts[0]})
		case 3:
			lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid latitude for city %q: %w", parts[0], err)
			}
			lon, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid longitude for city %q: %w", parts[0], err)
			}
			coords := weather.Coordinates{Lat: lat, Lon: lon}
			if err := coords.Validate(); err != nil {
				return nil, fmt.Errorf("city %q: %w", parts[0], err)
			}
			entries = append(entries, CityEntry{Name: parts[0], Coords: coords, HasCoords: true})
		default:
			return nil, fmt.Errorf("invalid city entry %q; use Name or Name:lat:lon", raw)
		}
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("no cities configured")
	}
	return entries, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvFloat(key string) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, fmt.Errorf("%s is not set", key)
	}
	return strconv.ParseFloat(v, 64)
}
