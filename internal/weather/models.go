package weather

import "fmt"

// Record is the persisted weather snapshot for a single city.
// CityName is the unique key; the most recent write for a city
// supersedes the previous one, no history is retained.
type Record struct {
	CityName     string `json:"cityName"`
	TemperatureC int    `json:"temperatureC"`
	Description  string `json:"description"`
	Country      string `json:"country"`
	WindSpeed    string `json:"windSpeed"`
	Sunrise      string `json:"sunrise"`     // local "HH:MM"
	Sunset       string `json:"sunset"`      // local "HH:MM"
	LastUpdated  int64  `json:"lastUpdated"` // epoch millis, assigned by the store on write
}

// Coordinates is an ephemeral lat/lon pair; never persisted.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate checks the WGS84 ranges.
func (c Coordinates) Validate() error {
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %f out of range [-90, 90]", c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("longitude %f out of range [-180, 180]", c.Lon)
	}
	return nil
}

// City is one configured refresh target. Name is a display label only;
// the key used for storage and merging is whatever city name the
// weather API reports back for the coordinates.
type City struct {
	Name   string
	Coords Coordinates
}

// View is the presentation-facing aggregate. The coordinator builds a
// fresh View per refresh cycle and publishes it whole; it is never
// mutated in place after publication.
type View struct {
	ByCity  map[string]Record `json:"byCity"`
	Current *Record           `json:"current,omitempty"`
	Loading bool              `json:"loading"`
	Error   string            `json:"error,omitempty"`
}

// clone returns a deep copy so published snapshots stay independent of
// the coordinator's working state.
func (v View) clone() View {
	out := View{
		ByCity:  make(map[string]Record, len(v.ByCity)),
		Loading: v.Loading,
		Error:   v.Error,
	}
	for name, rec := range v.ByCity {
		out.ByCity[name] = rec
	}
	if v.Current != nil {
		cur := *v.Current
		out.Current = &cur
	}
	return out
}
