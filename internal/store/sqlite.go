package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/weatherdeck/weather-deck/internal/weather"
)

const schema = `
CREATE TABLE IF NOT EXISTS weather_records (
	city_name     TEXT PRIMARY KEY,
	temperature_c INTEGER NOT NULL,
	description   TEXT NOT NULL,
	country       TEXT NOT NULL,
	wind_speed    TEXT NOT NULL,
	sunrise       TEXT NOT NULL,
	sunset        TEXT NOT NULL,
	last_updated  INTEGER NOT NULL
);`

// SQLiteStore is the durable weather.Store. One row per city name;
// a new write for a city replaces the prior row entirely.
type SQLiteStore struct {
	db *sql.DB

	// now stamps LastUpdated at write time; overridable in tests.
	now func() time.Time
}

// Open opens (or creates) the database at path and ensures the schema.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open weather db: %w", err)
	}

	// A single connection serializes writers, which keeps each upsert
	// atomic under concurrent fetch completions.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping weather db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init weather db schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Upsert writes the record, replacing any prior record for the same
// city name (last-write-wins, no field merge). LastUpdated is assigned
// here, at write time, and the stored record is returned.
func (s *SQLiteStore) Upsert(ctx context.Context, rec weather.Record) (weather.Record, error) {
	if rec.CityName == "" {
		return rec, fmt.Errorf("record has empty city name")
	}

	rec.LastUpdated = s.now().UnixMilli()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO weather_records
			(city_name, temperature_c, description, country, wind_speed, sunrise, sunset, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(city_name) DO UPDATE SET
			temperature_c = excluded.temperature_c,
			description   = excluded.description,
			country       = excluded.country,
			wind_speed    = excluded.wind_speed,
			sunrise       = excluded.sunrise,
			sunset        = excluded.sunset,
			last_updated  = excluded.last_updated`,
		rec.CityName, rec.TemperatureC, rec.Description, rec.Country,
		rec.WindSpeed, rec.Sunrise, rec.Sunset, rec.LastUpdated,
	)
	if err != nil {
		return rec, fmt.Errorf("upsert %s: %w", rec.CityName, err)
	}

	return rec, nil
}

// LoadAll returns every stored record, most recently updated first.
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]weather.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT city_name, temperature_c, description, country, wind_speed, sunrise, sunset, last_updated
		FROM weather_records
		ORDER BY last_updated DESC`)
	if err != nil {
		return nil, fmt.Errorf("load weather records: %w", err)
	}
	defer rows.Close()

	var records []weather.Record
	for rows.Next() {
		var rec weather.Record
		if err := rows.Scan(
			&rec.CityName, &rec.TemperatureC, &rec.Description, &rec.Country,
			&rec.WindSpeed, &rec.Sunrise, &rec.Sunset, &rec.LastUpdated,
		); err != nil {
			return nil, fmt.Errorf("scan weather record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate weather records: %w", err)
	}

	return records, nil
}
