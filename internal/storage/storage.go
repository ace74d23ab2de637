// Package storage provides SQLite-backed logging of tide and weather
// readings for the status page's history view. The live snapshots never
// depend on it; losing the database loses nothing but history.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/arprequest/tide-gauge/internal/models"
)

// Storage wraps a SQLite database holding the readings log.
type Storage struct {
	db          *sql.DB
	maxReadings int
}

// TideReading is one logged tide snapshot row.
type TideReading struct {
	ID            string
	CurrentFt     float64
	DeltaMSL      float64
	NextEventKind models.EventKind
	NextEventFt   float64
	NextEventTime time.Time
	RecordedAt    time.Time
}

// WeatherReading is one logged weather snapshot row.
type WeatherReading struct {
	ID          string
	TempF       float64
	WindMph     float64
	WindDirDeg  float64
	Condition   string
	WeatherCode int
	RecordedAt  time.Time
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/tide-gauge/data.db.
func New(maxReadings int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "tide-gauge", "data.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db, maxReadings: maxReadings}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tide_readings (
			id              TEXT PRIMARY KEY,
			current_ft      REAL NOT NULL,
			delta_msl       REAL NOT NULL,
			next_event_kind TEXT NOT NULL,
			next_event_ft   REAL NOT NULL,
			next_event_time INTEGER NOT NULL,
			recorded_at     INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS weather_readings (
			id           TEXT PRIMARY KEY,
			temp_f       REAL NOT NULL,
			wind_mph     REAL NOT NULL,
			wind_dir_deg REAL NOT NULL,
			condition    TEXT NOT NULL,
			weather_code INTEGER NOT NULL,
			recorded_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tide_recorded_at ON tide_readings(recorded_at)`,
		`CREATE INDEX IF NOT EXISTS idx_weather_recorded_at ON weather_readings(recorded_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecordTide appends a tide snapshot to the log. Invalid snapshots
// (nothing fetched yet) are ignored.
func (s *Storage) RecordTide(snap models.TideSnapshot) error {
	if !snap.Valid {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT INTO tide_readings
			(id, current_ft, delta_msl, next_event_kind, next_event_ft, next_event_time, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(),
		snap.CurrentFt,
		snap.DeltaMSL,
		string(snap.NextEventKind),
		snap.NextEventFt,
		snap.NextEventTime.Unix(),
		snap.FetchedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record tide reading: %w", err)
	}
	return nil
}

// RecordWeather appends a weather snapshot to the log.
func (s *Storage) RecordWeather(snap models.WeatherSnapshot) error {
	if !snap.Valid {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT INTO weather_readings
			(id, temp_f, wind_mph, wind_dir_deg, condition, weather_code, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(),
		snap.TempF,
		snap.WindMph,
		snap.WindDirDeg,
		snap.Condition,
		snap.WeatherCode,
		snap.FetchedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record weather reading: %w", err)
	}
	return nil
}

// RecentTideReadings returns up to limit readings, newest first.
func (s *Storage) RecentTideReadings(limit int) ([]TideReading, error) {
	rows, err := s.db.Query(
		`SELECT id, current_ft, delta_msl, next_event_kind, next_event_ft, next_event_time, recorded_at
		 FROM tide_readings ORDER BY recorded_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query tide readings: %w", err)
	}
	defer rows.Close()

	var readings []TideReading
	for rows.Next() {
		var r TideReading
		var kind string
		var nextUnix, recordedUnix int64
		if err := rows.Scan(&r.ID, &r.CurrentFt, &r.DeltaMSL, &kind, &r.NextEventFt, &nextUnix, &recordedUnix); err != nil {
			return nil, fmt.Errorf("failed to scan tide reading: %w", err)
		}
		r.NextEventKind = models.EventKind(kind)
		r.NextEventTime = time.Unix(nextUnix, 0).UTC()
		r.RecordedAt = time.Unix(recordedUnix, 0).UTC()
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// Prune deletes the oldest rows beyond the configured cap, per table.
func (s *Storage) Prune() error {
	stmts := []string{
		`DELETE FROM tide_readings WHERE id NOT IN (
			SELECT id FROM tide_readings ORDER BY recorded_at DESC LIMIT ?)`,
		`DELETE FROM weather_readings WHERE id NOT IN (
			SELECT id FROM weather_readings ORDER BY recorded_at DESC LIMIT ?)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt, s.maxReadings); err != nil {
			return fmt.Errorf("failed to prune readings: %w", err)
		}
	}
	return nil
}
