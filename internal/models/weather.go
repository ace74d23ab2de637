package models

import (
	"errors"
	"time"
)

// WeatherSnapshot is the most recently known current-conditions state.
// Structurally independent from TideSnapshot; the two never reference
// each other.
type WeatherSnapshot struct {
	TempF       float64   `json:"temp_f"`
	WindMph     float64   `json:"wind_mph"`
	WindDirDeg  float64   `json:"wind_dir_deg"`
	Condition   string    `json:"condition"`
	WeatherCode int       `json:"weather_code"`
	FetchedAt   time.Time `json:"fetched_at"`
	Valid       bool      `json:"valid"`
}

// Validate checks snapshot field constraints.
func (s *WeatherSnapshot) Validate() error {
	if !s.Valid {
		return nil
	}
	if s.TempF < -100 || s.TempF > 150 {
		return errors.New("temperature out of plausible range")
	}
	if s.WindMph < 0 {
		return errors.New("wind speed must not be negative")
	}
	if s.WindDirDeg < 0 || s.WindDirDeg >= 360 {
		return errors.New("wind direction must be in [0, 360)")
	}
	if s.Condition == "" {
		return errors.New("valid snapshot must have a condition")
	}
	if s.FetchedAt.IsZero() {
		return errors.New("valid snapshot must have a fetch time")
	}
	return nil
}
