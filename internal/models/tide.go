// Package models defines the core domain entities: tide and weather
// snapshots and hi/lo tide predictions.
package models

import (
	"errors"
	"fmt"
	"time"
)

// EventKind classifies a predicted tidal extremum.
type EventKind string

const (
	EventHigh    EventKind = "High"
	EventLow     EventKind = "Low"
	EventUnknown EventKind = "Unknown"
)

// KindFromFlag converts the NOAA type flag ("H"/"L") to an EventKind.
func KindFromFlag(flag string) EventKind {
	switch flag {
	case "H":
		return EventHigh
	case "L":
		return EventLow
	default:
		return EventUnknown
	}
}

// TidePrediction is a single forecasted extremum from the hi/lo product.
// Time is always UTC.
type TidePrediction struct {
	Kind     EventKind `json:"kind"`
	HeightFt float64   `json:"height_ft"`
	Time     time.Time `json:"time"`
}

// TideSnapshot is the most recently known tidal state. There is exactly
// one instance per process, owned by the tide synchronizer; everyone
// else reads copies.
type TideSnapshot struct {
	CurrentFt     float64   `json:"current_ft"`      // water level above MLLW
	DeltaMSL      float64   `json:"delta_msl_ft"`    // current - mean sea level
	NextEventKind EventKind `json:"next_event_kind"`
	NextEventFt   float64   `json:"next_event_ft"`
	NextEventTime time.Time `json:"next_event_time"`
	FetchedAt     time.Time `json:"fetched_at"`
	Valid         bool      `json:"valid"`
}

// Validate checks snapshot field constraints.
func (s *TideSnapshot) Validate() error {
	if !s.Valid {
		return nil
	}
	switch s.NextEventKind {
	case EventHigh, EventLow, EventUnknown:
	default:
		return fmt.Errorf("unrecognized event kind %q", s.NextEventKind)
	}
	if s.CurrentFt < -50 || s.CurrentFt > 100 {
		return errors.New("current level out of plausible range")
	}
	if s.FetchedAt.IsZero() {
		return errors.New("valid snapshot must have a fetch time")
	}
	if !s.NextEventTime.IsZero() && !s.NextEventTime.After(s.FetchedAt) {
		return errors.New("next event must be after the fetch that produced it")
	}
	return nil
}
