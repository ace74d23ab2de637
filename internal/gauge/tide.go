// Package gauge maintains the two live snapshots: it refreshes them from
// the external sources and is their only writer. Everything else reads
// whole-value copies.
package gauge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arprequest/tide-gauge/internal/logger"
	"github.com/arprequest/tide-gauge/internal/models"
)

// TideSource is the slice of the NOAA client the tide synchronizer needs.
type TideSource interface {
	LatestWaterLevel(ctx context.Context) (float64, error)
	HiLoPredictions(ctx context.Context, begin, end time.Time) ([]models.TidePrediction, error)
}

// TideSync fetches water level and hi/lo predictions and reduces them
// into the tide snapshot. Stale data is preferred over no data: a failed
// refresh leaves the previous snapshot intact and never clears Valid.
type TideSync struct {
	source      TideSource
	mslOffsetFt float64
	windowDays  int
	now         func() time.Time

	mu   sync.Mutex
	snap models.TideSnapshot
}

// NewTideSync creates a tide synchronizer. mslOffsetFt is the height of
// mean sea level above the station datum; windowDays is how far ahead
// predictions are fetched (wide enough to always contain a future event).
func NewTideSync(source TideSource, mslOffsetFt float64, windowDays int) *TideSync {
	return &TideSync{
		source:      source,
		mslOffsetFt: mslOffsetFt,
		windowDays:  windowDays,
		now:         time.Now,
	}
}

// Snapshot returns a copy of the current tide snapshot.
func (s *TideSync) Snapshot() models.TideSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Refresh updates the snapshot from the tide service. The observation
// and prediction fetches fail independently: a dead observation endpoint
// does not stop the next-event fields from updating, and vice versa.
// The returned error joins whatever went wrong, for the cycle failure
// counter; the snapshot itself only ever moves forward.
func (s *TideSync) Refresh(ctx context.Context) error {
	now := s.now().UTC()
	var errs []error

	level, obsErr := s.source.LatestWaterLevel(ctx)
	if obsErr != nil {
		logger.Error("Tide observation fetch failed: %v", obsErr)
		errs = append(errs, fmt.Errorf("observation: %w", obsErr))
	}

	preds, predErr := s.source.HiLoPredictions(ctx, now, now.AddDate(0, 0, s.windowDays))
	if predErr != nil {
		logger.Error("Tide prediction fetch failed: %v", predErr)
		errs = append(errs, fmt.Errorf("predictions: %w", predErr))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if obsErr == nil {
		s.snap.CurrentFt = level
		s.snap.DeltaMSL = level - s.mslOffsetFt
		s.snap.Valid = true
	}

	if predErr == nil {
		if next, ok := nextFutureEvent(preds, now); ok {
			s.snap.NextEventKind = next.Kind
			s.snap.NextEventFt = next.HeightFt
			s.snap.NextEventTime = next.Time
		} else {
			// Reduction miss: keep the previous next-event fields.
			logger.Warn("No future prediction in %d-day window (%d entries)", s.windowDays, len(preds))
		}
	}

	s.snap.FetchedAt = now

	if s.snap.Valid {
		logger.Info("Tide: %.2f ft (delta MSL: %+.2f ft), next: %s %.2f ft @ %s",
			s.snap.CurrentFt, s.snap.DeltaMSL,
			s.snap.NextEventKind, s.snap.NextEventFt,
			s.snap.NextEventTime.Format("15:04 MST"))
	}

	return errors.Join(errs...)
}

// nextFutureEvent scans a chronologically ordered prediction list for the
// first entry strictly after now. Linear scan, first match, no resorting.
func nextFutureEvent(preds []models.TidePrediction, now time.Time) (models.TidePrediction, bool) {
	for _, p := range preds {
		if p.Time.After(now) {
			return p, true
		}
	}
	return models.TidePrediction{}, false
}
