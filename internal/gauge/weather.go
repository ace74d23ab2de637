package gauge

import (
	"context"
	"sync"
	"time"

	"github.com/arprequest/tide-gauge/internal/logger"
	"github.com/arprequest/tide-gauge/internal/models"
	"github.com/arprequest/tide-gauge/internal/openmeteo"
)

// WeatherSource is the slice of the Open-Meteo client the weather
// synchronizer needs.
type WeatherSource interface {
	Current(ctx context.Context) (models.WeatherSnapshot, error)
}

// WeatherSync fetches current conditions into the weather snapshot.
// Independent of the tide snapshot; same stale-over-nothing policy.
type WeatherSync struct {
	source WeatherSource
	now    func() time.Time

	mu   sync.Mutex
	snap models.WeatherSnapshot
}

// NewWeatherSync creates a weather synchronizer.
func NewWeatherSync(source WeatherSource) *WeatherSync {
	return &WeatherSync{
		source: source,
		now:    time.Now,
	}
}

// Snapshot returns a copy of the current weather snapshot.
func (s *WeatherSync) Snapshot() models.WeatherSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Refresh performs a single fetch. On any error the existing snapshot is
// left untouched.
func (s *WeatherSync) Refresh(ctx context.Context) error {
	snap, err := s.source.Current(ctx)
	if err != nil {
		logger.Error("Weather fetch failed: %v", err)
		return err
	}
	snap.FetchedAt = s.now().UTC()

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	logger.Info("Weather: %.1f°F, %s %.1f mph, %s",
		snap.TempF, openmeteo.CompassDirection(snap.WindDirDeg), snap.WindMph, snap.Condition)
	return nil
}
