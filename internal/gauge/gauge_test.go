package gauge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arprequest/tide-gauge/internal/models"
)

// fakeTideSource scripts the two NOAA fetches independently.
type fakeTideSource struct {
	level    float64
	levelErr error

	preds   []models.TidePrediction
	predErr error

	gotBegin time.Time
	gotEnd   time.Time
}

func (f *fakeTideSource) LatestWaterLevel(ctx context.Context) (float64, error) {
	return f.level, f.levelErr
}

func (f *fakeTideSource) HiLoPredictions(ctx context.Context, begin, end time.Time) ([]models.TidePrediction, error) {
	f.gotBegin, f.gotEnd = begin, end
	return f.preds, f.predErr
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newTestTideSync(src *fakeTideSource) *TideSync {
	s := NewTideSync(src, 8.35, 2)
	s.now = fixedNow
	return s
}

func pred(kind models.EventKind, height float64, at time.Time) models.TidePrediction {
	return models.TidePrediction{Kind: kind, HeightFt: height, Time: at}
}

func TestTideRefresh_FullSuccess(t *testing.T) {
	now := fixedNow()
	src := &fakeTideSource{
		level: 9.12,
		preds: []models.TidePrediction{
			pred(models.EventLow, -1.2, now.Add(-time.Hour)),
			pred(models.EventHigh, 10.4, now.Add(3*time.Hour)),
		},
	}
	s := newTestTideSync(src)

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	snap := s.Snapshot()
	if !snap.Valid {
		t.Error("Expected snapshot to be valid after first successful fetch")
	}
	if snap.CurrentFt != 9.12 {
		t.Errorf("got level %f, want 9.12", snap.CurrentFt)
	}
	if got, want := snap.DeltaMSL, 9.12-8.35; got < want-1e-9 || got > want+1e-9 {
		t.Errorf("got delta %f, want %f", got, want)
	}
	if snap.NextEventKind != models.EventHigh {
		t.Errorf("got next kind %q, want High", snap.NextEventKind)
	}
	if !snap.NextEventTime.Equal(now.Add(3 * time.Hour)) {
		t.Errorf("got next time %v, want %v", snap.NextEventTime, now.Add(3*time.Hour))
	}
	if !snap.FetchedAt.Equal(now) {
		t.Errorf("got fetched at %v, want %v", snap.FetchedAt, now)
	}
	if err := snap.Validate(); err != nil {
		t.Errorf("snapshot fails validation: %v", err)
	}

	// Prediction window spans two days ahead
	if !src.gotEnd.Equal(src.gotBegin.AddDate(0, 0, 2)) {
		t.Errorf("prediction window %v..%v is not two days", src.gotBegin, src.gotEnd)
	}
}

func TestTideRefresh_ReductionSelectsFirstStrictlyFuture(t *testing.T) {
	now := fixedNow()
	src := &fakeTideSource{
		level: 9.0,
		preds: []models.TidePrediction{
			pred(models.EventLow, -1.0, now.Add(-3600*time.Second)),
			pred(models.EventHigh, 10.0, now.Add(-60*time.Second)),
			pred(models.EventLow, -0.5, now.Add(300*time.Second)),
			pred(models.EventHigh, 10.5, now.Add(7200*time.Second)),
		},
	}
	s := newTestTideSync(src)

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	snap := s.Snapshot()
	if snap.NextEventKind != models.EventLow {
		t.Errorf("got kind %q, want Low", snap.NextEventKind)
	}
	if !snap.NextEventTime.Equal(now.Add(300 * time.Second)) {
		t.Errorf("got time %v, want t+300s", snap.NextEventTime)
	}
	if snap.NextEventFt != -0.5 {
		t.Errorf("got height %f, want -0.5", snap.NextEventFt)
	}
}

func TestTideRefresh_EntryAtExactlyNowIsNotFuture(t *testing.T) {
	now := fixedNow()
	src := &fakeTideSource{
		level: 9.0,
		preds: []models.TidePrediction{
			pred(models.EventHigh, 10.0, now),
			pred(models.EventLow, -0.5, now.Add(time.Hour)),
		},
	}
	s := newTestTideSync(src)

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if snap := s.Snapshot(); snap.NextEventKind != models.EventLow {
		t.Errorf("entry at exactly now must be skipped, got %q", snap.NextEventKind)
	}
}

func TestTideRefresh_ReductionMissKeepsPreviousEvent(t *testing.T) {
	now := fixedNow()
	src := &fakeTideSource{
		level: 9.0,
		preds: []models.TidePrediction{
			pred(models.EventHigh, 10.4, now.Add(3 * time.Hour)),
		},
	}
	s := newTestTideSync(src)
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	before := s.Snapshot()

	// Second cycle: window contains only past entries. Soft failure.
	src.level = 9.5
	src.preds = []models.TidePrediction{
		pred(models.EventLow, -1.0, now.Add(-time.Hour)),
	}
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}

	after := s.Snapshot()
	if after.CurrentFt != 9.5 {
		t.Errorf("level must still update, got %f", after.CurrentFt)
	}
	if after.NextEventKind != before.NextEventKind ||
		!after.NextEventTime.Equal(before.NextEventTime) ||
		after.NextEventFt != before.NextEventFt {
		t.Errorf("next-event fields changed on reduction miss: %+v -> %+v", before, after)
	}
}

func TestTideRefresh_ObservationFailureDoesNotBlockPredictions(t *testing.T) {
	now := fixedNow()
	src := &fakeTideSource{
		level: 9.12,
		preds: []models.TidePrediction{
			pred(models.EventHigh, 10.4, now.Add(3 * time.Hour)),
		},
	}
	s := newTestTideSync(src)
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("first Refresh: %v", err)
	}

	src.levelErr = errors.New("connection reset")
	src.preds = []models.TidePrediction{
		pred(models.EventLow, -0.8, now.Add(9 * time.Hour)),
	}

	err := s.Refresh(context.Background())
	if err == nil {
		t.Error("Expected observation error to surface")
	}

	snap := s.Snapshot()
	if snap.CurrentFt != 9.12 {
		t.Errorf("failed observation must leave level unchanged, got %f", snap.CurrentFt)
	}
	if !snap.Valid {
		t.Error("Valid must never revert on a failed refresh")
	}
	if snap.NextEventKind != models.EventLow {
		t.Errorf("prediction update must still land, got kind %q", snap.NextEventKind)
	}
}

func TestTideRefresh_PredictionFailureDoesNotBlockObservation(t *testing.T) {
	src := &fakeTideSource{
		level:   9.9,
		predErr: errors.New("504"),
	}
	s := newTestTideSync(src)

	if err := s.Refresh(context.Background()); err == nil {
		t.Error("Expected prediction error to surface")
	}

	snap := s.Snapshot()
	if !snap.Valid || snap.CurrentFt != 9.9 {
		t.Errorf("observation update must still land: %+v", snap)
	}
}

func TestTideRefresh_TotalFailureLeavesSnapshotUntouched(t *testing.T) {
	now := fixedNow()
	src := &fakeTideSource{
		level: 9.12,
		preds: []models.TidePrediction{
			pred(models.EventHigh, 10.4, now.Add(3 * time.Hour)),
		},
	}
	s := newTestTideSync(src)
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	before := s.Snapshot()

	src.levelErr = errors.New("down")
	src.predErr = errors.New("down")
	if err := s.Refresh(context.Background()); err == nil {
		t.Error("Expected error")
	}

	after := s.Snapshot()
	if after.CurrentFt != before.CurrentFt || after.NextEventKind != before.NextEventKind || !after.Valid {
		t.Errorf("snapshot changed on total failure: %+v -> %+v", before, after)
	}
}

// fakeWeatherSource scripts the Open-Meteo fetch.
type fakeWeatherSource struct {
	snap models.WeatherSnapshot
	err  error
}

func (f *fakeWeatherSource) Current(ctx context.Context) (models.WeatherSnapshot, error) {
	return f.snap, f.err
}

func TestWeatherRefresh(t *testing.T) {
	src := &fakeWeatherSource{
		snap: models.WeatherSnapshot{
			TempF:       54.3,
			WindMph:     7.8,
			WindDirDeg:  247,
			Condition:   "Rain",
			WeatherCode: 61,
			Valid:       true,
		},
	}
	s := NewWeatherSync(src)
	s.now = fixedNow

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	snap := s.Snapshot()
	if !snap.Valid || snap.TempF != 54.3 || snap.Condition != "Rain" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if !snap.FetchedAt.Equal(fixedNow()) {
		t.Errorf("got fetched at %v, want %v", snap.FetchedAt, fixedNow())
	}
}

func TestWeatherRefresh_FailureLeavesSnapshotUntouched(t *testing.T) {
	src := &fakeWeatherSource{
		snap: models.WeatherSnapshot{TempF: 54.3, Condition: "Rain", WindDirDeg: 10, Valid: true},
	}
	s := NewWeatherSync(src)
	s.now = fixedNow

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	src.err = errors.New("timeout")
	if err := s.Refresh(context.Background()); err == nil {
		t.Error("Expected error")
	}

	snap := s.Snapshot()
	if !snap.Valid || snap.TempF != 54.3 {
		t.Errorf("snapshot changed on failure: %+v", snap)
	}
}
