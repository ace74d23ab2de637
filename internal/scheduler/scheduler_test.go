package scheduler

import (
	"testing"
	"time"
)

func TestTick_FiresOncePerInterval(t *testing.T) {
	l := New()
	fires := 0
	l.Add("tide", time.Second, func(now time.Time) { fires++ })

	start := time.Unix(1000, 0)
	// Tick spacing much smaller than the interval: 100ms ticks over 10s.
	for i := 0; i <= 100; i++ {
		l.Tick(start.Add(time.Duration(i) * 100 * time.Millisecond))
	}

	// First tick fires immediately, then once per elapsed second.
	if fires != 11 {
		t.Errorf("got %d fires over 10s at 1s interval, want 11", fires)
	}
}

func TestTick_IndependentIntervals(t *testing.T) {
	l := New()
	var slow, fast int
	l.Add("slow", 3*time.Second, func(now time.Time) { slow++ })
	l.Add("fast", time.Second, func(now time.Time) { fast++ })

	start := time.Unix(1000, 0)
	for i := 0; i <= 90; i++ {
		l.Tick(start.Add(time.Duration(i) * 100 * time.Millisecond))
	}

	if fast != 10 {
		t.Errorf("fast task fired %d times over 9s, want 10", fast)
	}
	if slow != 4 {
		t.Errorf("slow task fired %d times over 9s, want 4", slow)
	}
}

func TestTick_NoDriftFromTaskLatency(t *testing.T) {
	l := New()
	var fireTimes []time.Time
	l.Add("tide", time.Second, func(now time.Time) {
		fireTimes = append(fireTimes, now)
		// A real fetch would block here; the schedule must not care.
	})

	start := time.Unix(1000, 0)
	for i := 0; i <= 50; i++ {
		l.Tick(start.Add(time.Duration(i) * 100 * time.Millisecond))
	}

	if len(fireTimes) < 3 {
		t.Fatalf("got only %d fires", len(fireTimes))
	}
	// Firing times must be spaced exactly one interval apart in tick
	// time: the stamp is taken at trigger, not at completion.
	for i := 1; i < len(fireTimes); i++ {
		if got := fireTimes[i].Sub(fireTimes[i-1]); got != time.Second {
			t.Errorf("fire %d spaced %v after previous, want exactly 1s", i, got)
		}
	}
}

func TestTick_TasksRunInRegistrationOrder(t *testing.T) {
	l := New()
	var order []string
	l.Add("a", time.Second, func(time.Time) { order = append(order, "a") })
	l.Add("b", time.Second, func(time.Time) { order = append(order, "b") })
	l.Add("c", time.Second, func(time.Time) { order = append(order, "c") })

	l.Tick(time.Unix(1000, 0))

	want := []string{"a", "b", "c"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestTick_ElapsedEqualToIntervalFires(t *testing.T) {
	l := New()
	fires := 0
	l.Add("tide", time.Second, func(time.Time) { fires++ })

	start := time.Unix(1000, 0)
	l.Tick(start)
	l.Tick(start.Add(999 * time.Millisecond))
	if fires != 1 {
		t.Fatalf("fired before interval elapsed: %d", fires)
	}
	l.Tick(start.Add(time.Second))
	if fires != 2 {
		t.Errorf("elapsed == interval must fire, got %d fires", fires)
	}
}
