package session

import (
	"testing"
	"time"
)

func TestSweeper_RunOnce(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	s := NewStoreWithClock(clock)

	s.Update("stale", "u1", "", "hi", "h1")
	clock.Advance(25 * time.Hour)
	s.Update("live", "u2", "", "hi", "h2")

	sw := NewSweeper(s, 24*time.Hour, time.Hour)
	if n := sw.RunOnce(); n != 1 {
		t.Errorf("RunOnce = %d, want 1", n)
	}
	if s.Count() != 1 {
		t.Errorf("Count = %d, want 1", s.Count())
	}
}

func TestNewSweeper_Defaults(t *testing.T) {
	sw := NewSweeper(NewStore(), 0, 0)
	if sw.maxAge != 24*time.Hour {
		t.Errorf("maxAge = %v, want 24h", sw.maxAge)
	}
	if sw.interval != time.Hour {
		t.Errorf("interval = %v, want 1h", sw.interval)
	}
}
