// Package schedule computes daily attendance time points and provides the
// waiting primitive the orchestrator blocks on between windows.
package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Clock abstracts wall time so time-point logic is testable.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// System returns the real clock.
func System() Clock { return systemClock{} }

// TimeOfDay is a daily check-in point. It decodes from "15:04" or "15:04:05"
// strings in the config file.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (t *TimeOfDay) UnmarshalText(text []byte) error {
	s := string(text)
	parsed, err := time.Parse("15:04:05", s)
	if err != nil {
		parsed, err = time.Parse("15:04", s)
	}
	if err != nil {
		return fmt.Errorf("invalid time point %q: want HH:MM or HH:MM:SS", s)
	}
	t.Hour, t.Minute, t.Second = parsed.Hour(), parsed.Minute(), parsed.Second()
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// at anchors the point on the given date in that date's location.
func (t TimeOfDay) at(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(),
		t.Hour, t.Minute, t.Second, 0, date.Location())
}

// Next returns the earliest configured point strictly after now: today's
// smallest point later than now's time-of-day, or tomorrow's smallest point
// when today's are all spent. It never returns now itself, so a wake exactly
// on a point cannot re-fire immediately.
func Next(points []TimeOfDay, now time.Time) (time.Time, bool) {
	if len(points) == 0 {
		return time.Time{}, false
	}
	sorted := make([]TimeOfDay, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].at(now).Before(sorted[j].at(now))
	})
	for _, p := range sorted {
		if candidate := p.at(now); candidate.After(now) {
			return candidate, true
		}
	}
	return sorted[0].at(now.AddDate(0, 0, 1)), true
}

// WaitUntil suspends the caller until target. A target at or before now
// returns immediately; there are no negative sleeps. The context aborts the
// wait early.
func WaitUntil(ctx context.Context, clk Clock, target time.Time) error {
	d := target.Sub(clk.Now())
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-clk.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
