package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var points = []TimeOfDay{{Hour: 0}, {Hour: 6}}

func at(hour, minute int) time.Time {
	return time.Date(2026, 8, 31, hour, minute, 0, 0, time.Local)
}

func TestNextSameDay(t *testing.T) {
	next, ok := Next(points, at(5, 0))
	require.True(t, ok)
	assert.Equal(t, at(6, 0), next)
}

func TestNextRollsToTomorrow(t *testing.T) {
	next, ok := Next(points, at(23, 0))
	require.True(t, ok)
	assert.Equal(t, at(0, 0).AddDate(0, 0, 1), next)
}

func TestNextIsStrictlyGreater(t *testing.T) {
	// Exactly on a point: that point is spent, the next one wins.
	next, ok := Next(points, at(6, 0))
	require.True(t, ok)
	assert.Equal(t, at(0, 0).AddDate(0, 0, 1), next)
}

func TestNextUnsortedInput(t *testing.T) {
	shuffled := []TimeOfDay{{Hour: 18}, {Hour: 6}, {Hour: 12}}
	next, ok := Next(shuffled, at(7, 30))
	require.True(t, ok)
	assert.Equal(t, at(12, 0), next)
}

func TestNextEmpty(t *testing.T) {
	_, ok := Next(nil, at(5, 0))
	assert.False(t, ok)
}

func TestTimeOfDayText(t *testing.T) {
	var p TimeOfDay
	require.NoError(t, p.UnmarshalText([]byte("06:30")))
	assert.Equal(t, TimeOfDay{Hour: 6, Minute: 30}, p)

	require.NoError(t, p.UnmarshalText([]byte("23:59:58")))
	assert.Equal(t, TimeOfDay{Hour: 23, Minute: 59, Second: 58}, p)

	assert.Error(t, p.UnmarshalText([]byte("25:00")))
	assert.Error(t, p.UnmarshalText([]byte("soon")))
}

type fakeClock struct {
	now   time.Time
	after chan time.Time
}

func (f *fakeClock) Now() time.Time                         { return f.now }
func (f *fakeClock) After(d time.Duration) <-chan time.Time { return f.after }

func TestWaitUntilPastPointReturnsImmediately(t *testing.T) {
	clk := &fakeClock{now: at(12, 0), after: make(chan time.Time)}
	// after is never signalled; a past target must not consult it.
	err := WaitUntil(context.Background(), clk, at(11, 0))
	require.NoError(t, err)
}

func TestWaitUntilFires(t *testing.T) {
	clk := &fakeClock{now: at(12, 0), after: make(chan time.Time, 1)}
	clk.after <- at(12, 1)
	require.NoError(t, WaitUntil(context.Background(), clk, at(12, 1)))
}

func TestWaitUntilCancelled(t *testing.T) {
	clk := &fakeClock{now: at(12, 0), after: make(chan time.Time)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WaitUntil(ctx, clk, at(12, 1))
	assert.ErrorIs(t, err, context.Canceled)
}
