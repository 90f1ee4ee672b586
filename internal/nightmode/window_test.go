package nightmode_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/streambot/internal/nightmode"
)

func mustWindow(t *testing.T, start, end string) nightmode.Window {
	t.Helper()
	w, err := nightmode.ParseWindow(start, end)
	require.NoError(t, err)
	return w
}

func TestWindowContains(t *testing.T) {
	t.Parallel()

	type containsTestCase struct {
		name   string
		start  string
		end    string
		now    string
		inside bool
	}

	testGroups := map[string][]containsTestCase{
		"Same day window": {
			{name: "start is inside", start: "00:00", end: "07:00", now: "00:00", inside: true},
			{name: "middle", start: "00:00", end: "07:00", now: "03:30", inside: true},
			{name: "minute before end", start: "00:00", end: "07:00", now: "06:59", inside: true},
			{name: "end is outside", start: "00:00", end: "07:00", now: "07:00", inside: false},
			{name: "afternoon", start: "00:00", end: "07:00", now: "12:00", inside: false},
			{name: "last minute of day", start: "00:00", end: "07:00", now: "23:59", inside: false},
		},
		"Midnight crossing window": {
			{name: "before start", start: "23:00", end: "07:00", now: "22:59", inside: false},
			{name: "start is inside", start: "23:00", end: "07:00", now: "23:00", inside: true},
			{name: "late evening", start: "23:00", end: "07:00", now: "23:30", inside: true},
			{name: "midnight", start: "23:00", end: "07:00", now: "00:00", inside: true},
			{name: "early morning", start: "23:00", end: "07:00", now: "06:59", inside: true},
			{name: "end is outside", start: "23:00", end: "07:00", now: "07:00", inside: false},
			{name: "noon", start: "23:00", end: "07:00", now: "12:00", inside: false},
		},
		"Empty window": {
			{name: "at bound", start: "05:00", end: "05:00", now: "05:00", inside: false},
			{name: "elsewhere", start: "05:00", end: "05:00", now: "17:00", inside: false},
		},
	}

	for groupName, testCases := range testGroups {
		t.Run(groupName, func(t *testing.T) {
			t.Parallel()

			for _, tc := range testCases {
				t.Run(tc.name, func(t *testing.T) {
					t.Parallel()

					w := mustWindow(t, tc.start, tc.end)
					now, err := nightmode.ParseClock(tc.now)
					require.NoError(t, err)
					assert.Equal(t, tc.inside, w.Contains(now), "%s at %s", w, tc.now)
				})
			}
		})
	}
}

func TestWindowExhaustive(t *testing.T) {
	t.Parallel()

	windows := [][2]string{{"00:00", "07:00"}, {"23:00", "07:00"}, {"22:15", "01:45"}, {"08:30", "17:00"}}
	for _, bounds := range windows {
		w := mustWindow(t, bounds[0], bounds[1])
		start := w.Start.Hour*60 + w.Start.Minute
		end := w.End.Hour*60 + w.End.Minute

		for m := range 24 * 60 {
			var want bool
			if start < end {
				want = start <= m && m < end
			} else {
				want = m >= start || m < end
			}
			got := w.Contains(nightmode.Clock{Hour: m / 60, Minute: m % 60})
			if got != want {
				t.Fatalf("window %s at minute %d: got %v, want %v", w, m, got, want)
			}
		}
	}
}

func TestWindowContainsTimeUsesLocation(t *testing.T) {
	t.Parallel()

	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	w := mustWindow(t, "00:00", "07:00")

	// 23:30 UTC in summer is 01:30 in Berlin.
	now := time.Date(2024, 7, 1, 23, 30, 0, 0, time.UTC)
	assert.True(t, w.ContainsTime(now, berlin))
	assert.False(t, w.ContainsTime(now, time.UTC))
}

func TestParseClock(t *testing.T) {
	t.Parallel()

	c, err := nightmode.ParseClock("07:05")
	require.NoError(t, err)
	assert.Equal(t, nightmode.Clock{Hour: 7, Minute: 5}, c)
	assert.Equal(t, "07:05", c.String())

	for _, bad := range []string{"", "7", "24:00", "12:60", "noon"} {
		_, err := nightmode.ParseClock(bad)
		assert.Error(t, err, bad)
	}
}
