package nightmode

import (
	"fmt"
	"time"
)

// Clock is a time of day with minute resolution.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses a 24h "HH:MM" string.
func ParseClock(value string) (Clock, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return Clock{}, fmt.Errorf("invalid time of day %q: %w", value, err)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// ClockOf returns the time of day of t in t's location.
func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute()}
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) minutes() int {
	return c.Hour*60 + c.Minute
}

// Window is a daily time range [Start, End). It wraps midnight when Start is
// after End and is empty when both are equal.
type Window struct {
	Start Clock
	End   Clock
}

// ParseWindow builds a window from two "HH:MM" bounds.
func ParseWindow(start, end string) (Window, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: s, End: e}, nil
}

// Contains reports whether the time of day c falls inside the window.
func (w Window) Contains(c Clock) bool {
	now, start, end := c.minutes(), w.Start.minutes(), w.End.minutes()
	switch {
	case start < end:
		return start <= now && now < end
	case start > end:
		return now >= start || now < end
	default:
		return false
	}
}

// ContainsTime evaluates the window at t converted to loc.
func (w Window) ContainsTime(t time.Time, loc *time.Location) bool {
	if loc != nil {
		t = t.In(loc)
	}
	return w.Contains(ClockOf(t))
}

func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}
