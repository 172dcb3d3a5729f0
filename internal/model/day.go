package model

import (
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// Day is a calendar date in YYYY-MM-DD form. Tasks are grouped per day.
type Day string

func DayOf(t time.Time) Day {
	return Day(t.Format(dayLayout))
}

func Today(now time.Time) Day {
	return DayOf(now.Local())
}

func ParseDay(raw string) (Day, error) {
	if _, err := time.Parse(dayLayout, raw); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDay, raw)
	}
	return Day(raw), nil
}

func (d Day) IsValid() bool {
	_, err := time.Parse(dayLayout, string(d))
	return err == nil
}

// Start is midnight of d in loc.
func (d Day) Start(loc *time.Location) time.Time {
	t, err := time.ParseInLocation(dayLayout, string(d), loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (d Day) AddDays(n int) Day {
	start := d.Start(time.UTC)
	if start.IsZero() {
		return d
	}
	return DayOf(start.AddDate(0, 0, n))
}

func (d Day) String() string { return string(d) }
