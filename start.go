package bot

import (
	"fmt"
	"strconv"
	"time"
)

// StartTime is a slot start time in HHMM form, e.g. 800 for 08:00 and
// 1900 for 19:00.
type StartTime int

// ParseStartTime parses a HHMM string.
func ParseStartTime(s string) (StartTime, error) {
	if len(s) == 0 || len(s) > 4 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStartTime, s)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidStartTime, s)
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStartTime, s)
	}
	t := StartTime(n)
	if !t.valid() {
		return 0, fmt.Errorf("%w: %q is not a time of day", ErrInvalidStartTime, s)
	}
	return t, nil
}

func startTimeOf(t time.Time) StartTime {
	return StartTime(t.Hour()*100 + t.Minute())
}

func (s StartTime) valid() bool {
	return s >= 0 && s.Hour() <= 23 && s.Minute() <= 59
}

// Hour returns the hour part.
func (s StartTime) Hour() int { return int(s) / 100 }

// Minute returns the minute part.
func (s StartTime) Minute() int { return int(s) % 100 }

// String formats s as HH:MM.
func (s StartTime) String() string {
	return fmt.Sprintf("%02d:%02d", s.Hour(), s.Minute())
}
