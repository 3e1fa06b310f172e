package bot

import (
	"fmt"
	"strings"
)

// Lane is the speed category of a swimming lane.
type Lane int

// Lane categories. Unknown marks events whose description names no lane.
const (
	Unknown Lane = iota
	Slow
	Medium
	Fast
)

var laneNames = map[Lane]string{
	Unknown: "UNKNOWN",
	Slow:    "SLOW",
	Medium:  "MEDIUM",
	Fast:    "FAST",
}

// String returns the upper-case lane name.
func (l Lane) String() string {
	if name, ok := laneNames[l]; ok {
		return name
	}
	return laneNames[Unknown]
}

// ParseLane parses a user supplied lane name. Unknown is not accepted.
func ParseLane(s string) (Lane, error) {
	l := laneFromName(s)
	if l == Unknown {
		return Unknown, fmt.Errorf("%w: %q (want SLOW, MEDIUM or FAST)", ErrInvalidLane, s)
	}
	return l, nil
}

// laneFromDescription reads the lane from an event description such as
// "Medium lane swimming".
func laneFromDescription(desc string) Lane {
	fields := strings.Fields(desc)
	if len(fields) == 0 {
		return Unknown
	}
	return laneFromName(fields[0])
}

func laneFromName(s string) Lane {
	s = strings.ToUpper(strings.TrimSpace(s))
	for l, name := range laneNames {
		if l != Unknown && name == s {
			return l
		}
	}
	return Unknown
}
