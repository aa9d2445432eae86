package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseTrackTime converts a human-entered race time into seconds. Accepted
// forms are "MM:SS.cc" and plain seconds ("SS.cc"); the result must be
// strictly positive.
func ParseTrackTime(input string) (float64, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, fmt.Errorf("empty time")
	}
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 1:
		sec, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid time %q", input)
		}
		if sec <= 0 {
			return 0, fmt.Errorf("time must be positive")
		}
		return sec, nil
	case 2:
		min, err := strconv.Atoi(parts[0])
		if err != nil || min < 0 {
			return 0, fmt.Errorf("invalid minutes in %q", input)
		}
		sec, err := strconv.ParseFloat(parts[1], 64)
		if err != nil || sec < 0 || sec >= 60 {
			return 0, fmt.Errorf("invalid seconds in %q", input)
		}
		total := float64(min)*60 + sec
		if total <= 0 {
			return 0, fmt.Errorf("time must be positive")
		}
		return total, nil
	default:
		return 0, fmt.Errorf("invalid time format %q", input)
	}
}

// FormatTrackTime renders seconds as "MM:SS.cc" for display.
func FormatTrackTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	min := int(seconds) / 60
	rem := seconds - float64(min*60)
	return fmt.Sprintf("%02d:%05.2f", min, rem)
}

// ParseFieldDistance converts a human-entered distance or height into meters;
// the result must be strictly positive.
func ParseFieldDistance(input string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid distance %q", input)
	}
	if v <= 0 {
		return 0, fmt.Errorf("distance must be positive")
	}
	return v, nil
}
