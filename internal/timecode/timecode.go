// Package timecode converts the timestamp strings returned by the model into
// offsets within the meeting recording.
package timecode

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var ErrInvalidFormat = errors.New("invalid time format, expected HH:MM:SS or MM:SS")

// Hour-qualified stamps need two-digit minutes; bare MM:SS accepts 1:05.
var (
	hmsRegex = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):([0-5][0-9]):([0-5][0-9])(?:[.,]([0-9]{1,6}))?$`)
	msRegex  = regexp.MustCompile(`^([0-5]?[0-9]):([0-5][0-9])(?:[.,]([0-9]{1,6}))?$`)
)

func ParseSeconds(s string) (float64, error) {
	raw := s
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	s = strings.TrimSpace(s)

	if m := hmsRegex.FindStringSubmatch(s); m != nil {
		hours, _ := strconv.Atoi(m[1])
		minutes, _ := strconv.Atoi(m[2])
		seconds, _ := strconv.Atoi(m[3])
		return float64(hours*3600+minutes*60+seconds) + fraction(m[4]), nil
	}

	if m := msRegex.FindStringSubmatch(s); m != nil {
		minutes, _ := strconv.Atoi(m[1])
		seconds, _ := strconv.Atoi(m[2])
		return float64(minutes*60+seconds) + fraction(m[3]), nil
	}

	return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, raw)
}

// MustSeconds is meant for ordering only; invalid stamps collapse to zero.
func MustSeconds(s string) float64 {
	v, err := ParseSeconds(s)
	if err != nil {
		return 0
	}
	return v
}

func Valid(s string) bool {
	_, err := ParseSeconds(s)
	return err == nil
}

func Format(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	sec := total % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d", m, sec)
}

func fraction(digits string) float64 {
	if digits == "" {
		return 0
	}
	v, err := strconv.ParseFloat("0."+digits, 64)
	if err != nil {
		return 0
	}
	return v
}
