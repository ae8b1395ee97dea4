package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidDuration is returned for max-age strings that are not <number><d|w|m|y>.
var ErrInvalidDuration = errors.New("invalid duration")

const day = 24 * time.Hour

var ageUnits = map[byte]time.Duration{
	'd': day,
	'w': 7 * day,
	'm': 30 * day,
	'y': 365 * day,
}

// ParseMaxAge parses strings like "3d", "2w", "6m" or "1y". Months are 30 days
// and years are 365 days.
func ParseMaxAge(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}

	unit, ok := ageUnits[s[len(s)-1]]
	if !ok {
		return 0, fmt.Errorf("%w: %q: unknown unit %q (want d, w, m or y)", ErrInvalidDuration, s, s[len(s)-1:])
	}

	magnitude := s[:len(s)-1]
	if n, err := strconv.ParseInt(magnitude, 10, 64); err == nil && n >= 0 {
		if n > int64(math.MaxInt64/unit) {
			return 0, fmt.Errorf("%w: %q: out of range", ErrInvalidDuration, s)
		}
		return time.Duration(n) * unit, nil
	}
	f, err := strconv.ParseFloat(magnitude, 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q: bad magnitude", ErrInvalidDuration, s)
	}
	if f*float64(unit) >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %q: out of range", ErrInvalidDuration, s)
	}
	return time.Duration(f * float64(unit)), nil
}

// MaxAge is a max-age duration decoded from a "<n><unit>" YAML string.
type MaxAge struct {
	time.Duration
}

func (m *MaxAge) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		m.Duration = 0
		return nil
	}
	parsed, err := ParseMaxAge(s)
	if err != nil {
		return err
	}
	m.Duration = parsed
	return nil
}

// ParseStartDate accepts an ISO date (2006-01-02, midnight UTC) or an RFC 3339 timestamp.
func ParseStartDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("start date %q: want YYYY-MM-DD or RFC 3339", s)
}

// StartDate is a lower bound decoded from a YAML date string.
type StartDate struct {
	time.Time
}

func (d *StartDate) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		d.Time = time.Time{}
		return nil
	}
	parsed, err := ParseStartDate(s)
	if err != nil {
		return err
	}
	d.Time = parsed
	return nil
}
