package utils

import (
	"fmt"
	"strconv"
	"time"
)

// Optional query parameter parsers. An empty string yields nil.

func ParseOptionalFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", s)
	}
	return &val, nil
}

func ParseOptionalInt(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return &val, nil
}

func ParseOptionalBool(s string) (*bool, error) {
	if s == "" {
		return nil, nil
	}
	val, err := strconv.ParseBool(s)
	if err != nil {
		return nil, fmt.Errorf("invalid boolean %q", s)
	}
	return &val, nil
}

// ParseOptionalTime accepts RFC3339 or a plain YYYY-MM-DD date
func ParseOptionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q", s)
}
