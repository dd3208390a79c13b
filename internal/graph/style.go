package graph

import (
	"math"
	"strconv"
	"strings"
)

// Style is a parsed cell style: semicolon-separated key=value pairs, plus
// bare tokens such as "ellipse" or "text" that name a shape or stylesheet
// entry.
type Style struct {
	Names  []string
	values map[string]string
}

// ParseStyle parses a raw style string. Later keys override earlier ones.
func ParseStyle(raw string) Style {
	s := Style{values: make(map[string]string)}
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		if !found {
			s.Names = append(s.Names, part)
			continue
		}
		s.values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return s
}

// Get returns the raw value for key.
func (s Style) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Value returns the value for key, or def when it is absent or empty.
func (s Style) Value(key, def string) string {
	if v, ok := s.values[key]; ok && v != "" {
		return v
	}
	return def
}

// Float returns a numeric value, or def when it is absent or not a finite
// number.
func (s Style) Float(key string, def float64) float64 {
	v, ok := s.values[key]
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

// Bool returns a flag value. "1" and "true" are true, "0" and "false" are
// false; anything else yields def.
func (s Style) Bool(key string, def bool) bool {
	switch strings.ToLower(s.values[key]) {
	case "1", "true":
		return true
	case "0", "false":
		return false
	default:
		return def
	}
}

// HasName reports whether a bare token is present.
func (s Style) HasName(name string) bool {
	for _, n := range s.Names {
		if n == name {
			return true
		}
	}
	return false
}
