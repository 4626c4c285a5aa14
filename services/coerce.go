package services

import (
	"math"
	"strconv"
	"strings"
)

// Coerce converts a raw cell string into a nullable numeric value. This is
// the single place where "missing vs. invalid vs. zero" is resolved:
//
//	"" / "null" (any case)  → nil
//	unparseable / NaN       → nil
//	negative                → nil (counts, percentages and durations
//	                          cannot be negative in this domain)
//	anything else           → the parsed value, zero included
//
// Coerce never fails; a bad cell becomes nil, not an error.
func Coerce(raw string) *float64 {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return nil
	}
	if v < 0 {
		return nil
	}
	return &v
}
