package utils

import (
	"strconv"
	"strings"
)

// ParseCSV splits a comma-separated string and returns trimmed non-empty values.
// Returns nil for empty/whitespace-only input.
// Used to parse filter lists carried in query parameters and config values.
func ParseCSV(s string) []string {
	if s == "" {
		return nil
	}

	var result []string
	for _, v := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return nil
	}

	return result
}

// FirstInt returns the first unsigned integer embedded in the text.
// Constraint descriptions carry their numeric thresholds this way
// ("max 8 screener days" yields 8).
func FirstInt(s string) (int, bool) {
	start := -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			n, err := strconv.Atoi(s[start:i])
			if err != nil {
				return 0, false
			}
			return n, true
		}
	}
	if start >= 0 {
		n, err := strconv.Atoi(s[start:])
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
