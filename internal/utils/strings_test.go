package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "single value",
			input:    "generation.completed",
			expected: []string{"generation.completed"},
		},
		{
			name:     "two values",
			input:    "generation.completed, compoff.credited",
			expected: []string{"generation.completed", "compoff.credited"},
		},
		{
			name:     "three values with varied spacing",
			input:    "AM,  PM , NIGHT",
			expected: []string{"AM", "PM", "NIGHT"},
		},
		{
			name:     "no spaces after comma",
			input:    "AM,PM",
			expected: []string{"AM", "PM"},
		},
		{
			name:     "trailing comma",
			input:    "AM,",
			expected: []string{"AM"},
		},
		{
			name:     "leading comma",
			input:    ",PM",
			expected: []string{"PM"},
		},
		{
			name:     "only spaces",
			input:    "   ",
			expected: nil,
		},
		{
			name:     "comma only",
			input:    ",",
			expected: nil,
		},
		{
			name:     "multiple commas",
			input:    ",,AM,,PM,,",
			expected: []string{"AM", "PM"},
		},
		{
			name:     "value with internal spaces preserved",
			input:    "Early Morning, Late Evening",
			expected: []string{"Early Morning", "Late Evening"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseCSV(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseCSV_PreservesInput(t *testing.T) {
	input := "AM, PM"
	originalInput := input

	_ = ParseCSV(input)

	assert.Equal(t, originalInput, input, "input should not be modified")
}

func TestFirstInt(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
		found    bool
	}{
		{name: "plain number", input: "8", expected: 8, found: true},
		{name: "threshold in text", input: "max 8 screener days", expected: 8, found: true},
		{name: "number at end", input: "screener cap 12", expected: 12, found: true},
		{name: "first of several", input: "between 2 and 10", expected: 2, found: true},
		{name: "multi-digit", input: "limit 365 days", expected: 365, found: true},
		{name: "no number", input: "no threshold here", expected: 0, found: false},
		{name: "empty", input: "", expected: 0, found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := FirstInt(tt.input)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.expected, n)
		})
	}
}
