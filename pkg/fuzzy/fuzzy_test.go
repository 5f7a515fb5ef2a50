package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshteinDistance(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"Budget Review", "budget  review", 0},
		{"budget review", "budget reveiw", 2},
		{"café", "cafe", 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, LevenshteinDistance(tc.a, tc.b), "%q vs %q", tc.a, tc.b)
	}
}

func TestWithinDistance(t *testing.T) {
	assert.True(t, WithinDistance("Quarterly report", "Quartely report", 2))
	assert.False(t, WithinDistance("Budget Review", "Lunch plans", 2))
	assert.False(t, WithinDistance("", "", 2))
	assert.False(t, WithinDistance("short", "a much longer subject", 2))
}
