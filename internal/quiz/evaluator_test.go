package quiz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCorrect(t *testing.T) {
	cases := []struct {
		name      string
		submitted string
		canonical string
		want      bool
	}{
		{"exact match", "5", "5", true},
		{"whitespace and decimal form", " 5 ", "5.0", true},
		{"decimal canonical", "5.0", "5", true},
		{"words do not equal numbers", "five", "5", false},
		{"wrong number", "4", "5", false},
		{"case-insensitive text", "TEN", "ten", true},
		{"leading zero", "05", "5", true},
		{"negative numbers", "-3", "-3.0", true},
		{"empty input", "", "5", false},
		{"both empty", "", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsCorrect(tc.submitted, tc.canonical))
		})
	}
}
