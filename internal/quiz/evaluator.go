package quiz

import (
	"strconv"
	"strings"
)

// IsCorrect reports whether a submitted answer matches the canonical one.
// Both sides are trimmed and lowercased; when both parse as numbers the
// comparison is numeric, so "5", "5.0" and " 5 " are equivalent. There is
// no partial credit and no tolerance beyond numeric parsing.
func IsCorrect(submitted, canonical string) bool {
	given := strings.ToLower(strings.TrimSpace(submitted))
	want := strings.ToLower(strings.TrimSpace(canonical))

	if given == want {
		return true
	}

	gv, err := strconv.ParseFloat(given, 64)
	if err != nil {
		return false
	}
	wv, err := strconv.ParseFloat(want, 64)
	if err != nil {
		return false
	}
	return gv == wv
}
