package enums

import (
	"fmt"
	"slices"
	"strings"
)

// parse matches raw against the allowed values of an enum, ignoring
// surrounding whitespace. kind names the enum in the error.
func parse[T ~string](allowed []T, raw, kind string) (T, error) {
	v := T(strings.TrimSpace(raw))
	if slices.Contains(allowed, v) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, raw)
}
