package validators

import (
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	pkgerrors "github.com/haatbazaar/marketplace-backend/pkg/errors"
)

// IntRange bounds a numeric query parameter. Default applies when the
// parameter is absent.
type IntRange struct {
	Default int
	Min     int
	Max     int
}

func QueryInt(r *http.Request, key string, bounds IntRange) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return bounds.Default, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" must be an integer").
			WithDetails(map[string]any{"field": key, "value": raw})
	}
	if n < bounds.Min || n > bounds.Max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" out of range").
			WithDetails(map[string]any{"field": key, "min": bounds.Min, "max": bounds.Max})
	}
	return n, nil
}

// QueryToken returns a trimmed opaque token such as a page cursor, rejecting
// values longer than maxLen bytes.
func QueryToken(r *http.Request, key string, maxLen int) (string, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if len(raw) > maxLen || !utf8.ValidString(raw) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid "+key).
			WithDetails(map[string]any{"field": key, "max_length": maxLen})
	}
	return raw, nil
}
