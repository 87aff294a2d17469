package validators

import (
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
)

// QueryString returns the trimmed query value for key, cut to at most maxLen
// runes. A non-positive maxLen keeps the whole value.
func QueryString(r *http.Request, key string, maxLen int) string {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if maxLen <= 0 || utf8.RuneCountInString(value) <= maxLen {
		return value
	}
	runes := []rune(value)
	return strings.TrimSpace(string(runes[:maxLen]))
}

// QueryInt parses an optional bounded integer. Missing keys yield fallback.
func QueryInt(r *http.Request, key string, fallback, lo, hi int) (int, error) {
	raw := QueryString(r, key, 0)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" must be a whole number").
			WithDetails(map[string]string{key: "must be a whole number"})
	}
	if value < lo || value > hi {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" is out of range").
			WithDetails(map[string]any{"field": key, "min": lo, "max": hi})
	}
	return value, nil
}
