package fleetapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMalformedResponse is wrapped when a 2xx response body is not usable JSON.
var ErrMalformedResponse = errors.New("fleetapi: malformed response body")

// APIError is a non-2xx response from the fleet API.
type APIError struct {
	Status int
	Body   []byte
}

func (e *APIError) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("fleet api returned status %d: %s", e.Status, msg)
	}
	return fmt.Sprintf("fleet api returned status %d", e.Status)
}

// Message extracts a human readable message from the error body: a JSON string or
// plain text is returned as is, a JSON object yields its values joined by spaces
// (keys in sorted order), and anything else yields "".
func (e *APIError) Message() string {
	return bodyMessage(e.Body)
}

func bodyMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		// Not JSON: HTML error pages are not worth showing.
		if strings.HasPrefix(trimmed, "<") {
			return ""
		}
		return trimmed
	}

	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if s := flatten(val[k]); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	case []any:
		return flatten(val)
	}
	return ""
}

func flatten(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := flatten(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	case map[string]any:
		b, _ := json.Marshal(val)
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}

// ErrorMessage returns the best human readable message for an error returned by the
// client, falling back to fallback when the error carries nothing useful.
func ErrorMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if msg := apiErr.Message(); msg != "" {
			return msg
		}
	}
	return fallback
}
