package consoleapi

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the console backend.
type APIError struct {
	// StatusCode is the HTTP status code of the response
	StatusCode int `json:"-"`

	// Detail is the human readable message from the {"detail": ...} envelope
	Detail string `json:"detail"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("console api: %d: %s", e.StatusCode, e.Detail)
}

// IsUnauthorized reports a 401 response.
func (e *APIError) IsUnauthorized() bool { return e.StatusCode == http.StatusUnauthorized }

// ParseError builds an *APIError from a failed response body. Validation
// errors carry a list under "detail"; those are kept as raw JSON text.
func ParseError(statusCode int, body []byte) *APIError {
	var env struct {
		Detail json.RawMessage `json:"detail"`
	}

	if err := json.Unmarshal(body, &env); err == nil && len(env.Detail) > 0 {
		var s string
		if json.Unmarshal(env.Detail, &s) == nil {
			return &APIError{StatusCode: statusCode, Detail: s}
		}
		return &APIError{StatusCode: statusCode, Detail: string(env.Detail)}
	}

	return &APIError{
		StatusCode: statusCode,
		Detail:     fmt.Sprintf("HTTP %d: %s", statusCode, http.StatusText(statusCode)),
	}
}
