package consoleapi_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/pulsarconsole/pkg/consoleapi"
	"github.com/stretchr/testify/require"
)

func TestParseError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"string detail", http.StatusUnauthorized, `{"detail":"Invalid or expired token"}`, "Invalid or expired token"},
		{"validation detail", http.StatusUnprocessableEntity, `{"detail":[{"loc":["body","code"]}]}`, `[{"loc":["body","code"]}]`},
		{"no envelope", http.StatusBadGateway, `<html>`, "HTTP 502: Bad Gateway"},
		{"empty body", http.StatusInternalServerError, ``, "HTTP 500: Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := consoleapi.ParseError(tt.status, []byte(tt.body))
			require.Equal(t, tt.status, err.StatusCode)
			require.Equal(t, tt.want, err.Detail)
		})
	}
}

func TestAPIErrorAs(t *testing.T) {
	var err error = consoleapi.ParseError(http.StatusUnauthorized, []byte(`{"detail":"x"}`))

	var apiErr *consoleapi.APIError
	require.True(t, errors.As(err, &apiErr))
	require.True(t, apiErr.IsUnauthorized())
	require.Contains(t, err.Error(), "401")
}

func TestUserHasRole(t *testing.T) {
	u := consoleapi.User{Roles: []consoleapi.Role{{ID: "1", Name: "operator"}}}
	require.True(t, u.HasRole("operator"))
	require.False(t, u.HasRole("admin"))
}
