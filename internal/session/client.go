package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/pulsarconsole/pkg/consoleapi"
)

// Client talks JSON to the console backend. Its http.Client carries the
// session transports, so every call is authorized and recovers from expiry.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// url builds a complete URL by appending the path to the base URL.
func (c *Client) url(path string) string {
	return c.BaseURL + path
}

// Do sends in as the JSON body (when non-nil) and decodes a 2xx response
// into out (when non-nil). Non-2xx responses become *consoleapi.APIError.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	return decodeJSON(resp, out)
}

// Get decodes GET path into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// decodeJSON reads the body once for both error parsing and success decoding.
func decodeJSON(resp *http.Response, out any) error {
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return consoleapi.ParseError(resp.StatusCode, raw)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// ============================================================================
// Auth endpoints
// ============================================================================

func (c *Client) Providers(ctx context.Context) (consoleapi.ProvidersResponse, error) {
	var out consoleapi.ProvidersResponse
	err := c.Get(ctx, "/auth/providers", &out)
	return out, err
}

func (c *Client) Me(ctx context.Context) (consoleapi.User, error) {
	var out consoleapi.User
	err := c.Get(ctx, "/auth/me", &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, req consoleapi.LoginRequest) (consoleapi.LoginResponse, error) {
	var out consoleapi.LoginResponse
	err := c.Do(ctx, http.MethodPost, "/auth/login", req, &out)
	return out, err
}

func (c *Client) Callback(ctx context.Context, req consoleapi.CallbackRequest) (consoleapi.TokenResponse, error) {
	var out consoleapi.TokenResponse
	err := c.Do(ctx, http.MethodPost, "/auth/callback", req, &out)
	return out, err
}

// Refresh is marked so the auth transport treats a 401 on it as fatal.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (consoleapi.TokenResponse, error) {
	var out consoleapi.TokenResponse
	err := c.Do(markRefresh(ctx), http.MethodPost, "/auth/refresh", consoleapi.RefreshRequest{RefreshToken: refreshToken}, &out)
	return out, err
}

// Logout is best effort; a 401 on it is not worth a refresh.
func (c *Client) Logout(ctx context.Context) error {
	return c.Do(markRetried(ctx), http.MethodPost, "/auth/logout", nil, nil)
}

func (c *Client) Sessions(ctx context.Context) ([]consoleapi.SessionInfo, error) {
	var out consoleapi.SessionsResponse
	if err := c.Get(ctx, "/auth/sessions", &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

func (c *Client) RevokeSession(ctx context.Context, id string) error {
	return c.Do(ctx, http.MethodDelete, "/auth/sessions/"+url.PathEscape(id), nil, nil)
}

func (c *Client) RevokeOtherSessions(ctx context.Context) (int, error) {
	var out consoleapi.RevokeSessionsResponse
	if err := c.Do(ctx, http.MethodDelete, "/auth/sessions", nil, &out); err != nil {
		return 0, err
	}
	return out.RevokedCount, nil
}

func (c *Client) CheckPermission(ctx context.Context, req consoleapi.PermissionCheckRequest) (bool, error) {
	var out consoleapi.PermissionCheckResponse
	if err := c.Do(ctx, http.MethodPost, "/rbac/check", req, &out); err != nil {
		return false, err
	}
	return out.Allowed, nil
}

func trimBase(u string) string { return strings.TrimSuffix(u, "/") }
