package session

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/pulsarconsole/internal/metrics"
	"github.com/aussiebroadwan/pulsarconsole/pkg/httpx"
)

type ctxKey int

const (
	ctxKeyRetried ctxKey = iota
	ctxKeyRefresh
)

func markRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKeyRetried, true)
}

func isRetried(ctx context.Context) bool {
	v, _ := ctx.Value(ctxKeyRetried).(bool)
	return v
}

// markRefresh tags the refresh call so a 401 on it is never answered with
// another refresh.
func markRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKeyRefresh, true)
}

func isRefresh(ctx context.Context) bool {
	v, _ := ctx.Value(ctxKeyRefresh).(bool)
	return v
}

// sessionIDTransport stamps every request with the stable X-Session-Id.
type sessionIDTransport struct {
	creds *Credentials
	next  http.RoundTripper
}

func (t *sessionIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	sid, err := t.creds.SessionID(req.Context())
	if err != nil || sid == "" {
		return t.next.RoundTrip(req)
	}

	out := req.Clone(req.Context())
	out.Header.Set(httpx.SessionIDHeader, sid)
	return t.next.RoundTrip(out)
}

// authTransport attaches the bearer token and recovers from 401s through
// the shared Refresher, replaying each request at most once.
type authTransport struct {
	creds     *Credentials
	refresher *Refresher
	next      http.RoundTripper
	log       *slog.Logger
	metrics   *metrics.Metrics
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	used, err := t.creds.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	out := req.Clone(ctx)
	if used != "" {
		out.Header.Set("Authorization", "Bearer "+used)
	}

	resp, err := t.next.RoundTrip(out)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	switch {
	case isRefresh(ctx):
		t.log.Warn("refresh call unauthorized, ending session")
		t.refresher.expire(ctx, "refresh_unauthorized")
		return resp, nil

	case isRetried(ctx):
		return resp, nil

	case req.Body != nil && req.Body != http.NoBody && req.GetBody == nil:
		// Body already consumed and cannot be rebuilt.
		return resp, nil
	}

	current, err := t.creds.AccessToken(ctx)
	if err != nil {
		return resp, nil
	}

	reason := "token_rotated"
	if current == "" || current == used {
		reason = "refreshed"
		if _, err := t.refresher.Refresh(ctx); err != nil {
			drain(resp)
			return nil, err
		}
	}
	drain(resp)

	t.metrics.Replays.WithLabelValues(reason).Inc()
	t.log.Debug("replaying request", "method", req.Method, "path", req.URL.Path, "reason", reason)

	retry := req.Clone(markRetried(ctx))
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}

	return t.RoundTrip(retry)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
