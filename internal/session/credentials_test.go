package session_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aussiebroadwan/pulsarconsole/internal/credstore/drivers/memory"
	"github.com/aussiebroadwan/pulsarconsole/internal/session"
	"github.com/aussiebroadwan/pulsarconsole/pkg/consoleapi"
	"github.com/aussiebroadwan/pulsarconsole/pkg/jwtx"
	"github.com/aussiebroadwan/pulsarconsole/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestIsExpiredMarginBoundaries(t *testing.T) {
	ctx := context.Background()
	exp := time.UnixMilli(1_700_000_900_000)

	store := memory.New()
	require.NoError(t, store.Set(ctx, session.KeyExpiresAt, fmt.Sprint(exp.UnixMilli())))

	clock := newTestClock()
	creds := session.NewCredentials(store, clock.Now, slogx.Discard())

	tests := []struct {
		name    string
		now     time.Time
		expired bool
	}{
		{"one ms before margin", exp.Add(-60001 * time.Millisecond), false},
		{"exactly at margin", exp.Add(-60000 * time.Millisecond), true},
		{"one ms inside margin", exp.Add(-59999 * time.Millisecond), true},
		{"well before", exp.Add(-time.Hour), false},
		{"after expiry", exp.Add(time.Second), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock.Set(tt.now)
			require.Equal(t, tt.expired, creds.IsExpired(ctx))
		})
	}
}

func TestIsExpiredWithoutRecordedExpiry(t *testing.T) {
	creds := session.NewCredentials(memory.New(), nil, slogx.Discard())
	require.True(t, creds.IsExpired(context.Background()))
}

func TestIsExpiredWithCorruptExpiry(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Set(ctx, session.KeyExpiresAt, "soon"))

	creds := session.NewCredentials(store, nil, slogx.Discard())
	require.True(t, creds.IsExpired(ctx))
}

func TestStoreComputesAbsoluteExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	creds := session.NewCredentials(memory.New(), clock.Now, slogx.Discard())

	require.NoError(t, creds.Store(ctx, consoleapi.TokenResponse{
		AccessToken:  "a",
		RefreshToken: "r",
		ExpiresIn:    900,
	}))

	exp, ok, err := creds.ExpiresAt(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, clock.Now().Add(900*time.Second).UnixMilli(), exp.UnixMilli())

	access, err := creds.AccessToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "a", access)

	refresh, err := creds.RefreshToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "r", refresh)
}

func TestStoreFallsBackToTokenExpClaim(t *testing.T) {
	ctx := context.Background()

	signer, err := jwtx.NewEdDSASigner("test")
	require.NoError(t, err)

	issued := time.Unix(1_700_000_000, 0)
	access, err := signer.Sign(jwtx.NewAccessClaims("u1", "s1", "", "console", false, 10*time.Minute, issued))
	require.NoError(t, err)

	creds := session.NewCredentials(memory.New(), nil, slogx.Discard())
	require.NoError(t, creds.Store(ctx, consoleapi.TokenResponse{AccessToken: access, RefreshToken: "r"}))

	exp, ok, err := creds.ExpiresAt(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, issued.Add(10*time.Minute).Unix(), exp.Unix())
}

func TestStoreWithoutAnyExpiryLeavesTokenExpired(t *testing.T) {
	ctx := context.Background()
	creds := session.NewCredentials(memory.New(), nil, slogx.Discard())

	require.NoError(t, creds.Store(ctx, consoleapi.TokenResponse{AccessToken: "opaque", RefreshToken: "r"}))
	require.True(t, creds.IsAuthenticated(ctx))
	require.True(t, creds.IsExpired(ctx))
}

func TestStoreRejectsEmptyAccessToken(t *testing.T) {
	creds := session.NewCredentials(memory.New(), nil, slogx.Discard())
	require.Error(t, creds.Store(context.Background(), consoleapi.TokenResponse{RefreshToken: "r"}))
}

func TestClearKeepsSessionID(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	creds := session.NewCredentials(store, nil, slogx.Discard())

	sid, err := creds.SessionID(ctx)
	require.NoError(t, err)

	require.NoError(t, creds.Store(ctx, consoleapi.TokenResponse{AccessToken: "a", RefreshToken: "r", ExpiresIn: 60}))
	require.NoError(t, creds.SetUser(ctx, &consoleapi.User{ID: "u1"}))

	had, err := creds.Clear(ctx)
	require.NoError(t, err)
	require.True(t, had)

	had, err = creds.Clear(ctx)
	require.NoError(t, err)
	require.False(t, had)

	require.Equal(t, 1, store.Len())
	again, err := session.NewCredentials(store, nil, slogx.Discard()).SessionID(ctx)
	require.NoError(t, err)
	require.Equal(t, sid, again)

	u, err := creds.User(ctx)
	require.NoError(t, err)
	require.Nil(t, u)
}
