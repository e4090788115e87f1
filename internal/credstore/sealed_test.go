package credstore_test

import (
	"context"
	"strings"
	"testing"

	"github.com/aussiebroadwan/pulsarconsole/internal/credstore"
	"github.com/aussiebroadwan/pulsarconsole/internal/credstore/drivers/memory"
	"github.com/aussiebroadwan/pulsarconsole/internal/credstore/storetest"
	"github.com/stretchr/testify/require"
)

func TestSealedStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) credstore.KV {
		s, err := credstore.OpenSealed(context.Background(), memory.New(), "master", "access_token", "refresh_token")
		require.NoError(t, err)
		return s
	})
}

func TestSealedValuesAreEncryptedAtRest(t *testing.T) {
	ctx := context.Background()
	raw := memory.New()

	s, err := credstore.OpenSealed(ctx, raw, "master", "refresh_token")
	require.NoError(t, err)

	require.NoError(t, s.SetMany(ctx, map[string]string{
		"refresh_token": "super-secret",
		"session_id":    "sess-1",
	}))

	stored, err := raw.Get(ctx, "refresh_token")
	require.NoError(t, err)
	require.NotContains(t, stored, "super-secret")
	require.True(t, strings.HasPrefix(stored, "sealed:v1:"))

	plain, err := raw.Get(ctx, "session_id")
	require.NoError(t, err)
	require.Equal(t, "sess-1", plain)

	got, err := s.Get(ctx, "refresh_token")
	require.NoError(t, err)
	require.Equal(t, "super-secret", got)
}

func TestSealedReopenUsesStoredSalt(t *testing.T) {
	ctx := context.Background()
	raw := memory.New()

	a, err := credstore.OpenSealed(ctx, raw, "master", "refresh_token")
	require.NoError(t, err)
	require.NoError(t, a.Set(ctx, "refresh_token", "r1"))

	b, err := credstore.OpenSealed(ctx, raw, "master", "refresh_token")
	require.NoError(t, err)
	got, err := b.Get(ctx, "refresh_token")
	require.NoError(t, err)
	require.Equal(t, "r1", got)

	wrong, err := credstore.OpenSealed(ctx, raw, "other", "refresh_token")
	require.NoError(t, err)
	_, err = wrong.Get(ctx, "refresh_token")
	require.Error(t, err)
}

func TestSealedRejectsPlaintext(t *testing.T) {
	ctx := context.Background()
	raw := memory.New()
	require.NoError(t, raw.Set(ctx, "refresh_token", "legacy-plain"))

	s, err := credstore.OpenSealed(ctx, raw, "master", "refresh_token")
	require.NoError(t, err)

	_, err = s.Get(ctx, "refresh_token")
	require.ErrorIs(t, err, credstore.ErrNotSealed)
}
