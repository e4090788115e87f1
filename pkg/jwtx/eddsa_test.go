package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/pulsarconsole/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const exampleIssuer = "pulsar-console"

func TestEdDSASignAndVerify(t *testing.T) {
	kid := "test-key-eddsa"

	signer, err := jwtx.NewEdDSASigner(kid)
	require.NoError(t, err)
	require.Equal(t, "EdDSA", signer.Alg())
	require.Equal(t, kid, signer.KID())

	now := time.Now().UTC()
	claims := jwtx.NewAccessClaims("user-456", "session-eddsa1", "eddsa@example.com", exampleIssuer, true, 5*time.Minute, now)

	token, err := signer.Sign(claims)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	verifier := jwtx.NewEdDSAVerifier(signer, exampleIssuer)
	got, err := verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-456", got.Subject)
	require.Equal(t, "session-eddsa1", got.SID)
	require.Equal(t, "eddsa@example.com", got.Email)
	require.True(t, got.GlobalAdmin)
	require.NotEmpty(t, got.ID)
}

func TestEdDSAVerifyRejects(t *testing.T) {
	signer, err := jwtx.NewEdDSASigner("k1")
	require.NoError(t, err)
	other, err := jwtx.NewEdDSASigner("k1")
	require.NoError(t, err)

	now := time.Now()
	token, err := signer.Sign(jwtx.NewAccessClaims("u", "s", "", exampleIssuer, false, time.Minute, now))
	require.NoError(t, err)

	t.Run("wrong key", func(t *testing.T) {
		_, err := jwtx.NewEdDSAVerifier(other, exampleIssuer).Verify(token)
		require.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		_, err := jwtx.NewEdDSAVerifier(signer, "someone-else").Verify(token)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("expired", func(t *testing.T) {
		v := jwtx.NewEdDSAVerifier(signer, exampleIssuer).WithClock(func() time.Time {
			return now.Add(2 * time.Minute)
		})
		_, err := v.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("tampered", func(t *testing.T) {
		_, err := jwtx.NewEdDSAVerifier(signer, exampleIssuer).Verify(token + "x")
		require.Error(t, err)
	})
}
