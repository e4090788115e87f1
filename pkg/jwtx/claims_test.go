package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/pulsarconsole/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestValidateIssuer(t *testing.T) {
	c := &jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "pulsar-console",
		},
	}

	t.Run("matching issuer", func(t *testing.T) {
		require.NoError(t, c.ValidateIssuer("pulsar-console"))
	})

	t.Run("empty expected issuer", func(t *testing.T) {
		require.NoError(t, c.ValidateIssuer(""))
	})

	t.Run("mismatched issuer", func(t *testing.T) {
		err := c.ValidateIssuer("other")
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})
}

func TestValidateExpiryAt(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	c := &jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			NotBefore: jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	}

	require.NoError(t, c.ValidateExpiryAt(now))
	require.ErrorIs(t, c.ValidateExpiryAt(now.Add(time.Minute)), jwtx.ErrExpired)
	require.ErrorIs(t, c.ValidateExpiryAt(now.Add(-2*time.Minute)), jwtx.ErrNotYetValid)
}

func TestPeekExpiry(t *testing.T) {
	signer, err := jwtx.NewEdDSASigner("peek")
	require.NoError(t, err)

	now := time.Unix(1_700_000_000, 0)
	claims := jwtx.NewAccessClaims("user-1", "sid-1", "u@example.com", "pulsar-console", false, 10*time.Minute, now)

	token, err := signer.Sign(claims)
	require.NoError(t, err)

	exp, err := jwtx.PeekExpiry(token)
	require.NoError(t, err)
	require.Equal(t, now.Add(10*time.Minute).Unix(), exp.Unix())

	t.Run("garbage", func(t *testing.T) {
		_, err := jwtx.PeekExpiry("not-a-jwt")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})

	t.Run("no exp claim", func(t *testing.T) {
		noExp := claims
		noExp.ExpiresAt = nil
		tok, err := signer.Sign(noExp)
		require.NoError(t, err)

		_, err = jwtx.PeekExpiry(tok)
		require.ErrorIs(t, err, jwtx.ErrNoExpiry)
	})
}
