// Package storetest is a behaviour suite shared by all credstore drivers.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/aussiebroadwan/pulsarconsole/internal/credstore"
	"github.com/stretchr/testify/require"
)

// Run exercises a driver. newKV must return an empty store; the suite
// closes it.
func Run(t *testing.T, newKV func(t *testing.T) credstore.KV) {
	t.Helper()

	open := func(t *testing.T) credstore.KV {
		kv := newKV(t)
		t.Cleanup(func() { _ = kv.Close() })
		return kv
	}

	t.Run("GetMissing", func(t *testing.T) {
		kv := open(t)
		_, err := kv.Get(context.Background(), "access_token")
		require.ErrorIs(t, err, credstore.ErrNotFound)
	})

	t.Run("SetGetOverwrite", func(t *testing.T) {
		ctx := context.Background()
		kv := open(t)

		require.NoError(t, kv.Set(ctx, "access_token", "a1"))
		v, err := kv.Get(ctx, "access_token")
		require.NoError(t, err)
		require.Equal(t, "a1", v)

		require.NoError(t, kv.Set(ctx, "access_token", "a2"))
		v, err = kv.Get(ctx, "access_token")
		require.NoError(t, err)
		require.Equal(t, "a2", v)
	})

	t.Run("SetManyAndDelete", func(t *testing.T) {
		ctx := context.Background()
		kv := open(t)

		require.NoError(t, kv.SetMany(ctx, map[string]string{
			"access_token":     "a",
			"refresh_token":    "r",
			"token_expires_at": "1700000000000",
			"session_id":       "s",
		}))

		v, err := kv.Get(ctx, "refresh_token")
		require.NoError(t, err)
		require.Equal(t, "r", v)

		require.NoError(t, kv.Delete(ctx, "access_token", "refresh_token", "token_expires_at", "never_set"))

		for _, k := range []string{"access_token", "refresh_token", "token_expires_at"} {
			_, err := kv.Get(ctx, k)
			require.ErrorIs(t, err, credstore.ErrNotFound, k)
		}

		v, err = kv.Get(ctx, "session_id")
		require.NoError(t, err)
		require.Equal(t, "s", v)
	})

	t.Run("EmptyValue", func(t *testing.T) {
		ctx := context.Background()
		kv := open(t)

		require.NoError(t, kv.Set(ctx, "user", ""))
		v, err := kv.Get(ctx, "user")
		require.NoError(t, err)
		require.Equal(t, "", v)
	})

	t.Run("ConcurrentWriters", func(t *testing.T) {
		ctx := context.Background()
		kv := open(t)

		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				key := fmt.Sprintf("k%d", i)
				require.NoError(t, kv.Set(ctx, key, key))
			}()
		}
		wg.Wait()

		for i := range 8 {
			key := fmt.Sprintf("k%d", i)
			v, err := kv.Get(ctx, key)
			require.NoError(t, err)
			require.Equal(t, key, v)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		require.NoError(t, open(t).Ping(context.Background()))
	})
}
