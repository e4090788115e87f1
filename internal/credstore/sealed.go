package credstore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/pulsarconsole/pkg/cryptox"
)

// SaltKey holds the per-store salt used to derive the sealing key.
const SaltKey = "seal_salt"

const sealedPrefix = "sealed:v1:"

var ErrNotSealed = errors.New("credstore: value is not sealed")

// Sealed wraps a KV and encrypts the values of selected keys at rest.
// Other keys pass through untouched.
type Sealed struct {
	kv     KV
	sealer *cryptox.Sealer
	keys   map[string]struct{}
}

// OpenSealed loads the store salt from kv, creating it on first use, and
// derives the sealing key from passphrase. Only the listed keys are sealed.
func OpenSealed(ctx context.Context, kv KV, passphrase string, keys ...string) (*Sealed, error) {
	salt, err := kv.Get(ctx, SaltKey)
	if errors.Is(err, ErrNotFound) {
		salt, err = cryptox.GenerateToken(cryptox.TokenSize128)
		if err != nil {
			return nil, err
		}
		if err := kv.Set(ctx, SaltKey, salt); err != nil {
			return nil, fmt.Errorf("store seal salt: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("load seal salt: %w", err)
	}

	sealer, err := cryptox.NewSealer([]byte(passphrase), []byte(salt))
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}

	return &Sealed{kv: kv, sealer: sealer, keys: set}, nil
}

func (s *Sealed) sealed(key string) bool {
	_, ok := s.keys[key]
	return ok
}

func (s *Sealed) seal(value string) (string, error) {
	ct, err := s.sealer.Seal([]byte(value))
	if err != nil {
		return "", err
	}
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(ct), nil
}

func (s *Sealed) open(value string) (string, error) {
	enc, ok := strings.CutPrefix(value, sealedPrefix)
	if !ok {
		return "", ErrNotSealed
	}

	ct, err := base64.RawStdEncoding.DecodeString(enc)
	if err != nil {
		return "", fmt.Errorf("decode sealed value: %w", err)
	}

	pt, err := s.sealer.Open(ct)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

func (s *Sealed) Get(ctx context.Context, key string) (string, error) {
	v, err := s.kv.Get(ctx, key)
	if err != nil || !s.sealed(key) {
		return v, err
	}
	return s.open(v)
}

func (s *Sealed) Set(ctx context.Context, key, value string) error {
	if s.sealed(key) {
		var err error
		if value, err = s.seal(value); err != nil {
			return err
		}
	}
	return s.kv.Set(ctx, key, value)
}

func (s *Sealed) SetMany(ctx context.Context, values map[string]string) error {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if s.sealed(k) {
			sv, err := s.seal(v)
			if err != nil {
				return err
			}
			v = sv
		}
		out[k] = v
	}
	return s.kv.SetMany(ctx, out)
}

func (s *Sealed) Delete(ctx context.Context, keys ...string) error {
	return s.kv.Delete(ctx, keys...)
}

func (s *Sealed) Ping(ctx context.Context) error { return s.kv.Ping(ctx) }
func (s *Sealed) Close() error                   { return s.kv.Close() }
