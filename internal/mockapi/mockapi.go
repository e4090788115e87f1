package mockapi

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/pulsarconsole/pkg/jwtx"
)

// Options configures New. Zero values are usable.
type Options struct {
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// AuthDisabled makes GET /auth/providers report auth_required=false.
	AuthDisabled bool

	Identities []Identity
	Catalog    *Catalog
	Limits     Limits

	Version string
	Logger  *slog.Logger
}

// New builds a ready-to-serve mock backend with a fresh signing key.
func New(opts Options) (*Router, error) {
	if opts.Issuer == "" {
		opts.Issuer = "pulsarconsole-mock"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	signer, err := jwtx.NewEdDSASigner("mock-1")
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}

	svc := NewService(signer, opts.Issuer, opts.Identities)
	if opts.AccessTTL > 0 {
		svc.AccessTTL = opts.AccessTTL
	}
	if opts.RefreshTTL > 0 {
		svc.RefreshTTL = opts.RefreshTTL
	}
	svc.AuthRequired = !opts.AuthDisabled

	verifier := jwtx.NewEdDSAVerifier(signer, opts.Issuer)

	r := NewRouter(svc, verifier, opts.Catalog, opts.Limits, opts.Version, opts.Logger)
	r.ApplyRoutes()
	return r, nil
}
