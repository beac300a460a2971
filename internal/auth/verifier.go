package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/relaymesh/apigw/internal/config"
	"github.com/relaymesh/apigw/internal/observability"
	"github.com/relaymesh/apigw/internal/route"
)

// jwksMinRefreshInterval bounds how often the JWKS endpoint is polled.
const jwksMinRefreshInterval = 15 * time.Minute

// Verifier validates JWTs against the configured key source and
// extracts the identity they assert. It implements route.TokenVerifier.
type Verifier struct {
	rolesClaim string
	secretKey  jwk.Key
	keySet     jwk.Set
	logger     observability.Logger
}

// VerifierOption is a functional option for the verifier.
type VerifierOption func(*Verifier)

// WithVerifierLogger sets the logger.
func WithVerifierLogger(logger observability.Logger) VerifierOption {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// NewVerifier creates a verifier from the auth configuration. When a
// JWKS URL is configured the key set is fetched and refreshed in the
// background for the lifetime of ctx; a static secret enables HS256
// verification instead.
func NewVerifier(ctx context.Context, cfg *config.AuthConfig, opts ...VerifierOption) (*Verifier, error) {
	if cfg == nil || (cfg.Secret == "" && cfg.JWKSURL == "") {
		return nil, ErrNoKeySource
	}

	v := &Verifier{
		rolesClaim: cfg.RolesClaim,
		logger:     observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.rolesClaim == "" {
		v.rolesClaim = "roles"
	}

	if cfg.JWKSURL != "" {
		cache := jwk.NewCache(ctx)
		if err := cache.Register(cfg.JWKSURL, jwk.WithMinRefreshInterval(jwksMinRefreshInterval)); err != nil {
			return nil, fmt.Errorf("failed to register JWKS endpoint: %w", err)
		}
		if _, err := cache.Refresh(ctx, cfg.JWKSURL); err != nil {
			return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", cfg.JWKSURL, err)
		}
		v.keySet = jwk.NewCachedSet(cache, cfg.JWKSURL)
	} else {
		key, err := jwk.FromRaw([]byte(cfg.Secret))
		if err != nil {
			return nil, fmt.Errorf("failed to build HMAC key: %w", err)
		}
		v.secretKey = key
	}

	return v, nil
}

// Verify parses and validates a token, returning the identity it
// asserts. Expiry and not-before are checked during validation.
func (v *Verifier) Verify(ctx context.Context, token string) (*route.Identity, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	parseOpts := []jwt.ParseOption{
		jwt.WithContext(ctx),
		jwt.WithValidate(true),
	}
	if v.keySet != nil {
		parseOpts = append(parseOpts, jwt.WithKeySet(v.keySet, jws.WithInferAlgorithmFromKey(true)))
	} else {
		parseOpts = append(parseOpts, jwt.WithKey(jwa.HS256, v.secretKey))
	}

	tok, err := jwt.Parse([]byte(token), parseOpts...)
	if err != nil {
		v.logger.Debug("token validation failed", observability.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	identity := &route.Identity{
		Subject: tok.Subject(),
		Roles:   v.extractRoles(tok),
	}

	v.logger.Debug("token verified",
		observability.String("subject", identity.Subject),
		observability.Int("roles", len(identity.Roles)),
	)

	return identity, nil
}

// extractRoles reads the roles claim. Both a string list and a
// comma-separated string are accepted.
func (v *Verifier) extractRoles(tok jwt.Token) []string {
	raw, ok := tok.Get(v.rolesClaim)
	if !ok {
		return nil
	}

	switch value := raw.(type) {
	case []string:
		return value
	case []interface{}:
		roles := make([]string, 0, len(value))
		for _, item := range value {
			if s, ok := item.(string); ok {
				roles = append(roles, s)
			}
		}
		return roles
	case string:
		if value == "" {
			return nil
		}
		parts := strings.Split(value, ",")
		roles := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				roles = append(roles, trimmed)
			}
		}
		return roles
	default:
		return nil
	}
}

var _ route.TokenVerifier = (*Verifier)(nil)
