package route

import (
	"context"
	"net/http"
	"strings"

	"github.com/relaymesh/apigw/internal/config"
	"github.com/relaymesh/apigw/internal/observability"
)

// Request carries the attributes of an inbound request the authorizer
// evaluates. Header names are expected in canonical (textproto) form.
type Request struct {
	Service string
	Method  string
	Path    string
	Headers map[string]string
}

// Decision is the outcome of an authorization check. When Allowed is
// false, StatusCode carries the HTTP status the request should be
// rejected with and Reason a short operator-facing explanation.
type Decision struct {
	Allowed    bool
	StatusCode int
	Reason     string
}

// Identity is the authenticated principal extracted from a verified
// token.
type Identity struct {
	Subject string
	Roles   []string
}

// TokenVerifier validates a bearer token and returns the identity it
// asserts.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// Authorizer matches requests against the configured route allow-list.
// It holds compiled rules and is safe for concurrent use. A request is
// admitted when at least one rule admits it; an empty rule set admits
// nothing.
type Authorizer struct {
	rules    []*Rule
	verifier TokenVerifier
	logger   observability.Logger
}

// Option is a functional option for the authorizer.
type Option func(*Authorizer)

// WithTokenVerifier sets the verifier used for routes that require
// authentication. Without one, such routes reject every request.
func WithTokenVerifier(v TokenVerifier) Option {
	return func(a *Authorizer) {
		a.verifier = v
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(a *Authorizer) {
		a.logger = logger
	}
}

// NewAuthorizer compiles the configured routes into an authorizer.
// Route conditions are compiled once here; a broken condition fails
// construction rather than every request.
func NewAuthorizer(routes []config.RouteConfig, opts ...Option) (*Authorizer, error) {
	a := &Authorizer{
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}

	env, err := newConditionEnv()
	if err != nil {
		return nil, err
	}

	a.rules = make([]*Rule, 0, len(routes))
	for i := range routes {
		rule, err := newRule(&routes[i], env)
		if err != nil {
			return nil, err
		}
		a.rules = append(a.rules, rule)
	}

	return a, nil
}

// IsAllowed reports whether any rule admits the service/method/path
// triple. It consults only the static rule attributes, not
// authentication or conditions.
func (a *Authorizer) IsAllowed(service, method, path string) bool {
	for _, rule := range a.rules {
		if rule.matches(service, method, path) {
			return true
		}
	}
	return false
}

// ResolveService returns the service owning the longest matching path
// prefix among the configured rules. It is used to map an inbound URL
// path to an upstream before the full authorization check runs.
func (a *Authorizer) ResolveService(path string) (string, bool) {
	var (
		best    string
		bestLen = -1
	)
	for _, rule := range a.rules {
		if strings.HasPrefix(path, rule.PathPrefix) && len(rule.PathPrefix) > bestLen {
			best = rule.Service
			bestLen = len(rule.PathPrefix)
		}
	}
	return best, bestLen >= 0
}

// Authorize evaluates the full rule set against a request: static
// matching, then authentication and role checks, then the rule
// condition. The first rule that fully admits the request wins.
func (a *Authorizer) Authorize(ctx context.Context, req *Request) Decision {
	matched := false
	authFailure := Decision{}

	for _, rule := range a.rules {
		if !rule.matches(req.Service, req.Method, req.Path) {
			continue
		}
		matched = true

		if rule.RequiresAuth {
			identity, decision := a.authenticate(ctx, req)
			if !decision.Allowed {
				authFailure = decision
				continue
			}
			if !hasRequiredRole(identity, rule.RequiredRoles) {
				authFailure = Decision{
					Allowed:    false,
					StatusCode: http.StatusForbidden,
					Reason:     "missing required role",
				}
				continue
			}
		}

		if rule.condition != nil && !evalCondition(rule.condition, req) {
			authFailure = Decision{
				Allowed:    false,
				StatusCode: http.StatusForbidden,
				Reason:     "route condition not satisfied",
			}
			continue
		}

		return Decision{Allowed: true}
	}

	if matched {
		return authFailure
	}

	a.logger.Debug("request not in route allow-list",
		observability.String("service", req.Service),
		observability.String("method", req.Method),
		observability.String("path", req.Path),
	)

	return Decision{
		Allowed:    false,
		StatusCode: http.StatusForbidden,
		Reason:     "no route matches request",
	}
}

// authenticate extracts and verifies the bearer token on the request.
func (a *Authorizer) authenticate(ctx context.Context, req *Request) (*Identity, Decision) {
	token := bearerToken(req.Headers)
	if token == "" {
		return nil, Decision{
			Allowed:    false,
			StatusCode: http.StatusUnauthorized,
			Reason:     "missing bearer token",
		}
	}

	if a.verifier == nil {
		return nil, Decision{
			Allowed:    false,
			StatusCode: http.StatusUnauthorized,
			Reason:     "authentication not configured",
		}
	}

	identity, err := a.verifier.Verify(ctx, token)
	if err != nil {
		a.logger.Debug("token verification failed", observability.Error(err))
		return nil, Decision{
			Allowed:    false,
			StatusCode: http.StatusUnauthorized,
			Reason:     "invalid token",
		}
	}

	return identity, Decision{Allowed: true}
}

// bearerToken extracts the token from an Authorization header.
func bearerToken(headers map[string]string) string {
	for name, value := range headers {
		if !strings.EqualFold(name, "Authorization") {
			continue
		}
		const prefix = "Bearer "
		if len(value) > len(prefix) && strings.EqualFold(value[:len(prefix)], prefix) {
			return value[len(prefix):]
		}
	}
	return ""
}

// hasRequiredRole reports whether the identity carries at least one of
// the required roles. An empty requirement always passes.
func hasRequiredRole(identity *Identity, required []string) bool {
	if len(required) == 0 {
		return true
	}
	if identity == nil {
		return false
	}
	for _, want := range required {
		for _, have := range identity.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}
