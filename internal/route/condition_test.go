package route

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaymesh/apigw/internal/config"
)

func TestConditionEvaluation(t *testing.T) {
	routes := []config.RouteConfig{
		{
			Service:    "users",
			Methods:    []string{"GET"},
			PathPrefix: "/api/users",
			Condition:  `headers["X-Tenant"] == "acme"`,
		},
	}
	authorizer, err := NewAuthorizer(routes)
	require.NoError(t, err)

	t.Run("condition satisfied", func(t *testing.T) {
		decision := authorizer.Authorize(context.Background(), &Request{
			Service: "users",
			Method:  "GET",
			Path:    "/api/users/1",
			Headers: map[string]string{"X-Tenant": "acme"},
		})
		assert.True(t, decision.Allowed)
	})

	t.Run("condition not satisfied", func(t *testing.T) {
		decision := authorizer.Authorize(context.Background(), &Request{
			Service: "users",
			Method:  "GET",
			Path:    "/api/users/1",
			Headers: map[string]string{"X-Tenant": "other"},
		})
		assert.False(t, decision.Allowed)
		assert.Equal(t, http.StatusForbidden, decision.StatusCode)
	})

	t.Run("missing header denies", func(t *testing.T) {
		decision := authorizer.Authorize(context.Background(), &Request{
			Service: "users",
			Method:  "GET",
			Path:    "/api/users/1",
		})
		assert.False(t, decision.Allowed)
	})
}

func TestConditionSeesRequestAttributes(t *testing.T) {
	routes := []config.RouteConfig{
		{
			Service:    "orders",
			Methods:    []string{"GET", "DELETE"},
			PathPrefix: "/api/orders",
			Condition:  `method == "GET" || path.startsWith("/api/orders/drafts")`,
		},
	}
	authorizer, err := NewAuthorizer(routes)
	require.NoError(t, err)

	decision := authorizer.Authorize(context.Background(), &Request{
		Service: "orders", Method: "GET", Path: "/api/orders/42",
	})
	assert.True(t, decision.Allowed)

	decision = authorizer.Authorize(context.Background(), &Request{
		Service: "orders", Method: "DELETE", Path: "/api/orders/drafts/42",
	})
	assert.True(t, decision.Allowed)

	decision = authorizer.Authorize(context.Background(), &Request{
		Service: "orders", Method: "DELETE", Path: "/api/orders/42",
	})
	assert.False(t, decision.Allowed)
}

func TestConditionCompileErrors(t *testing.T) {
	tests := []struct {
		name      string
		condition string
	}{
		{
			name:      "syntax error",
			condition: `headers[`,
		},
		{
			name:      "unknown variable",
			condition: `tenant == "acme"`,
		},
		{
			name:      "non-boolean result",
			condition: `path`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAuthorizer([]config.RouteConfig{{
				Service:    "users",
				Methods:    []string{"GET"},
				PathPrefix: "/api/users",
				Condition:  tt.condition,
			}})
			assert.Error(t, err)
		})
	}
}
