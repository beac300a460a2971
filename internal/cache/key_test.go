package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func baseKeyInput() KeyInput {
	return KeyInput{
		Service: "users",
		Method:  "GET",
		Path:    "/api/users/123",
		Query: map[string][]string{
			"page":  {"1"},
			"limit": {"20"},
		},
		Headers: map[string]string{
			"Accept":     "application/json",
			"X-Tenant":   "acme",
			"User-Agent": "test",
		},
	}
}

func TestGenerateKeyLength(t *testing.T) {
	key := GenerateKey(baseKeyInput())
	assert.Len(t, key, 16)
	assert.Regexp(t, "^[0-9a-f]{16}$", key)
}

func TestGenerateKeyDeterminism(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*KeyInput)
	}{
		{
			name:   "identical input",
			mutate: func(*KeyInput) {},
		},
		{
			name: "method casing",
			mutate: func(in *KeyInput) {
				in.Method = "get"
			},
		},
		{
			name: "service casing",
			mutate: func(in *KeyInput) {
				in.Service = "Users"
			},
		},
		{
			name: "path casing",
			mutate: func(in *KeyInput) {
				in.Path = "/API/Users/123"
			},
		},
		{
			name: "header name casing",
			mutate: func(in *KeyInput) {
				in.Headers = map[string]string{
					"accept":     "application/json",
					"x-tenant":   "acme",
					"USER-AGENT": "test",
				}
			},
		},
	}

	want := GenerateKey(baseKeyInput())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseKeyInput()
			tt.mutate(&in)
			assert.Equal(t, want, GenerateKey(in))
		})
	}
}

func TestGenerateKeySensitiveHeadersExcluded(t *testing.T) {
	want := GenerateKey(baseKeyInput())

	sensitive := []string{
		"Authorization", "authorization", "AUTHORIZATION",
		"Cookie", "X-Api-Key", "X-Auth-Token", "x-auth-token",
	}
	for _, name := range sensitive {
		t.Run(name, func(t *testing.T) {
			in := baseKeyInput()
			in.Headers[name] = "secret-value"
			assert.Equal(t, want, GenerateKey(in))
		})
	}
}

func TestGenerateKeyDiscrimination(t *testing.T) {
	base := GenerateKey(baseKeyInput())

	tests := []struct {
		name   string
		mutate func(*KeyInput)
	}{
		{
			name: "different service",
			mutate: func(in *KeyInput) {
				in.Service = "orders"
			},
		},
		{
			name: "different method",
			mutate: func(in *KeyInput) {
				in.Method = "POST"
			},
		},
		{
			name: "different path",
			mutate: func(in *KeyInput) {
				in.Path = "/api/users/124"
			},
		},
		{
			name: "different query value",
			mutate: func(in *KeyInput) {
				in.Query["page"] = []string{"2"}
			},
		},
		{
			name: "extra query parameter",
			mutate: func(in *KeyInput) {
				in.Query["sort"] = []string{"name"}
			},
		},
		{
			name: "different retained header",
			mutate: func(in *KeyInput) {
				in.Headers["X-Tenant"] = "globex"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseKeyInput()
			tt.mutate(&in)
			assert.NotEqual(t, base, GenerateKey(in))
		})
	}
}

func TestGenerateKeyEmptyQueryAndHeaders(t *testing.T) {
	in := KeyInput{Service: "users", Method: "GET", Path: "/api/users"}
	nilMaps := GenerateKey(in)

	in.Query = map[string][]string{}
	in.Headers = map[string]string{}
	emptyMaps := GenerateKey(in)

	assert.Equal(t, nilMaps, emptyMaps)
}
