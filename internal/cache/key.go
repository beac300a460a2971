package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// keyLength is the number of hex characters a cache key carries.
const keyLength = 16

// sensitiveHeaders are excluded from key canonicalization so that
// per-caller credentials never influence response identity.
var sensitiveHeaders = map[string]bool{
	"authorization": true,
	"cookie":        true,
	"x-api-key":     true,
	"x-auth-token":  true,
}

// KeyInput carries the request attributes a cache key is derived from.
type KeyInput struct {
	Service string
	Method  string
	Path    string
	Query   map[string][]string
	Headers map[string]string
}

// GenerateKey builds a deterministic cache key for a request: a
// canonical string is assembled from the lower-cased service, method
// and path, the query parameters sorted by name, and the headers
// sorted by lower-cased name with the sensitive set removed, then
// hashed with SHA-256. The first 16 hex characters of the digest are
// the key, so identical logical requests always map to the same key
// regardless of casing or map ordering.
func GenerateKey(in KeyInput) string {
	var b strings.Builder

	b.WriteString(strings.ToLower(in.Service))
	b.WriteByte('\n')
	b.WriteString(strings.ToLower(in.Method))
	b.WriteByte('\n')
	b.WriteString(strings.ToLower(in.Path))
	b.WriteByte('\n')
	b.WriteString(canonicalQuery(in.Query))
	b.WriteByte('\n')
	b.WriteString(canonicalHeaders(in.Headers))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:keyLength]
}

// canonicalQuery renders query parameters sorted by name, values in
// their original order under each name.
func canonicalQuery(query map[string][]string) string {
	if len(query) == 0 {
		return ""
	}

	names := make([]string, 0, len(query))
	for name := range query {
		names = append(names, name)
	}
	sort.Strings(names)

	var parts []string
	for _, name := range names {
		for _, value := range query[name] {
			parts = append(parts, name+"="+value)
		}
	}
	return strings.Join(parts, "&")
}

// canonicalHeaders renders headers sorted by lower-cased name with the
// sensitive set removed.
func canonicalHeaders(headers map[string]string) string {
	if len(headers) == 0 {
		return ""
	}

	type pair struct {
		name  string
		value string
	}

	pairs := make([]pair, 0, len(headers))
	for name, value := range headers {
		lower := strings.ToLower(name)
		if sensitiveHeaders[lower] {
			continue
		}
		pairs = append(pairs, pair{name: lower, value: value})
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].name < pairs[j].name
	})

	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.name+"="+p.value)
	}
	return strings.Join(parts, "&")
}
