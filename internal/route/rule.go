package route

import (
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/relaymesh/apigw/internal/config"
)

// Rule is one compiled allow-list entry.
type Rule struct {
	Service       string
	PathPrefix    string
	RequiresAuth  bool
	RequiredRoles []string

	methods   map[string]bool
	condition cel.Program
}

// newRule compiles a config route into a Rule.
func newRule(rc *config.RouteConfig, env *cel.Env) (*Rule, error) {
	methods := make(map[string]bool, len(rc.Methods))
	for _, m := range rc.Methods {
		methods[strings.ToUpper(m)] = true
	}

	r := &Rule{
		Service:       rc.Service,
		PathPrefix:    rc.PathPrefix,
		RequiresAuth:  rc.RequiresAuth,
		RequiredRoles: rc.RequiredRoles,
		methods:       methods,
	}

	if rc.Condition != "" {
		prog, err := compileCondition(env, rc.Condition)
		if err != nil {
			return nil, err
		}
		r.condition = prog
	}

	return r, nil
}

// matches reports whether the rule admits the given request attributes.
// Service comparison is case-sensitive, method is case-insensitive, and
// the path prefix check is ordinal.
func (r *Rule) matches(service, method, path string) bool {
	if r.Service != service {
		return false
	}
	if !r.methods[strings.ToUpper(method)] {
		return false
	}
	return strings.HasPrefix(path, r.PathPrefix)
}
