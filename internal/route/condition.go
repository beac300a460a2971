package route

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// newConditionEnv creates the CEL environment route conditions are
// compiled against. Conditions see the request attributes plus the
// matched service name.
func newConditionEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("service", cel.StringType),
		cel.Variable("method", cel.StringType),
		cel.Variable("path", cel.StringType),
		cel.Variable("headers", cel.MapType(cel.StringType, cel.StringType)),
	)
}

// compileCondition compiles a condition expression into a program.
// The expression must produce a boolean.
func compileCondition(env *cel.Env, expression string) (cel.Program, error) {
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile condition %q: %w", expression, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("condition %q must evaluate to bool, got %s", expression, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create condition program: %w", err)
	}
	return program, nil
}

// evalCondition evaluates a compiled condition against a request.
// Evaluation errors deny the request.
func evalCondition(program cel.Program, req *Request) bool {
	headers := make(map[string]string, len(req.Headers))
	for k, v := range req.Headers {
		headers[k] = v
	}

	result, _, err := program.Eval(map[string]interface{}{
		"service": req.Service,
		"method":  req.Method,
		"path":    req.Path,
		"headers": headers,
	})
	if err != nil {
		return false
	}

	allowed, ok := result.Value().(bool)
	return ok && allowed
}
