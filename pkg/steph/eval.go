package steph

import (
	"context"
	"log/slog"

	"github.com/vito/steph/pkg/types"
)

type checkerKey struct{}
type maxDepthKey struct{}
type callDepthKey struct{}

func withChecker(ctx context.Context, c *Checker) context.Context {
	return context.WithValue(ctx, checkerKey{}, c)
}

// checkerFromContext returns the checker that typed the code being
// evaluated, or nil when evaluation was not started from a checked Program.
func checkerFromContext(ctx context.Context) *Checker {
	c, _ := ctx.Value(checkerKey{}).(*Checker)
	return c
}

// WithMaxDepth limits how deeply function calls may nest during evaluation.
// A limit of zero or less means no limit.
func WithMaxDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, maxDepthKey{}, depth)
}

// enterCall accounts for one more nested call, failing if the context is
// done or the depth limit is reached.
func enterCall(ctx context.Context) (context.Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	depth, _ := ctx.Value(callDepthKey{}).(int)
	depth++
	if limit, _ := ctx.Value(maxDepthKey{}).(int); limit > 0 && depth > limit {
		return nil, &DepthError{Limit: limit}
	}
	return context.WithValue(ctx, callDepthKey{}, depth), nil
}

// Eval evaluates the program. scope must bind every free name of the
// program's root.
func (p *Program) Eval(ctx context.Context, scope types.Scope) (types.Value, error) {
	for _, name := range p.Root.Names().Sorted() {
		if _, ok := scope.Lookup(name); !ok {
			return nil, &EvalError{
				Inner:    &UnboundNameError{Name: name},
				Location: p.Root.GetSourceLocation(),
			}
		}
	}

	val, err := p.Root.Eval(withChecker(ctx, p.checker), scope)
	if err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "evaluated", "value", val)
	return val, nil
}

// Evaluate type checks root against the types of scope's values and
// evaluates it.
func Evaluate(ctx context.Context, root Node, scope types.Scope) (types.Value, error) {
	env := map[string]types.Type{}
	for name, val := range scope.Flatten() {
		env[name] = val.Type()
	}
	prog, err := Check(ctx, root, types.NewEnv(env))
	if err != nil {
		return nil, err
	}
	return prog.Eval(ctx, scope)
}
