package steph

import (
	"context"
	"log/slog"

	"github.com/vito/steph/pkg/types"
)

// Checker assigns a type to every node of a tree. Types are memoized in a
// side table keyed by node, so each node is typed once no matter how many
// times it is reached through shared or cyclic references.
type Checker struct {
	types map[Node]types.Type
}

func NewChecker() *Checker {
	return &Checker{types: map[Node]types.Type{}}
}

// Infer returns the memoized type of n, computing it in env if needed.
func (c *Checker) Infer(ctx context.Context, n Node, env types.TypeEnv) (types.Type, error) {
	if t, ok := c.types[n]; ok {
		return t, nil
	}
	t, err := n.Infer(ctx, c, env)
	if err != nil {
		return nil, err
	}
	c.types[n] = t
	return t, nil
}

// inferAssuming types n while every nested occurrence of n is assumed to have
// type assumed. This is how a recursive binding is typed: its value reaches
// itself through the cycle created by the let rewrite.
func (c *Checker) inferAssuming(ctx context.Context, n Node, env types.TypeEnv, assumed types.Type) (types.Type, error) {
	if t, ok := c.types[n]; ok {
		return t, nil
	}
	c.types[n] = assumed
	t, err := n.Infer(ctx, c, env)
	if err != nil {
		delete(c.types, n)
		return nil, err
	}
	c.types[n] = t
	return t, nil
}

// TypeOf returns the type the checker assigned to n.
func (c *Checker) TypeOf(n Node) (types.Type, bool) {
	t, ok := c.types[n]
	return t, ok
}

// Program is a type-checked tree, ready to be evaluated any number of times.
type Program struct {
	Root Node
	Type types.Type

	checker *Checker
}

// Check types root against env, which gives a type to every name the tree
// expects the evaluation scope to provide.
func Check(ctx context.Context, root Node, env types.TypeEnv) (*Program, error) {
	checker := NewChecker()
	t, err := checker.Infer(ctx, root, env)
	if err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "type check completed", "type", t)

	return &Program{
		Root:    root,
		Type:    t,
		checker: checker,
	}, nil
}

// TypeOf returns the type assigned to a node of the program.
func (p *Program) TypeOf(n Node) (types.Type, bool) {
	return p.checker.TypeOf(n)
}
