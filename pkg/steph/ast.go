package steph

import (
	"context"
	"maps"
	"slices"

	"github.com/vito/steph/pkg/types"
)

type Node interface {
	SourceLocatable

	// Names returns the free names referenced by this subtree.
	Names() Names

	// Children returns the node's children in their fixed order. A child may
	// be shared with another part of the tree after a let binding rewrites
	// references to itself.
	Children() []Node

	// Infer computes the node's own type. Children are typed through the
	// Checker so that every node is typed at most once.
	Infer(ctx context.Context, c *Checker, env types.TypeEnv) (types.Type, error)

	// Eval evaluates the node against a scope that binds every free name.
	Eval(ctx context.Context, env types.Scope) (types.Value, error)

	replaceChild(i int, n Node)
	forget(name string)
	remember(names Names)
}

// Names is a set of identifiers.
type Names map[string]struct{}

func NewNames(names ...string) Names {
	set := make(Names, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func (ns Names) Has(name string) bool {
	_, ok := ns[name]
	return ok
}

// Sorted returns the names in lexical order.
func (ns Names) Sorted() []string {
	return slices.Sorted(maps.Keys(ns))
}

func unionNames(sets ...Names) Names {
	union := Names{}
	for _, s := range sets {
		maps.Copy(union, s)
	}
	return union
}

func withoutNames(set Names, names ...string) Names {
	rest := maps.Clone(set)
	if rest == nil {
		rest = Names{}
	}
	for _, n := range names {
		delete(rest, n)
	}
	return rest
}

// node is embedded by every AST node.
type node struct {
	Loc  *SourceLocation
	free Names
	kids []Node
}

func newNode(loc *SourceLocation, free Names, kids ...Node) node {
	if free == nil {
		free = Names{}
	}
	return node{Loc: loc, free: free, kids: kids}
}

func (n *node) GetSourceLocation() *SourceLocation { return n.Loc }

func (n *node) Names() Names { return n.free }

func (n *node) Children() []Node { return n.kids }

func (n *node) replaceChild(i int, child Node) { n.kids[i] = child }

func (n *node) forget(name string) { delete(n.free, name) }

func (n *node) remember(names Names) { maps.Copy(n.free, names) }

// Walk visits n and its descendants depth first, calling fn for each node.
// Returning false from fn skips the node's children. Shared nodes are
// visited once.
func Walk(n Node, fn func(Node) bool) {
	seen := map[Node]bool{}
	var walk func(Node)
	walk = func(n Node) {
		if seen[n] {
			return
		}
		seen[n] = true
		if !fn(n) {
			return
		}
		for _, child := range n.Children() {
			walk(child)
		}
	}
	walk(n)
}
