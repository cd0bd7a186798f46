package steph

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/vito/steph/pkg/types"
)

// Reference looks up a name in the enclosing scope.
type Reference struct {
	node
	Name string
}

var _ Node = (*Reference)(nil)

func NewReference(loc *SourceLocation, name string) *Reference {
	return &Reference{node: newNode(loc, NewNames(name)), Name: name}
}

func (r *Reference) Infer(ctx context.Context, c *Checker, env types.TypeEnv) (types.Type, error) {
	t, ok := env.Lookup(r.Name)
	if !ok {
		return nil, NewTypeError(fmt.Errorf("unknown name %q", r.Name), r)
	}
	return t, nil
}

func (r *Reference) Eval(ctx context.Context, env types.Scope) (types.Value, error) {
	return withEvalErrorHandling(ctx, r, func() (types.Value, error) {
		val, ok := env.Lookup(r.Name)
		if !ok {
			return nil, &UnboundNameError{Name: r.Name}
		}
		return val, nil
	})
}

// Let binds a name to an expression. At construction every reference to
// the name inside the expression is replaced by the expression itself, so a
// recursive binding becomes a cycle in the tree instead of a scope entry.
type Let struct {
	node
	Name     string
	Declared types.Type // nil when the binding has no annotation

	recursive bool
}

var _ Node = (*Let)(nil)

func NewLet(loc *SourceLocation, name string, declared types.Type, value Node) (*Let, error) {
	if ref, ok := value.(*Reference); ok && ref.Name == name {
		return nil, NewParseError(loc, "binding %s is defined as itself", name)
	}

	recursive := value.Names().Has(name)
	if recursive && declared == nil {
		return nil, NewParseError(loc, "recursive binding %s requires a type annotation", name)
	}

	outer := withoutNames(value.Names(), name)
	let := &Let{
		node:      newNode(loc, maps.Clone(outer), value),
		Name:      name,
		Declared:  declared,
		recursive: recursive,
	}

	if fn, ok := value.(*Function); ok && fn.Name == "" {
		fn.Name = name
	}

	if recursive {
		if _, err := let.fixUp(value, outer, false, nil); err != nil {
			return nil, err
		}
	}

	return let, nil
}

func (l *Let) Value() Node { return l.kids[0] }

// Recursive reports whether the bound expression refers to the binding.
func (l *Let) Recursive() bool { return l.recursive }

// fixUp points every reference to l.Name below n at l's value. Nodes that
// bind the same name shadow it and are left alone. The name is dropped from
// each visited node's free names, which also keeps the walk from entering
// the same node twice once cycles appear. Every node between n and a
// replaced reference gains outer, the free names of the value, so closures
// created there capture what the value needs.
//
// A self-reference must sit inside a function clause; anywhere else it
// would be evaluated while the binding itself is still being evaluated. It
// must also not sit below a binding of one of the outer names, since the
// value would then close over the wrong binding. hidden holds the outer
// names already rebound above n.
func (l *Let) fixUp(n Node, outer Names, inClause bool, hidden []string) (bool, error) {
	n.forget(l.Name)
	replaced := false
	for i, child := range n.Children() {
		if !child.Names().Has(l.Name) {
			continue
		}
		delayed := inClause
		rebound := append(slices.Clip(hidden), rebinds(n, i, outer)...)
		switch c := child.(type) {
		case *Reference:
			if c.Name == l.Name {
				if !inClause {
					return false, NewParseError(c.GetSourceLocation(), "binding %s refers to itself outside of a function", l.Name)
				}
				if len(rebound) > 0 {
					return false, NewParseError(c.GetSourceLocation(), "binding %s refers to itself where %s is rebound", l.Name, strings.Join(slices.Compact(slices.Sorted(slices.Values(rebound))), ", "))
				}
				n.replaceChild(i, l.Value())
				replaced = true
				continue
			}
		case *Let:
			if c.Name == l.Name {
				continue
			}
		case *FunctionPiece:
			if c.Binds(l.Name) {
				continue
			}
			delayed = true
		}
		ok, err := l.fixUp(child, outer, delayed, rebound)
		if err != nil {
			return false, err
		}
		replaced = replaced || ok
	}
	if replaced {
		n.remember(outer)
	}
	return replaced, nil
}

// rebinds returns the names in outer that n binds for its i'th child.
func rebinds(n Node, i int, outer Names) []string {
	var bound []string
	switch b := n.(type) {
	case *Block:
		for _, let := range b.Lets() {
			bound = append(bound, let.Name)
		}
	case *FunctionPiece:
		if i == len(b.kids)-1 {
			for _, arg := range b.Args {
				bound = append(bound, arg.ArgName())
			}
		}
	}
	return slices.DeleteFunc(bound, func(name string) bool {
		return !outer.Has(name)
	})
}

func (l *Let) Infer(ctx context.Context, c *Checker, env types.TypeEnv) (types.Type, error) {
	return withTypeErrorHandling(l, func() (types.Type, error) {
		if l.Declared == nil {
			return c.Infer(ctx, l.Value(), env)
		}

		inner := env.Bind(l.Name, l.Declared)

		var actual types.Type
		var err error
		if l.recursive {
			actual, err = c.inferAssuming(ctx, l.Value(), inner, l.Declared)
		} else {
			actual, err = c.Infer(ctx, l.Value(), inner)
		}
		if err != nil {
			return nil, err
		}

		if l.recursive && !actual.Eq(l.Declared) || !types.Assignable(l.Declared, actual) {
			return nil, fmt.Errorf("binding %s is declared as %s but has type %s", l.Name, l.Declared, actual)
		}

		return l.Declared, nil
	})
}

func (l *Let) Eval(ctx context.Context, env types.Scope) (types.Value, error) {
	return l.Value().Eval(ctx, env)
}

// Block evaluates a sequence of lets followed by a result expression. Lets
// may refer to their siblings; they are evaluated in dependency order.
type Block struct {
	node

	order []int
}

var _ Node = (*Block)(nil)

func NewBlock(loc *SourceLocation, lets []*Let, result Node) (*Block, error) {
	kids := make([]Node, 0, len(lets)+1)
	free := make([]Names, 0, len(lets)+1)
	letNames := make([]string, 0, len(lets))
	for _, let := range lets {
		if slices.Contains(letNames, let.Name) {
			return nil, NewParseError(let.GetSourceLocation(), "repeated binding name %s", let.Name)
		}
		letNames = append(letNames, let.Name)
		kids = append(kids, let)
		free = append(free, let.Names())
	}
	kids = append(kids, result)
	free = append(free, result.Names())

	order, err := orderByDependencies(lets)
	if err != nil {
		return nil, NewParseError(loc, "%s", err)
	}

	return &Block{
		node:  newNode(loc, withoutNames(unionNames(free...), letNames...), kids...),
		order: order,
	}, nil
}

// Lets returns the block's bindings in source order.
func (b *Block) Lets() []*Let {
	lets := make([]*Let, len(b.kids)-1)
	for i := range lets {
		lets[i] = b.kids[i].(*Let)
	}
	return lets
}

func (b *Block) Result() Node { return b.kids[len(b.kids)-1] }

func (b *Block) Infer(ctx context.Context, c *Checker, env types.TypeEnv) (types.Type, error) {
	return withTypeErrorHandling(b, func() (types.Type, error) {
		lets := b.Lets()
		inner := env
		for _, i := range b.order {
			t, err := c.Infer(ctx, lets[i], inner)
			if err != nil {
				return nil, err
			}
			inner = inner.Bind(lets[i].Name, t)
		}
		return c.Infer(ctx, b.Result(), inner)
	})
}

func (b *Block) Eval(ctx context.Context, env types.Scope) (types.Value, error) {
	lets := b.Lets()
	inner := env
	for _, i := range b.order {
		val, err := lets[i].Eval(ctx, inner)
		if err != nil {
			return nil, err
		}
		inner = inner.Bind(lets[i].Name, val)
	}
	return b.Result().Eval(ctx, inner)
}

// orderByDependencies sorts sibling lets so that every let comes after the
// siblings it refers to, keeping source order otherwise.
func orderByDependencies(lets []*Let) ([]int, error) {
	declared := make(map[string]int, len(lets))
	for i, let := range lets {
		declared[let.Name] = i
	}

	dependencies := make([][]int, len(lets))
	for i, let := range lets {
		for _, name := range let.Names().Sorted() {
			if dep, ok := declared[name]; ok && dep != i {
				dependencies[i] = append(dependencies[i], dep)
			}
		}
	}

	return topologicalSort(lets, dependencies)
}

// topologicalSort performs Kahn's algorithm, visiting ready lets in source
// order.
func topologicalSort(lets []*Let, dependencies [][]int) ([]int, error) {
	n := len(lets)
	inDegree := make([]int, n)
	for dependent, deps := range dependencies {
		inDegree[dependent] = len(deps)
	}

	done := make([]bool, n)
	order := make([]int, 0, n)
	for len(order) < n {
		next := -1
		for i := range n {
			if !done[i] && inDegree[i] == 0 {
				next = i
				break
			}
		}
		if next == -1 {
			var cycle []string
			for i := range n {
				if !done[i] {
					cycle = append(cycle, lets[i].Name)
				}
			}
			return nil, fmt.Errorf("circular dependency between bindings %s", strings.Join(cycle, ", "))
		}

		done[next] = true
		order = append(order, next)
		for dependent, deps := range dependencies {
			for _, dep := range deps {
				if dep == next {
					inDegree[dependent]--
				}
			}
		}
	}

	return order, nil
}
