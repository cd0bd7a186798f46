package steph

import (
	"context"
	"fmt"

	"github.com/vito/steph/pkg/types"
)

// Literal is a constant Number, String or Boolean.
type Literal struct {
	node
	Value types.Value
}

var _ Node = (*Literal)(nil)

func NewLiteral(loc *SourceLocation, val types.Value) *Literal {
	return &Literal{node: newNode(loc, nil), Value: val}
}

func (l *Literal) Infer(ctx context.Context, c *Checker, env types.TypeEnv) (types.Type, error) {
	return l.Value.Type(), nil
}

func (l *Literal) Eval(ctx context.Context, env types.Scope) (types.Value, error) {
	return l.Value, nil
}

// List constructs a list from its element expressions.
type List struct {
	node
}

var _ Node = (*List)(nil)

func NewList(loc *SourceLocation, elems ...Node) *List {
	free := make([]Names, len(elems))
	for i, e := range elems {
		free[i] = e.Names()
	}
	return &List{node: newNode(loc, unionNames(free...), elems...)}
}

func (l *List) Elements() []Node {
	return l.kids
}

// Infer requires every element to unify with the ones before it. An empty
// list is EmptyList.
func (l *List) Infer(ctx context.Context, c *Checker, env types.TypeEnv) (types.Type, error) {
	return withTypeErrorHandling(l, func() (types.Type, error) {
		var item types.Type = types.Nothing
		for i, elem := range l.Elements() {
			elemType, err := c.Infer(ctx, elem, env)
			if err != nil {
				return nil, err
			}
			unified, err := types.Union(item, elemType)
			if err != nil {
				return nil, NewTypeError(fmt.Errorf("list element %d: %w", i+1, err), elem)
			}
			item = unified
		}
		return types.NewListType(item), nil
	})
}

func (l *List) Eval(ctx context.Context, env types.Scope) (types.Value, error) {
	return withEvalErrorHandling(ctx, l, func() (types.Value, error) {
		var item types.Type = types.Nothing
		elems := make([]types.Value, len(l.kids))
		for i, elem := range l.Elements() {
			val, err := elem.Eval(ctx, env)
			if err != nil {
				return nil, err
			}
			unified, err := types.Union(item, val.Type())
			if err != nil {
				return nil, err
			}
			item = unified
			elems[i] = val
		}
		return types.ListValue{Elements: elems, ItemType: item}, nil
	})
}
