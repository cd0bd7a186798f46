package steph

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/vito/steph/pkg/types"
)

// ArithmeticOperator applies a binary operator whose result has the same
// type as its operands: + - * / && ||.
type ArithmeticOperator struct {
	node
	Op types.Operator
}

var _ Node = (*ArithmeticOperator)(nil)

func NewArithmeticOperator(loc *SourceLocation, op types.Operator, left, right Node) *ArithmeticOperator {
	return &ArithmeticOperator{
		node: newNode(loc, unionNames(left.Names(), right.Names()), left, right),
		Op:   op,
	}
}

func (a *ArithmeticOperator) Left() Node  { return a.kids[0] }
func (a *ArithmeticOperator) Right() Node { return a.kids[1] }

func (a *ArithmeticOperator) Infer(ctx context.Context, c *Checker, env types.TypeEnv) (types.Type, error) {
	return withTypeErrorHandling(a, func() (types.Type, error) {
		return inferOperands(ctx, c, env, a.Op, a.Left(), a.Right())
	})
}

func (a *ArithmeticOperator) Eval(ctx context.Context, env types.Scope) (types.Value, error) {
	return withEvalErrorHandling(ctx, a, func() (types.Value, error) {
		return evalOperands(ctx, env, a.Op, a.Left(), a.Right())
	})
}

// Comparison applies a comparison operator and always produces a Boolean.
type Comparison struct {
	node
	Op types.Operator
}

var _ Node = (*Comparison)(nil)

func NewComparison(loc *SourceLocation, op types.Operator, left, right Node) *Comparison {
	return &Comparison{
		node: newNode(loc, unionNames(left.Names(), right.Names()), left, right),
		Op:   op,
	}
}

func (cmp *Comparison) Left() Node  { return cmp.kids[0] }
func (cmp *Comparison) Right() Node { return cmp.kids[1] }

func (cmp *Comparison) Infer(ctx context.Context, c *Checker, env types.TypeEnv) (types.Type, error) {
	return withTypeErrorHandling(cmp, func() (types.Type, error) {
		if _, err := inferOperands(ctx, c, env, cmp.Op, cmp.Left(), cmp.Right()); err != nil {
			return nil, err
		}
		return types.Boolean, nil
	})
}

func (cmp *Comparison) Eval(ctx context.Context, env types.Scope) (types.Value, error) {
	return withEvalErrorHandling(ctx, cmp, func() (types.Value, error) {
		return evalOperands(ctx, env, cmp.Op, cmp.Left(), cmp.Right())
	})
}

func inferOperands(ctx context.Context, c *Checker, env types.TypeEnv, op types.Operator, left, right Node) (types.Type, error) {
	lt, err := c.Infer(ctx, left, env)
	if err != nil {
		return nil, err
	}
	rt, err := c.Infer(ctx, right, env)
	if err != nil {
		return nil, err
	}
	unified, err := types.Union(lt, rt)
	if err != nil {
		return nil, errors.Wrapf(err, "operands of %s", op.Symbol())
	}
	if !unified.SupportsOperator(op) {
		return nil, &types.OperatorError{Type: unified, Op: op}
	}
	return unified, nil
}

func evalOperands(ctx context.Context, env types.Scope, op types.Operator, left, right Node) (types.Value, error) {
	lv, err := left.Eval(ctx, env)
	if err != nil {
		return nil, err
	}
	rv, err := right.Eval(ctx, env)
	if err != nil {
		return nil, err
	}
	unified, err := types.Union(lv.Type(), rv.Type())
	if err != nil {
		return nil, err
	}
	return unified.BinaryOperator(op, lv, rv)
}

// Negate is unary minus.
type Negate struct {
	node
}

var _ Node = (*Negate)(nil)

func NewNegate(loc *SourceLocation, operand Node) *Negate {
	return &Negate{node: newNode(loc, unionNames(operand.Names()), operand)}
}

func (n *Negate) Operand() Node { return n.kids[0] }

func (n *Negate) Infer(ctx context.Context, c *Checker, env types.TypeEnv) (types.Type, error) {
	return withTypeErrorHandling(n, func() (types.Type, error) {
		t, err := c.Infer(ctx, n.Operand(), env)
		if err != nil {
			return nil, err
		}
		if !t.SupportsOperator(types.Negate) {
			return nil, &types.OperatorError{Type: t, Op: types.Negate}
		}
		return t, nil
	})
}

func (n *Negate) Eval(ctx context.Context, env types.Scope) (types.Value, error) {
	return withEvalErrorHandling(ctx, n, func() (types.Value, error) {
		val, err := n.Operand().Eval(ctx, env)
		if err != nil {
			return nil, err
		}
		return val.Type().UnaryOperator(types.Negate, val)
	})
}

// IfElse evaluates exactly one of its branches.
type IfElse struct {
	node
}

var _ Node = (*IfElse)(nil)

func NewIfElse(loc *SourceLocation, cond, then, els Node) *IfElse {
	return &IfElse{
		node: newNode(loc, unionNames(cond.Names(), then.Names(), els.Names()), cond, then, els),
	}
}

func (i *IfElse) Condition() Node { return i.kids[0] }
func (i *IfElse) Then() Node      { return i.kids[1] }
func (i *IfElse) Else() Node      { return i.kids[2] }

func (i *IfElse) Infer(ctx context.Context, c *Checker, env types.TypeEnv) (types.Type, error) {
	return withTypeErrorHandling(i, func() (types.Type, error) {
		condType, err := c.Infer(ctx, i.Condition(), env)
		if err != nil {
			return nil, err
		}
		if !condType.Eq(types.Boolean) {
			return nil, NewTypeError(fmt.Errorf("if condition must be Boolean, got %s", condType), i.Condition())
		}
		thenType, err := c.Infer(ctx, i.Then(), env)
		if err != nil {
			return nil, err
		}
		elseType, err := c.Infer(ctx, i.Else(), env)
		if err != nil {
			return nil, err
		}
		if !thenType.Eq(elseType) {
			return nil, fmt.Errorf("if branches have different types: %s and %s", thenType, elseType)
		}
		return thenType, nil
	})
}

func (i *IfElse) Eval(ctx context.Context, env types.Scope) (types.Value, error) {
	return withEvalErrorHandling(ctx, i, func() (types.Value, error) {
		cond, err := i.Condition().Eval(ctx, env)
		if err != nil {
			return nil, err
		}
		b, ok := cond.(types.BooleanValue)
		if !ok {
			return nil, fmt.Errorf("if condition must be Boolean, got %s", cond.Type())
		}
		if b.Val {
			return i.Then().Eval(ctx, env)
		}
		return i.Else().Eval(ctx, env)
	})
}
