package types

import (
	"errors"
	"fmt"
)

// ErrDivisionByZero is returned when a Number is divided by zero.
var ErrDivisionByZero = errors.New("division by zero")

// NumberType is the type of 64-bit signed integers.
type NumberType struct{}

func (NumberType) Name() string       { return "Number" }
func (NumberType) String() string     { return "Number" }
func (NumberType) Eq(other Type) bool { return other == Number }
func (NumberType) sealed()            {}

func (NumberType) SupportsOperator(op Operator) bool {
	switch op {
	case Add, Subtract, Multiply, Divide, Negate:
		return true
	default:
		return op.IsComparison()
	}
}

func (t NumberType) BinaryOperator(op Operator, a, b Value) (Value, error) {
	x, y, err := operands[NumberValue](t, op, a, b)
	if err != nil {
		return nil, err
	}
	switch op {
	case Add:
		return NumberValue{Val: x.Val + y.Val}, nil
	case Subtract:
		return NumberValue{Val: x.Val - y.Val}, nil
	case Multiply:
		return NumberValue{Val: x.Val * y.Val}, nil
	case Divide:
		if y.Val == 0 {
			return nil, ErrDivisionByZero
		}
		return NumberValue{Val: x.Val / y.Val}, nil
	}
	if res, ok := compareOrdered(op, x.Val, y.Val); ok {
		return BooleanValue{Val: res}, nil
	}
	return nil, &OperatorError{Type: t, Op: op}
}

func (t NumberType) UnaryOperator(op Operator, a Value) (Value, error) {
	x, ok := a.(NumberValue)
	if !ok {
		return nil, fmt.Errorf("expected Number operand, got %s", a.Type())
	}
	if op != Negate {
		return nil, &OperatorError{Type: t, Op: op}
	}
	return NumberValue{Val: -x.Val}, nil
}

// StringType is the type of text.
type StringType struct{}

func (StringType) Name() string       { return "String" }
func (StringType) String() string     { return "String" }
func (StringType) Eq(other Type) bool { return other == String }
func (StringType) sealed()            {}

func (StringType) SupportsOperator(op Operator) bool {
	return op == Add || op.IsComparison()
}

func (t StringType) BinaryOperator(op Operator, a, b Value) (Value, error) {
	x, y, err := operands[StringValue](t, op, a, b)
	if err != nil {
		return nil, err
	}
	if op == Add {
		return StringValue{Val: x.Val + y.Val}, nil
	}
	if res, ok := compareOrdered(op, x.Val, y.Val); ok {
		return BooleanValue{Val: res}, nil
	}
	return nil, &OperatorError{Type: t, Op: op}
}

func (t StringType) UnaryOperator(op Operator, a Value) (Value, error) {
	return nil, &OperatorError{Type: t, Op: op}
}

// BooleanType is the type of true and false.
type BooleanType struct{}

func (BooleanType) Name() string       { return "Boolean" }
func (BooleanType) String() string     { return "Boolean" }
func (BooleanType) Eq(other Type) bool { return other == Boolean }
func (BooleanType) sealed()            {}

func (BooleanType) SupportsOperator(op Operator) bool {
	switch op {
	case LogicalAnd, LogicalOr, Equals, NotEquals:
		return true
	default:
		return false
	}
}

func (t BooleanType) BinaryOperator(op Operator, a, b Value) (Value, error) {
	x, y, err := operands[BooleanValue](t, op, a, b)
	if err != nil {
		return nil, err
	}
	switch op {
	case LogicalAnd:
		return BooleanValue{Val: x.Val && y.Val}, nil
	case LogicalOr:
		return BooleanValue{Val: x.Val || y.Val}, nil
	case Equals:
		return BooleanValue{Val: x.Val == y.Val}, nil
	case NotEquals:
		return BooleanValue{Val: x.Val != y.Val}, nil
	}
	return nil, &OperatorError{Type: t, Op: op}
}

func (t BooleanType) UnaryOperator(op Operator, a Value) (Value, error) {
	return nil, &OperatorError{Type: t, Op: op}
}

func (lt *ListType) SupportsOperator(op Operator) bool {
	return op == Add || op == Equals || op == NotEquals
}

func (lt *ListType) BinaryOperator(op Operator, a, b Value) (Value, error) {
	x, y, err := operands[ListValue](lt, op, a, b)
	if err != nil {
		return nil, err
	}
	switch op {
	case Add:
		item, err := Union(x.ItemType, y.ItemType)
		if err != nil {
			return nil, err
		}
		elems := make([]Value, 0, len(x.Elements)+len(y.Elements))
		elems = append(elems, x.Elements...)
		elems = append(elems, y.Elements...)
		return ListValue{Elements: elems, ItemType: item}, nil
	case Equals:
		return BooleanValue{Val: Equal(x, y)}, nil
	case NotEquals:
		return BooleanValue{Val: !Equal(x, y)}, nil
	}
	return nil, &OperatorError{Type: lt, Op: op}
}

func (lt *ListType) UnaryOperator(op Operator, a Value) (Value, error) {
	return nil, &OperatorError{Type: lt, Op: op}
}

func operands[V Value](t Type, op Operator, a, b Value) (V, V, error) {
	x, okA := a.(V)
	y, okB := b.(V)
	if !okA || !okB {
		var zero V
		return zero, zero, fmt.Errorf("operator %s on %s: unexpected operands %s and %s", op.Symbol(), t, a.Type(), b.Type())
	}
	return x, y, nil
}
