package types

import (
	"fmt"
	"strings"
)

// Type is the closed set of Steph types: Unknown, Nothing, Number, String,
// Boolean, *FunctionType and *ListType.
type Type interface {
	Name() string
	Eq(Type) bool
	fmt.Stringer

	// SupportsOperator reports whether values of this type can be combined
	// with the given operator.
	SupportsOperator(Operator) bool
	// BinaryOperator applies op to two values of this type.
	BinaryOperator(op Operator, a, b Value) (Value, error)
	// UnaryOperator applies op to a single value of this type.
	UnaryOperator(op Operator, a Value) (Value, error)

	sealed()
}

var (
	Unknown = UnknownType{}
	Nothing = NothingType{}
	Number  = NumberType{}
	String  = StringType{}
	Boolean = BooleanType{}

	// EmptyList is the type of [], a list of the bottom type.
	EmptyList = &ListType{Item: Nothing}
)

// UnknownType marks a type that has not been resolved yet.
type UnknownType struct{}

func (UnknownType) Name() string                   { return "Unknown" }
func (UnknownType) String() string                 { return "Unknown" }
func (UnknownType) Eq(other Type) bool             { return other == Unknown }
func (UnknownType) SupportsOperator(Operator) bool { return false }
func (t UnknownType) BinaryOperator(op Operator, a, b Value) (Value, error) {
	return nil, &OperatorError{Type: t, Op: op}
}
func (t UnknownType) UnaryOperator(op Operator, a Value) (Value, error) {
	return nil, &OperatorError{Type: t, Op: op}
}
func (UnknownType) sealed() {}

// NothingType is the bottom type. It only appears as the item type of
// EmptyList.
type NothingType struct{}

func (NothingType) Name() string                   { return "Nothing" }
func (NothingType) String() string                 { return "Nothing" }
func (NothingType) Eq(other Type) bool             { return other == Nothing }
func (NothingType) SupportsOperator(Operator) bool { return false }
func (t NothingType) BinaryOperator(op Operator, a, b Value) (Value, error) {
	return nil, &OperatorError{Type: t, Op: op}
}
func (t NothingType) UnaryOperator(op Operator, a Value) (Value, error) {
	return nil, &OperatorError{Type: t, Op: op}
}
func (NothingType) sealed() {}

// FunctionType is the type of a function with a fixed arity.
type FunctionType struct {
	Args    []Type
	Returns Type
}

func NewFunctionType(args []Type, returns Type) *FunctionType {
	return &FunctionType{Args: args, Returns: returns}
}

func (ft *FunctionType) Name() string {
	return ft.String()
}

func (ft *FunctionType) Eq(other Type) bool {
	ot, ok := other.(*FunctionType)
	if !ok || len(ft.Args) != len(ot.Args) {
		return false
	}
	for i, arg := range ft.Args {
		if !arg.Eq(ot.Args[i]) {
			return false
		}
	}
	return ft.Returns.Eq(ot.Returns)
}

func (ft *FunctionType) String() string {
	args := make([]string, len(ft.Args))
	for i, arg := range ft.Args {
		args[i] = arg.String()
	}
	return fmt.Sprintf("(%s) => %s", strings.Join(args, ", "), ft.Returns)
}

func (ft *FunctionType) SupportsOperator(Operator) bool { return false }

func (ft *FunctionType) BinaryOperator(op Operator, a, b Value) (Value, error) {
	return nil, &OperatorError{Type: ft, Op: op}
}

func (ft *FunctionType) UnaryOperator(op Operator, a Value) (Value, error) {
	return nil, &OperatorError{Type: ft, Op: op}
}

func (*FunctionType) sealed() {}

// ListType is a homogeneous list. A ListType whose item is Nothing is the
// empty list type.
type ListType struct {
	Item Type
}

func NewListType(item Type) *ListType {
	return &ListType{Item: item}
}

// IsEmpty reports whether this is EmptyList.
func (lt *ListType) IsEmpty() bool {
	return lt.Item == Nothing
}

func (lt *ListType) Name() string {
	return lt.String()
}

func (lt *ListType) Eq(other Type) bool {
	ot, ok := other.(*ListType)
	if !ok {
		return false
	}
	return lt.Item.Eq(ot.Item)
}

func (lt *ListType) String() string {
	if lt.IsEmpty() {
		return "EmptyList"
	}
	return fmt.Sprintf("List(%s)", lt.Item)
}

func (*ListType) sealed() {}

// Union unifies two types. Types unify only when they are equal, except
// that Nothing unifies with anything and EmptyList with any list.
func Union(a, b Type) (Type, error) {
	if a.Eq(b) {
		return a, nil
	}
	if a == Nothing {
		return b, nil
	}
	if b == Nothing {
		return a, nil
	}
	la, aList := a.(*ListType)
	lb, bList := b.(*ListType)
	if aList && bList {
		item, err := Union(la.Item, lb.Item)
		if err != nil {
			return nil, &UnionError{A: a, B: b}
		}
		return NewListType(item), nil
	}
	return nil, &UnionError{A: a, B: b}
}

// Assignable reports whether a value of type actual can be used where
// expected is required.
func Assignable(expected, actual Type) bool {
	if expected.Eq(actual) || actual == Nothing {
		return true
	}
	le, ok := expected.(*ListType)
	if !ok {
		return false
	}
	la, ok := actual.(*ListType)
	if !ok {
		return false
	}
	return Assignable(le.Item, la.Item)
}

// UnionError is returned when two types cannot be unified.
type UnionError struct {
	A, B Type
}

func (e *UnionError) Error() string {
	return fmt.Sprintf("type mismatch: %s and %s", e.A, e.B)
}

// OperatorError is returned when a type does not support an operator.
type OperatorError struct {
	Type Type
	Op   Operator
}

func (e *OperatorError) Error() string {
	return fmt.Sprintf("type %s does not support operator %s (%s)", e.Type, e.Op.Symbol(), e.Op.Name())
}
