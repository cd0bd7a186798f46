package types

import (
	"fmt"

	"github.com/iancoleman/strcase"
)

// Operator identifies a unary or binary operator.
type Operator int

const (
	Add Operator = iota
	Subtract
	Multiply
	Divide
	Negate
	Equals
	NotEquals
	LessThan
	GreaterThan
	LessOrEqual
	GreaterOrEqual
	LogicalAnd
	LogicalOr
)

type operatorInfo struct {
	ident  string
	symbol string
	arity  int
}

var operators = [...]operatorInfo{
	Add:            {"Add", "+", 2},
	Subtract:       {"Subtract", "-", 2},
	Multiply:       {"Multiply", "*", 2},
	Divide:         {"Divide", "/", 2},
	Negate:         {"Negate", "-", 1},
	Equals:         {"Equals", "==", 2},
	NotEquals:      {"NotEquals", "!=", 2},
	LessThan:       {"LessThan", "<", 2},
	GreaterThan:    {"GreaterThan", ">", 2},
	LessOrEqual:    {"LessOrEqual", "<=", 2},
	GreaterOrEqual: {"GreaterOrEqual", ">=", 2},
	LogicalAnd:     {"LogicalAnd", "&&", 2},
	LogicalOr:      {"LogicalOr", "||", 2},
}

func (op Operator) info() operatorInfo {
	if op < 0 || int(op) >= len(operators) {
		return operatorInfo{ident: fmt.Sprintf("Operator%d", int(op)), symbol: "?"}
	}
	return operators[op]
}

// Symbol is the operator as written in source.
func (op Operator) Symbol() string {
	return op.info().symbol
}

// Arity is 1 for unary operators and 2 for binary ones.
func (op Operator) Arity() int {
	return op.info().arity
}

// Name is the snake_case name of the operator, e.g. "less_or_equal".
func (op Operator) Name() string {
	return strcase.ToSnake(op.info().ident)
}

func (op Operator) String() string {
	return op.Symbol()
}

// IsComparison reports whether the operator always produces a Boolean.
func (op Operator) IsComparison() bool {
	switch op {
	case Equals, NotEquals, LessThan, GreaterThan, LessOrEqual, GreaterOrEqual:
		return true
	default:
		return false
	}
}

// LookupOperator finds the operator written as symbol with the given arity.
func LookupOperator(symbol string, arity int) (Operator, bool) {
	for i, info := range operators {
		if info.symbol == symbol && info.arity == arity {
			return Operator(i), true
		}
	}
	return 0, false
}

func compareOrdered[T int64 | string](op Operator, a, b T) (bool, bool) {
	switch op {
	case Equals:
		return a == b, true
	case NotEquals:
		return a != b, true
	case LessThan:
		return a < b, true
	case GreaterThan:
		return a > b, true
	case LessOrEqual:
		return a <= b, true
	case GreaterOrEqual:
		return a >= b, true
	default:
		return false, false
	}
}
