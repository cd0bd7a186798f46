package types

import (
	"strconv"
	"strings"
)

// Value is a runtime value. Every value knows its resolved type.
type Value interface {
	Type() Type
	String() string
}

type NumberValue struct {
	Val int64
}

func (NumberValue) Type() Type { return Number }

func (v NumberValue) String() string {
	return strconv.FormatInt(v.Val, 10)
}

type BooleanValue struct {
	Val bool
}

func (BooleanValue) Type() Type { return Boolean }

func (v BooleanValue) String() string {
	return strconv.FormatBool(v.Val)
}

type StringValue struct {
	Val string
}

func (StringValue) Type() Type { return String }

func (v StringValue) String() string {
	return strconv.Quote(v.Val)
}

// ListValue is an ordered list whose elements all have type ItemType.
type ListValue struct {
	Elements []Value
	ItemType Type
}

// NewListValue builds a list, using Nothing as the item type when the list
// is empty and itemType is nil.
func NewListValue(itemType Type, elems ...Value) ListValue {
	if itemType == nil {
		itemType = Nothing
		if len(elems) > 0 {
			itemType = elems[0].Type()
		}
	}
	return ListValue{Elements: elems, ItemType: itemType}
}

func (v ListValue) Type() Type {
	if v.ItemType == nil {
		return EmptyList
	}
	return NewListType(v.ItemType)
}

func (v ListValue) String() string {
	elems := make([]string, len(v.Elements))
	for i, e := range v.Elements {
		elems[i] = e.String()
	}
	return "[" + strings.Join(elems, ", ") + "]"
}

// Equal compares two values by type and content. Lists compare
// element-wise; an empty list equals any other empty list. Values with no
// structural equality, such as functions, are only equal to themselves.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case NumberValue:
		y, ok := b.(NumberValue)
		return ok && x.Val == y.Val
	case BooleanValue:
		y, ok := b.(BooleanValue)
		return ok && x.Val == y.Val
	case StringValue:
		y, ok := b.(StringValue)
		return ok && x.Val == y.Val
	case ListValue:
		y, ok := b.(ListValue)
		if !ok || len(x.Elements) != len(y.Elements) {
			return false
		}
		if _, err := Union(x.Type(), y.Type()); err != nil {
			return false
		}
		for i := range x.Elements {
			if !Equal(x.Elements[i], y.Elements[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
