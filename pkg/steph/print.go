package steph

import (
	"fmt"
	"strings"
)

// Tree renders n as an indented outline, one node per line. A node reached
// again through one of its own descendants is printed as a back reference
// instead of being expanded.
func Tree(n Node) string {
	var buf strings.Builder
	onPath := map[Node]bool{}
	var walk func(n Node, depth int)
	walk = func(n Node, depth int) {
		indent := strings.Repeat("  ", depth)
		if onPath[n] {
			fmt.Fprintf(&buf, "%s^%s\n", indent, Label(n))
			return
		}
		fmt.Fprintf(&buf, "%s%s\n", indent, Label(n))
		onPath[n] = true
		for _, child := range n.Children() {
			walk(child, depth+1)
		}
		delete(onPath, n)
	}
	walk(n, 0)
	return buf.String()
}

// Label describes a single node without its children.
func Label(n Node) string {
	switch x := n.(type) {
	case *Literal:
		return fmt.Sprintf("Literal %s", x.Value)
	case *List:
		return "List"
	case *Reference:
		return "Reference " + x.Name
	case *Let:
		if x.Declared != nil {
			return fmt.Sprintf("Let %s : %s", x.Name, x.Declared)
		}
		return "Let " + x.Name
	case *Block:
		return "Block"
	case *ArithmeticOperator:
		return "Arithmetic " + x.Op.Symbol()
	case *Comparison:
		return "Comparison " + x.Op.Symbol()
	case *Negate:
		return "Negate"
	case *IfElse:
		return "IfElse"
	case *Function:
		if x.Name != "" {
			return "Function " + x.Name
		}
		return "Function"
	case *FunctionPiece:
		return fmt.Sprintf("Clause (%s)", describeArgs(x.Args))
	case *FunctionCall:
		return "Call"
	default:
		return fmt.Sprintf("%T", n)
	}
}
