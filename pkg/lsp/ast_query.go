package lsp

import (
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/vito/steph/pkg/steph"
	"github.com/vito/steph/pkg/types"
)

// covers reports whether pos falls on the first token of a node at loc.
func covers(loc *steph.SourceLocation, pos protocol.Position) bool {
	if loc == nil || loc.Line-1 != int(pos.Line) {
		return false
	}
	start := loc.Column - 1
	char := int(pos.Character)
	return char >= start && char < start+max(1, loc.Length)
}

// nodeAt returns the innermost node whose first token covers pos.
func nodeAt(root steph.Node, pos protocol.Position) steph.Node {
	var found steph.Node
	steph.Walk(root, func(n steph.Node) bool {
		if covers(n.GetSourceLocation(), pos) {
			found = n
		}
		return true
	})
	return found
}

// definitionAt returns where the name under pos is bound.
func definitionAt(root steph.Node, pos protocol.Position) *steph.SourceLocation {
	var found *steph.SourceLocation
	seen := map[steph.Node]bool{}

	var visit func(n steph.Node, scope *types.Env[*steph.SourceLocation])
	visit = func(n steph.Node, scope *types.Env[*steph.SourceLocation]) {
		if found != nil || seen[n] {
			return
		}
		seen[n] = true

		switch x := n.(type) {
		case *steph.Reference:
			if covers(x.GetSourceLocation(), pos) {
				found, _ = scope.Lookup(x.Name)
			}
			return
		case *steph.Let:
			if covers(x.GetSourceLocation(), pos) {
				found = x.GetSourceLocation()
				return
			}
		case *steph.Block:
			bound := map[string]*steph.SourceLocation{}
			for _, let := range x.Lets() {
				bound[let.Name] = let.GetSourceLocation()
			}
			scope = scope.Extend(bound)
		case *steph.FunctionCall:
			// recursive calls point straight at the function they call
			if fn, ok := x.Fn().(*steph.Function); ok && fn.Name != "" && covers(x.GetSourceLocation(), pos) {
				found, _ = scope.Lookup(fn.Name)
				return
			}
		case *steph.FunctionPiece:
			bound := map[string]*steph.SourceLocation{}
			for _, arg := range x.Args {
				if covers(arg.GetSourceLocation(), pos) {
					found = arg.GetSourceLocation()
					return
				}
				if p, ok := arg.(*steph.PatternArgument); ok {
					visit(p.Guard, scope)
				}
				bound[arg.ArgName()] = arg.GetSourceLocation()
			}
			visit(x.Body(), scope.Extend(bound))
			return
		}

		for _, child := range n.Children() {
			visit(child, scope)
		}
	}
	visit(root, nil)

	return found
}
