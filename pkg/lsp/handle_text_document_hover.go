package lsp

import (
	"context"
	"fmt"

	"github.com/creachadair/jrpc2"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/vito/steph/pkg/steph"
	"github.com/vito/steph/pkg/types"
)

func (h *Handler) handleTextDocumentHover(ctx context.Context, req *jrpc2.Request) (any, error) {
	if !req.HasParams() {
		return nil, jrpc2.Errorf(jrpc2.InvalidParams, "missing parameters")
	}

	var params protocol.HoverParams
	if err := req.UnmarshalParams(&params); err != nil {
		return nil, err
	}

	f := h.file(params.TextDocument.URI)
	if f == nil || f.Root == nil {
		return nil, nil
	}

	n := nodeAt(f.Root, params.Position)
	if n == nil {
		return nil, nil
	}

	t, ok := f.Checker.TypeOf(n)
	if !ok {
		return nil, nil
	}

	rng := toRange(n.GetSourceLocation())
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: "```steph\n" + describe(n, t) + "\n```",
		},
		Range: &rng,
	}, nil
}

func describe(n steph.Node, t types.Type) string {
	switch x := n.(type) {
	case *steph.Reference:
		return fmt.Sprintf("%s : %s", x.Name, t)
	case *steph.Let:
		return fmt.Sprintf("%s : %s", x.Name, t)
	case *steph.Function:
		if x.Name != "" {
			return fmt.Sprintf("%s : %s", x.Name, t)
		}
	}
	return t.String()
}
