package lsp

import (
	"context"

	"github.com/creachadair/jrpc2"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func (h *Handler) handleTextDocumentDefinition(ctx context.Context, req *jrpc2.Request) (any, error) {
	if !req.HasParams() {
		return nil, jrpc2.Errorf(jrpc2.InvalidParams, "missing parameters")
	}

	var params protocol.DefinitionParams
	if err := req.UnmarshalParams(&params); err != nil {
		return nil, err
	}

	f := h.file(params.TextDocument.URI)
	if f == nil || f.Root == nil {
		return nil, nil
	}

	loc := definitionAt(f.Root, params.Position)
	if loc == nil {
		return nil, nil
	}

	return &protocol.Location{
		URI:   params.TextDocument.URI,
		Range: toRange(loc),
	}, nil
}
