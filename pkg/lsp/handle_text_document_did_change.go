package lsp

import (
	"context"

	"github.com/creachadair/jrpc2"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func (h *Handler) handleTextDocumentDidChange(ctx context.Context, req *jrpc2.Request) (any, error) {
	if !req.HasParams() {
		return nil, jrpc2.Errorf(jrpc2.InvalidParams, "missing parameters")
	}

	var params protocol.DidChangeTextDocumentParams
	if err := req.UnmarshalParams(&params); err != nil {
		return nil, err
	}

	if len(params.ContentChanges) == 0 {
		return nil, nil
	}

	var text string
	if f := h.file(params.TextDocument.URI); f != nil {
		text = f.Text
	}
	for _, change := range params.ContentChanges {
		text = applyChange(text, change)
	}

	return nil, h.updateFile(ctx, params.TextDocument.URI, text, params.TextDocument.Version)
}

// applyChange applies one content change to text. We ask for full sync, but
// ranged changes from clients that send them anyway are honored.
func applyChange(text string, change any) string {
	switch c := change.(type) {
	case protocol.TextDocumentContentChangeEventWhole:
		return c.Text
	case protocol.TextDocumentContentChangeEvent:
		if c.Range == nil {
			return c.Text
		}
		start, end := c.Range.IndexesIn(text)
		if end < start {
			start, end = end, start
		}
		return text[:start] + c.Text + text[end:]
	}
	return text
}
