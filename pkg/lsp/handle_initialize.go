package lsp

import (
	"context"
	"log/slog"

	"github.com/creachadair/jrpc2"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func (h *Handler) handleInitialize(ctx context.Context, req *jrpc2.Request) (any, error) {
	var params protocol.InitializeParams
	if req.HasParams() {
		if err := req.UnmarshalParams(&params); err != nil {
			return nil, err
		}
	}

	var rootPath string
	if params.RootURI != nil {
		var err error
		rootPath, err = fromURI(*params.RootURI)
		if err != nil {
			return nil, err
		}
		h.mu.Lock()
		h.rootPath = rootPath
		h.mu.Unlock()
	}

	slog.InfoContext(ctx, "initializing", "root", rootPath)

	return protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync:   protocol.TextDocumentSyncKindFull,
			HoverProvider:      true,
			DefinitionProvider: true,
		},
		ServerInfo: &protocol.InitializeResultServerInfo{Name: "steph"},
	}, nil
}
