// Package lsp implements a language server for Steph files: diagnostics from
// parsing and type checking, the type of the expression under the cursor,
// and the binding a name refers to.
package lsp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"
	"sync"
	"unicode"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/jrpc2/handler"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/vito/steph/pkg/steph"
)

// Handler holds the open documents of one client.
type Handler struct {
	opts steph.RunOptions

	mu       sync.Mutex
	files    map[protocol.DocumentUri]*File
	rootPath string
}

// File is an open document together with the result of its last analysis.
type File struct {
	Text        string
	Version     protocol.Integer
	Diagnostics []protocol.Diagnostic

	// Root is nil if the text does not parse.
	Root steph.Node

	// Checker holds the types of every node that was typed before checking
	// stopped, so hovers keep working in a file with type errors.
	Checker *steph.Checker
}

// NewHandler creates a handler that checks documents against the bindings in
// opts.
func NewHandler(opts steph.RunOptions) *Handler {
	if opts.Grammar == nil {
		opts.Grammar = steph.DefaultGrammar()
	}
	return &Handler{
		opts:  opts,
		files: map[protocol.DocumentUri]*File{},
	}
}

// Methods maps each supported LSP method to its handler.
func (h *Handler) Methods() handler.Map {
	return handler.Map{
		protocol.MethodInitialize:             h.handleInitialize,
		protocol.MethodInitialized:            ignore,
		protocol.MethodShutdown:               h.handleShutdown,
		protocol.MethodExit:                   ignore,
		protocol.MethodTextDocumentDidOpen:    h.handleTextDocumentDidOpen,
		protocol.MethodTextDocumentDidChange:  h.handleTextDocumentDidChange,
		protocol.MethodTextDocumentDidSave:    ignore,
		protocol.MethodTextDocumentDidClose:   h.handleTextDocumentDidClose,
		protocol.MethodTextDocumentHover:      h.handleTextDocumentHover,
		protocol.MethodTextDocumentDefinition: h.handleTextDocumentDefinition,
	}
}

func ignore(context.Context, *jrpc2.Request) (any, error) {
	return nil, nil
}

// Serve answers requests read from r until the client goes away.
func Serve(h *Handler, r io.Reader, w io.WriteCloser) error {
	srv := jrpc2.NewServer(h.Methods(), &jrpc2.ServerOptions{
		AllowPush: true,
		Logger:    func(text string) { slog.Debug(text) },
	})
	srv.Start(channel.LSP(r, w))
	return srv.Wait()
}

func (h *Handler) file(uri protocol.DocumentUri) *File {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.files[uri]
}

func (h *Handler) closeFile(uri protocol.DocumentUri) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.files, uri)
}

// updateFile analyzes text and publishes the resulting diagnostics.
func (h *Handler) updateFile(ctx context.Context, uri protocol.DocumentUri, text string, version protocol.Integer) error {
	fp, err := fromURI(uri)
	if err != nil {
		return fmt.Errorf("file path from URI: %w", err)
	}

	f := &File{
		Text:        text,
		Version:     version,
		Diagnostics: []protocol.Diagnostic{},
	}

	root, err := steph.Parse(h.opts.Grammar, fp, text)
	if err != nil {
		slog.DebugContext(ctx, "failed to parse", "path", fp, "error", err)
		f.Diagnostics = append(f.Diagnostics, errorToDiagnostic(err))
	} else {
		f.Root = root
		f.Checker = steph.NewChecker()
		if _, err := f.Checker.Infer(ctx, root, h.opts.Bindings.TypeEnv()); err != nil {
			f.Diagnostics = append(f.Diagnostics, errorToDiagnostic(err))
		}
		for _, name := range root.Names().Sorted() {
			if _, ok := h.opts.Bindings.Values[name]; ok {
				continue
			}
			if _, ok := h.opts.Bindings.Types[name]; ok {
				continue
			}
			slog.DebugContext(ctx, "free name without a binding", "path", fp, "name", name)
		}
	}

	h.mu.Lock()
	h.files[uri] = f
	h.mu.Unlock()

	slog.InfoContext(ctx, "file updated", "path", fp, "diagnostics", len(f.Diagnostics))
	h.publishDiagnostics(ctx, uri, f)
	return nil
}

func (h *Handler) publishDiagnostics(ctx context.Context, uri protocol.DocumentUri, f *File) {
	srv := jrpc2.ServerFromContext(ctx)
	if srv == nil {
		return
	}
	version := protocol.UInteger(max(0, f.Version))
	err := srv.Notify(ctx, protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Version:     &version,
		Diagnostics: f.Diagnostics,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to publish diagnostics", "error", err)
	}
}

func errorToDiagnostic(err error) protocol.Diagnostic {
	msg := err.Error()
	var parseErr *steph.ParseError
	if errors.As(err, &parseErr) {
		msg = parseErr.Msg
	}
	rng := protocol.Range{End: protocol.Position{Character: 1}}
	if loc := steph.Locate(err); loc != nil {
		rng = toRange(loc)
	}
	severity := protocol.DiagnosticSeverityError
	source := "steph"
	return protocol.Diagnostic{
		Range:    rng,
		Severity: &severity,
		Source:   &source,
		Message:  msg,
	}
}

// toRange converts a 1-based location to a 0-based range covering the
// location's first token.
func toRange(loc *steph.SourceLocation) protocol.Range {
	start := protocol.Position{
		Line:      protocol.UInteger(max(0, loc.Line-1)),
		Character: protocol.UInteger(max(0, loc.Column-1)),
	}
	return protocol.Range{
		Start: start,
		End:   protocol.Position{Line: start.Line, Character: start.Character + protocol.UInteger(max(1, loc.Length))},
	}
}

func isWindowsDrivePath(path string) bool {
	if len(path) < 4 {
		return false
	}
	return unicode.IsLetter(rune(path[0])) && path[1] == ':'
}

func isWindowsDriveURI(uri string) bool {
	if len(uri) < 4 {
		return false
	}
	return uri[0] == '/' && unicode.IsLetter(rune(uri[1])) && uri[2] == ':'
}

func fromURI(uri protocol.DocumentUri) (string, error) {
	u, err := url.ParseRequestURI(uri)
	if err != nil {
		return "", err
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("only file URIs are supported, got %v", u.Scheme)
	}
	if isWindowsDriveURI(u.Path) {
		u.Path = u.Path[1:]
	}
	return u.Path, nil
}

func toURI(path string) protocol.DocumentUri {
	if isWindowsDrivePath(path) {
		path = "/" + path
	}
	return (&url.URL{
		Scheme: "file",
		Path:   filepath.ToSlash(path),
	}).String()
}
