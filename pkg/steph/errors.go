package steph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/vito/steph/pkg/types"
)

// SourceLocation represents a location in source code
type SourceLocation struct {
	Filename string
	Line     int
	Column   int
	Length   int // Length of the token the node starts with
}

func (loc *SourceLocation) String() string {
	if loc == nil {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", loc.Filename, loc.Line, loc.Column)
}

type SourceLocatable interface {
	GetSourceLocation() *SourceLocation
}

// ParseError is raised while building a tree: malformed source, unknown type
// names, repeated or circular bindings, and recursive bindings without a
// type annotation.
type ParseError struct {
	Msg      string
	Location *SourceLocation
}

func NewParseError(loc *SourceLocation, format string, args ...any) *ParseError {
	return &ParseError{Msg: fmt.Sprintf(format, args...), Location: loc}
}

func (e *ParseError) Error() string {
	if e.Location == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Location, e.Msg)
}

// TypeError is raised by Check.
type TypeError struct {
	Inner    error
	Location *SourceLocation
}

func NewTypeError(inner error, node SourceLocatable) *TypeError {
	var loc *SourceLocation
	if node != nil {
		loc = node.GetSourceLocation()
	}
	return &TypeError{Inner: inner, Location: loc}
}

func (e *TypeError) Error() string {
	return e.Inner.Error()
}

func (e *TypeError) Unwrap() error {
	return e.Inner
}

// EvalError is raised by evaluation and records the innermost node that
// failed.
type EvalError struct {
	Inner    error
	Location *SourceLocation
}

func (e *EvalError) Error() string {
	return e.Inner.Error()
}

func (e *EvalError) Unwrap() error {
	return e.Inner
}

// UnboundNameError is raised when evaluation reaches a name the scope does
// not provide.
type UnboundNameError struct {
	Name string
}

func (e *UnboundNameError) Error() string {
	return fmt.Sprintf("unbound name %q", e.Name)
}

// NoMatchingClauseError is raised when no clause of a function accepts the
// call's arguments.
type NoMatchingClauseError struct {
	Function string
	Args     []types.Value
}

func (e *NoMatchingClauseError) Error() string {
	args := make([]string, len(e.Args))
	for i, arg := range e.Args {
		args[i] = arg.String()
	}
	name := e.Function
	if name == "" {
		name = "<anonymous>"
	}
	return fmt.Sprintf("no matching clause for %s(%s)", name, strings.Join(args, ", "))
}

// DepthError is raised when nested calls exceed the limit set by
// WithMaxDepth.
type DepthError struct {
	Limit int
}

func (e *DepthError) Error() string {
	return fmt.Sprintf("maximum call depth of %d exceeded", e.Limit)
}

func withTypeErrorHandling(node SourceLocatable, fn func() (types.Type, error)) (types.Type, error) {
	typ, err := fn()
	if err != nil {
		var typeErr *TypeError
		var parseErr *ParseError
		if errors.As(err, &typeErr) || errors.As(err, &parseErr) {
			return nil, err
		}
		return nil, NewTypeError(err, node)
	}
	return typ, nil
}

func withEvalErrorHandling(ctx context.Context, node SourceLocatable, fn func() (types.Value, error)) (types.Value, error) {
	val, err := fn()
	if err != nil {
		var evalErr *EvalError
		if errors.As(err, &evalErr) || ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil, err
		}
		return nil, &EvalError{Inner: err, Location: node.GetSourceLocation()}
	}
	return val, nil
}

// Locate returns the source location recorded by err, if any.
func Locate(err error) *SourceLocation {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return parseErr.Location
	}
	var typeErr *TypeError
	if errors.As(err, &typeErr) {
		return typeErr.Location
	}
	var evalErr *EvalError
	if errors.As(err, &evalErr) {
		return evalErr.Location
	}
	return nil
}

// SourceError renders an error together with the source lines around it.
type SourceError struct {
	Inner    error
	Location *SourceLocation
	Source   string
}

// NewSourceError attaches source to err using the location err carries.
func NewSourceError(err error, source string) *SourceError {
	return &SourceError{
		Inner:    err,
		Location: Locate(err),
		Source:   source,
	}
}

func (e *SourceError) Unwrap() error {
	return e.Inner
}

func (e *SourceError) Error() string {
	return e.render(false)
}

// Plain renders the error with context lines and no styling.
func (e *SourceError) Plain() string {
	return e.render(false)
}

// FormatWithHighlighting renders the error with terminal styling.
func (e *SourceError) FormatWithHighlighting() string {
	return e.render(true)
}

var (
	errorHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	locationStyle    = lipgloss.NewStyle().Faint(true).Foreground(lipgloss.Color("4"))
	gutterStyle      = lipgloss.NewStyle().Faint(true)
	underlineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

func (e *SourceError) render(styled bool) string {
	msg := innermostMessage(e.Inner)
	lines := strings.Split(strings.TrimSuffix(e.Source, "\n"), "\n")
	if e.Location == nil || e.Location.Line < 1 || e.Location.Line > len(lines) {
		return msg
	}

	style := func(s lipgloss.Style, text string) string {
		if !styled {
			return text
		}
		return s.Render(text)
	}

	var result strings.Builder
	fmt.Fprintf(&result, "%s %s\n", style(errorHeaderStyle, "Error:"), msg)
	fmt.Fprintf(&result, "  %s\n", style(locationStyle, "--> "+e.Location.String()))
	fmt.Fprintf(&result, " %s\n", style(gutterStyle, "    |"))

	startLine := max(1, e.Location.Line-2)
	endLine := min(len(lines), e.Location.Line+2)
	for i := startLine; i <= endLine; i++ {
		gutter := style(gutterStyle, fmt.Sprintf("%3d |", i))
		fmt.Fprintf(&result, " %s %s\n", gutter, lines[i-1])
		if i == e.Location.Line {
			padding := strings.Repeat(" ", 1+3+3+e.Location.Column-1)
			underline := strings.Repeat("^", max(1, e.Location.Length))
			fmt.Fprintf(&result, "%s%s\n", padding, style(underlineStyle, underline))
		}
	}

	fmt.Fprintf(&result, " %s\n", style(gutterStyle, "    |"))
	return result.String()
}

// innermostMessage strips the location prefix a ParseError adds, since the
// rendered context already shows it.
func innermostMessage(err error) string {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return parseErr.Msg
	}
	return err.Error()
}
