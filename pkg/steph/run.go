package steph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/kr/pretty"
	"golang.org/x/sync/errgroup"

	"github.com/vito/steph/pkg/ioctx"
	"github.com/vito/steph/pkg/types"
)

// RunOptions configures how files are checked and evaluated.
type RunOptions struct {
	Bindings Bindings
	Grammar  *Grammar
	MaxDepth int
	Debug    bool
}

func (opts RunOptions) grammar() *Grammar {
	if opts.Grammar != nil {
		return opts.Grammar
	}
	return DefaultGrammar()
}

// CheckFile parses and type checks a file.
func CheckFile(ctx context.Context, filePath string, opts RunOptions) (*Program, error) {
	sourceBytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file: %w", err)
	}
	return CheckSource(ctx, filePath, string(sourceBytes), opts)
}

// CheckSource parses and type checks source. Errors are returned as
// *SourceError.
func CheckSource(ctx context.Context, filename, source string, opts RunOptions) (*Program, error) {
	root, err := Parse(opts.grammar(), filename, source)
	if err != nil {
		return nil, NewSourceError(err, source)
	}

	if opts.Debug {
		fmt.Fprint(ioctx.StderrFromContext(ctx), Tree(root))
		_, _ = pretty.Fprintf(ioctx.StderrFromContext(ctx), "globals: %# v\n", opts.Bindings.Types)
	}

	prog, err := Check(ctx, root, opts.Bindings.TypeEnv())
	if err != nil {
		return nil, NewSourceError(err, source)
	}
	return prog, nil
}

// EvalFile checks and evaluates a file.
func EvalFile(ctx context.Context, filePath string, opts RunOptions) (types.Value, error) {
	sourceBytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file: %w", err)
	}
	source := string(sourceBytes)

	prog, err := CheckSource(ctx, filePath, source, opts)
	if err != nil {
		return nil, err
	}

	if opts.MaxDepth > 0 {
		ctx = WithMaxDepth(ctx, opts.MaxDepth)
	}

	val, err := prog.Eval(ctx, opts.Bindings.Scope())
	if err != nil {
		var evalErr *EvalError
		if errors.As(err, &evalErr) {
			return nil, NewSourceError(err, source)
		}
		return nil, err
	}
	return val, nil
}

// RunFile evaluates a file and prints its value to the context's stdout.
func RunFile(ctx context.Context, filePath string, opts RunOptions) error {
	val, err := EvalFile(ctx, filePath, opts)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(ioctx.StdoutFromContext(ctx), val)
	return err
}

// RunFiles evaluates files concurrently and prints each value, prefixed by
// its file name, in argument order. Every file is evaluated even if another
// one fails; the errors are joined.
func RunFiles(ctx context.Context, filePaths []string, opts RunOptions) error {
	if opts.Grammar == nil {
		opts.Grammar = DefaultGrammar()
	}

	vals := make([]types.Value, len(filePaths))
	errs := make([]error, len(filePaths))

	var eg errgroup.Group
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range filePaths {
		eg.Go(func() error {
			vals[i], errs[i] = EvalFile(ctx, path, opts)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	stdout := ioctx.StdoutFromContext(ctx)
	for i, path := range filePaths {
		if errs[i] != nil {
			slog.Debug("evaluation failed", "path", path, "error", errs[i])
			continue
		}
		if _, err := fmt.Fprintf(stdout, "%s: %s\n", path, vals[i]); err != nil {
			return err
		}
	}
	return errors.Join(errs...)
}
