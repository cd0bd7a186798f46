package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/vito/steph/pkg/ioctx"
	"github.com/vito/steph/pkg/lsp"
	"github.com/vito/steph/pkg/steph"
)

// Config holds the application configuration
type Config struct {
	Debug    bool
	MaxDepth int
	Globals  []string
}

func main() {
	var cfg Config

	rootCmd := &cobra.Command{
		Use:   "steph [flags] file...",
		Short: "Steph expression language interpreter",
		Long: `Steph is a small expression language with closures, lists and
pattern-matched functions. Each file holds a single expression; running it
type checks the expression and prints its value.`,
		Example: `  # Evaluate a file
  steph fac.steph

  # Supply a free name
  steph --global x=42 program.steph

  # Evaluate several files concurrently
  steph a.steph b.steph`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts, err := setup(ctx, cfg)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				return steph.RunFile(ctx, args[0], opts)
			}
			return steph.RunFiles(ctx, args, opts)
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&cfg.Debug, "debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().IntVar(&cfg.MaxDepth, "max-depth", 0, "Limit nested function calls (0 = unlimited, overrides steph.toml)")
	rootCmd.PersistentFlags().StringArrayVarP(&cfg.Globals, "global", "g", nil, "Bind a free name, as name=expression (repeatable)")

	rootCmd.AddCommand(checkCmd(&cfg))
	rootCmd.AddCommand(dumpCmd(&cfg))
	rootCmd.AddCommand(lspCmd(&cfg))

	ctx := context.Background()
	ctx = ioctx.StdoutToContext(ctx, os.Stdout)
	ctx = ioctx.StderrToContext(ctx, os.Stderr)
	if err := fang.Execute(ctx, rootCmd,
		fang.WithVersion("v0.1.0"),
		fang.WithCommit("dev"),
		fang.WithErrorHandler(func(w io.Writer, styles fang.Styles, err error) {
			_, _ = fmt.Fprintln(w, formatError(err))
		}),
	); err != nil {
		os.Exit(1)
	}
}

// formatError highlights source errors when stderr is a terminal, unless
// NO_COLOR is set.
func formatError(err error) string {
	var sourceErr *steph.SourceError
	if errors.As(err, &sourceErr) && os.Getenv("NO_COLOR") == "" && isTerminal(os.Stderr.Fd()) {
		var joined interface{ Unwrap() []error }
		if !errors.As(err, &joined) {
			return sourceErr.FormatWithHighlighting()
		}
	}
	return err.Error()
}

// setup configures logging and resolves globals from steph.toml and flags.
func setup(ctx context.Context, cfg Config) (steph.RunOptions, error) {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	opts := steph.RunOptions{
		Grammar: steph.DefaultGrammar(),
		Debug:   cfg.Debug,
	}

	cwd, err := os.Getwd()
	if err != nil {
		return opts, err
	}
	configPath, config, err := steph.FindProjectConfig(cwd)
	if err != nil {
		return opts, fmt.Errorf("failed to load %s: %w", steph.ProjectConfigFile, err)
	}
	if config != nil {
		opts.MaxDepth = config.MaxDepth
		opts.Bindings, err = config.Resolve(ctx, opts.Grammar)
		if err != nil {
			return opts, fmt.Errorf("%s: %w", configPath, err)
		}
	}

	for _, global := range cfg.Globals {
		name, expr, ok := strings.Cut(global, "=")
		if !ok {
			return opts, fmt.Errorf("invalid --global %q, expected name=expression", global)
		}
		if err := opts.Bindings.Bind(ctx, opts.Grammar, strings.TrimSpace(name), "", expr); err != nil {
			return opts, err
		}
	}

	if cfg.MaxDepth > 0 {
		opts.MaxDepth = cfg.MaxDepth
	}

	return opts, nil
}

func checkCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "check file...",
		Short: "Type check Steph files without evaluating them",
		Long: `Type check each file and print the type of its expression.

Free names must be supplied through steph.toml globals or --global flags,
just as for evaluation.`,
		Example: `  steph check fac.steph
  steph check -g x=1 program.steph`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts, err := setup(ctx, *cfg)
			if err != nil {
				return err
			}
			var errs []error
			for _, path := range args {
				prog, err := steph.CheckFile(ctx, path, opts)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(ioctx.StdoutFromContext(ctx), "%s: %s\n", path, prog.Type)
			}
			return errors.Join(errs...)
		},
	}
}

func dumpCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "dump file",
		Short: "Print the syntax tree of a Steph file",
		Long: `Print the syntax tree of a file after bindings have been resolved.

Recursive references point back at the function they belong to and are
shown as ^Function.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts, err := setup(ctx, *cfg)
			if err != nil {
				return err
			}
			source, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read source file: %w", err)
			}
			root, err := steph.Parse(opts.Grammar, args[0], string(source))
			if err != nil {
				return steph.NewSourceError(err, string(source))
			}
			_, err = fmt.Fprint(ioctx.StdoutFromContext(ctx), steph.Tree(root))
			return err
		},
	}
}

func lspCmd(cfg *Config) *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Run a language server on stdin and stdout",
		Long: `Run a Language Server Protocol server speaking over stdin and stdout.

The server reports parse and type errors as diagnostics, shows the type of
the expression under the cursor, and jumps to the binding of a name. Free
names are typed using the same steph.toml globals and --global flags as
evaluation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts, err := setup(ctx, *cfg)
			if err != nil {
				return err
			}

			if logFile != "" {
				f, err := os.Create(logFile)
				if err != nil {
					return fmt.Errorf("open lsp log: %w", err)
				}
				defer f.Close() //nolint:errcheck

				level := slog.LevelInfo
				if cfg.Debug {
					level = slog.LevelDebug
				}
				slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{
					Level: level,
				})))
			}

			slog.InfoContext(ctx, "starting LSP server")
			err = lsp.Serve(lsp.NewHandler(opts), stdrwc{}, stdrwc{})
			slog.InfoContext(ctx, "LSP server closed", "error", err)
			return nil
		},
	}

	cmd.Flags().StringVar(&logFile, "log-file", "", "Path to LSP log file (stderr if not specified)")

	return cmd
}

type stdrwc struct{}

func (stdrwc) Read(p []byte) (int, error) {
	return os.Stdin.Read(p)
}

func (stdrwc) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}

func (stdrwc) Close() error {
	if err := os.Stdin.Close(); err != nil {
		return err
	}
	return os.Stdout.Close()
}
