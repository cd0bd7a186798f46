package steph

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/BurntSushi/toml"

	"github.com/vito/steph/pkg/types"
)

// ProjectConfigFile is the name of the project configuration file.
const ProjectConfigFile = "steph.toml"

// ProjectConfig represents a steph.toml project configuration file.
type ProjectConfig struct {
	// MaxDepth limits nested function calls. Zero means no limit.
	MaxDepth int `toml:"max_depth,omitempty"`

	// Globals are names made available to every program.
	Globals map[string]Global `toml:"globals,omitempty"`
}

// Global is a named value supplied to programs as a free name.
type Global struct {
	// Type is an optional annotation the value must conform to.
	Type string `toml:"type,omitempty"`

	// Value is a closed expression evaluated once when the config is
	// resolved.
	Value string `toml:"value"`
}

// LoadProjectConfig loads a steph.toml file from the given path.
func LoadProjectConfig(path string) (*ProjectConfig, error) {
	var config ProjectConfig
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &config, nil
}

// FindProjectConfig searches for a steph.toml file starting from dir and
// walking up to parent directories. Returns the path to steph.toml and the
// parsed config, or ("", nil, nil) if not found.
func FindProjectConfig(dir string) (string, *ProjectConfig, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", nil, err
	}
	for {
		path := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(path); err == nil {
			config, err := LoadProjectConfig(path)
			if err != nil {
				return "", nil, err
			}
			slog.Debug("loaded project config", "path", path)
			return path, config, nil
		}

		// Stop at .git boundary
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return "", nil, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil, nil
		}
		dir = parent
	}
}

// Bindings are the free names supplied to a program: their types for
// checking and their values for evaluation.
type Bindings struct {
	Types  map[string]types.Type
	Values map[string]types.Value
}

// TypeEnv returns the bindings as a type environment.
func (b Bindings) TypeEnv() types.TypeEnv {
	return types.NewEnv(b.Types)
}

// Scope returns the bindings as an evaluation scope.
func (b Bindings) Scope() types.Scope {
	return types.NewEnv(b.Values)
}

// Bind evaluates source as a closed expression and binds the result to
// name. If typeSource is not empty the value must have that type.
func (b *Bindings) Bind(ctx context.Context, g *Grammar, name, typeSource, source string) error {
	root, err := Parse(g, name, source)
	if err != nil {
		return fmt.Errorf("global %s: %w", name, err)
	}
	prog, err := Check(ctx, root, nil)
	if err != nil {
		return fmt.Errorf("global %s: %w", name, err)
	}

	t := prog.Type
	if typeSource != "" {
		declared, err := ParseType(g, typeSource)
		if err != nil {
			return fmt.Errorf("global %s: %w", name, err)
		}
		if !types.Assignable(declared, prog.Type) {
			return fmt.Errorf("global %s: declared as %s but has type %s", name, declared, prog.Type)
		}
		t = declared
	}

	val, err := prog.Eval(ctx, nil)
	if err != nil {
		return fmt.Errorf("global %s: %w", name, err)
	}

	if b.Types == nil {
		b.Types = map[string]types.Type{}
	}
	if b.Values == nil {
		b.Values = map[string]types.Value{}
	}
	b.Types[name] = t
	b.Values[name] = val
	return nil
}

// Resolve evaluates every global of the config, in name order.
func (config *ProjectConfig) Resolve(ctx context.Context, g *Grammar) (Bindings, error) {
	var b Bindings
	if config == nil {
		return b, nil
	}
	for _, name := range slices.Sorted(maps.Keys(config.Globals)) {
		global := config.Globals[name]
		if err := b.Bind(ctx, g, name, global.Type, global.Value); err != nil {
			return Bindings{}, err
		}
	}
	return b, nil
}
