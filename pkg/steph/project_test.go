package steph

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vito/steph/pkg/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFindProjectConfig(t *testing.T) {
	t.Run("found in parent", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, ProjectConfigFile), "max_depth = 50\n")
		nested := filepath.Join(root, "a", "b")
		require.NoError(t, os.MkdirAll(nested, 0o755))

		path, config, err := FindProjectConfig(nested)
		require.NoError(t, err)
		require.NotNil(t, config)
		assert.Equal(t, filepath.Join(root, ProjectConfigFile), path)
		assert.Equal(t, 50, config.MaxDepth)
	})

	t.Run("stops at git boundary", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, ProjectConfigFile), "max_depth = 50\n")
		repo := filepath.Join(root, "repo")
		require.NoError(t, os.MkdirAll(filepath.Join(repo, ".git"), 0o755))

		path, config, err := FindProjectConfig(filepath.Join(repo))
		require.NoError(t, err)
		assert.Empty(t, path)
		assert.Nil(t, config)
	})

	t.Run("malformed", func(t *testing.T) {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, ProjectConfigFile), "max_depth = \n")
		_, _, err := FindProjectConfig(root)
		require.Error(t, err)
	})
}

func TestResolveGlobals(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ProjectConfigFile), `max_depth = 200

[globals.limit]
value = "10"

[globals.names]
type = "List(String)"
value = "[]"

[globals.inc]
type = "(Number) => Number"
value = "(n : Number) => n + 1"
`)

	config, err := LoadProjectConfig(filepath.Join(root, ProjectConfigFile))
	require.NoError(t, err)
	require.Equal(t, 200, config.MaxDepth)
	require.Len(t, config.Globals, 3)

	ctx := context.Background()
	bindings, err := config.Resolve(ctx, DefaultGrammar())
	require.NoError(t, err)

	assert.Equal(t, types.Number, bindings.Types["limit"])
	assert.Equal(t, "List(String)", bindings.Types["names"].String())
	assert.Equal(t, "(Number) => Number", bindings.Types["inc"].String())

	prog, err := Check(ctx, parse(t, `if (names == []) inc(limit) else 0`), bindings.TypeEnv())
	require.NoError(t, err)
	val, err := prog.Eval(ctx, bindings.Scope())
	require.NoError(t, err)
	require.Equal(t, num(11), val)
}

func TestBindErrors(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name     string
		typ      string
		source   string
		contains string
	}{
		{"free name", "", "y + 1", `global g: unknown name "y"`},
		{"type mismatch", "String", "1", "global g: declared as String but has type Number"},
		{"bad type", "Integer", "1", "global g: "},
		{"syntax", "", "1 +", "global g: "},
		{"runtime", "", "1 / 0", "global g: division by zero"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var b Bindings
			err := b.Bind(ctx, DefaultGrammar(), "g", test.typ, test.source)
			require.ErrorContains(t, err, test.contains)
			require.Empty(t, b.Values)
		})
	}
}
