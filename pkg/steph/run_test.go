package steph

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vito/steph/pkg/ioctx"
	"github.com/vito/steph/pkg/types"
)

func captureOutput(ctx context.Context) (context.Context, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	ctx = ioctx.StdoutToContext(ctx, &stdout)
	ctx = ioctx.StderrToContext(ctx, &stderr)
	return ctx, &stdout, &stderr
}

func TestRunFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fac.steph")
	writeFile(t, path, facSource+"\n")

	ctx, stdout, stderr := captureOutput(context.Background())
	require.NoError(t, RunFile(ctx, path, RunOptions{}))
	require.Equal(t, "3628800\n", stdout.String())
	require.Empty(t, stderr.String())
}

func TestRunFileWithBindings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "greet.steph")
	writeFile(t, path, `greeting + ", " + name`)

	var b Bindings
	ctx := context.Background()
	require.NoError(t, b.Bind(ctx, DefaultGrammar(), "greeting", "", `"hello"`))
	require.NoError(t, b.Bind(ctx, DefaultGrammar(), "name", "String", `"steph"`))

	ctx, stdout, _ := captureOutput(ctx)
	require.NoError(t, RunFile(ctx, path, RunOptions{Bindings: b}))
	require.Equal(t, "\"hello, steph\"\n", stdout.String())
}

func TestRunFileDebug(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "one.steph")
	writeFile(t, path, `x + 1`)

	b := Bindings{
		Types:  map[string]types.Type{"x": types.Number},
		Values: map[string]types.Value{"x": num(1)},
	}

	ctx, stdout, stderr := captureOutput(context.Background())
	require.NoError(t, RunFile(ctx, path, RunOptions{Bindings: b, Debug: true}))
	require.Equal(t, "2\n", stdout.String())
	require.Contains(t, stderr.String(), "Arithmetic +\n  Reference x\n  Literal 1\n")
	require.Contains(t, stderr.String(), "globals:")
}

func TestEvalFileMaxDepth(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deep.steph")
	writeFile(t, path, `{
  let count : (Number) => Number = (n == 0) => 0, (n : Number) => 1 + count(n - 1);
  return count(20);
}`)

	val, err := EvalFile(context.Background(), path, RunOptions{})
	require.NoError(t, err)
	require.Equal(t, num(20), val)

	_, err = EvalFile(context.Background(), path, RunOptions{MaxDepth: 10})
	var depthErr *DepthError
	require.ErrorAs(t, err, &depthErr)
	var sourceErr *SourceError
	require.ErrorAs(t, err, &sourceErr)
}

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fn.steph")
	writeFile(t, path, `(xs : List(Number)) => xs + [1]`)

	prog, err := CheckFile(context.Background(), path, RunOptions{})
	require.NoError(t, err)
	require.Equal(t, "(List(Number)) => List(Number)", prog.Type.String())

	_, err = CheckFile(context.Background(), filepath.Join(dir, "missing.steph"), RunOptions{})
	require.ErrorContains(t, err, "failed to read source file")
}

func TestRunFiles(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for name, source := range map[string]string{
		"a.steph": `1 + 1`,
		"b.steph": `"b"`,
		"c.steph": `true + 1`,
		"d.steph": `[1, 2]`,
	} {
		writeFile(t, filepath.Join(dir, name), source)
	}
	for _, name := range []string{"d.steph", "a.steph", "c.steph", "b.steph"} {
		paths = append(paths, filepath.Join(dir, name))
	}

	ctx, stdout, _ := captureOutput(context.Background())
	err := RunFiles(ctx, paths, RunOptions{})

	var sourceErr *SourceError
	require.ErrorAs(t, err, &sourceErr)
	require.Equal(t, paths[2], sourceErr.Location.Filename)

	require.Equal(t, paths[0]+": [1, 2]\n"+paths[1]+": 2\n"+paths[3]+": \"b\"\n", stdout.String())
}
