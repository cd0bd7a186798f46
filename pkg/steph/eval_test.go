package steph

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/dagger/testctx"
	"github.com/dagger/testctx/oteltest"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/vito/steph/pkg/types"
)

func TestMain(m *testing.M) {
	os.Exit(oteltest.Main(m))
}

type EvalSuite struct{}

func TestEval(tT *testing.T) {
	testctx.New(tT,
		oteltest.WithTracing[*testing.T](),
		oteltest.WithLogging[*testing.T](),
	).RunTests(EvalSuite{})
}

func evalSource(ctx context.Context, source string, values map[string]types.Value) (types.Value, error) {
	root, err := Parse(DefaultGrammar(), "test.steph", source)
	if err != nil {
		return nil, err
	}
	return Evaluate(ctx, root, types.NewEnv(values))
}

func num(n int64) types.Value {
	return types.NumberValue{Val: n}
}

func (EvalSuite) TestValues(ctx context.Context, t *testctx.T) {
	tests := []struct {
		name     string
		source   string
		expected types.Value
	}{
		{"number", `42`, num(42)},
		{"negative", `-10`, num(-10)},
		{"string", `"hello, " + "world"`, types.StringValue{Val: "hello, world"}},
		{"escaped string", `"say \"hi\""`, types.StringValue{Val: `say "hi"`}},
		{"true", `true`, types.BooleanValue{Val: true}},
		{"precedence", `1 + 2 * 3 + 4`, num(11)},
		{"grouping", `(1 + 2) * 3`, num(9)},
		{"left associative subtraction", `10 - 2 - 3`, num(5)},
		{"left associative division", `8 / 2 / 2`, num(2)},
		{"integer division", `7 / 2`, num(3)},
		{"negated group", `-(2 + 3) * 2`, num(-10)},
		{"less than", `1 < 2`, types.BooleanValue{Val: true}},
		{"less or equal", `2 <= 2`, types.BooleanValue{Val: true}},
		{"not equal", `3 != 3`, types.BooleanValue{Val: false}},
		{"string equality", `"a" == "a"`, types.BooleanValue{Val: true}},
		{"string ordering", `"apple" < "banana"`, types.BooleanValue{Val: true}},
		{"and", `true && false`, types.BooleanValue{Val: false}},
		{"or", `true || false`, types.BooleanValue{Val: true}},
		{"if", `if (1 < 2) "yes" else "no"`, types.StringValue{Val: "yes"}},
		{"else", `if (1 > 2) "yes" else "no"`, types.StringValue{Val: "no"}},
		{"untaken branch is not evaluated", `if (true) 1 else 1 / 0`, num(1)},
		{"block", `{ let foo = 32; return foo + 10; }`, num(42)},
		{"block without trailing semicolon", `{ let x = 5; return x + x }`, num(10)},
		{"block with only a result", `{ return 7; }`, num(7)},
		{"comments", "{\n  // the answer\n  let x = 42;\n  return x;\n}", num(42)},
		{"siblings in dependency order", `{ let b = a + 1; let a = 1; return b; }`, num(2)},
		{"list", `[1, 2, 3]`, types.NewListValue(types.Number, num(1), num(2), num(3))},
		{"empty list", `[]`, types.NewListValue(types.Nothing)},
		{"list concatenation", `[1] + [2, 3]`, types.NewListValue(types.Number, num(1), num(2), num(3))},
		{"list equality", `[1, 2] == [1, 2]`, types.BooleanValue{Val: true}},
	}

	for _, test := range tests {
		t.Run(test.name, func(ctx context.Context, t *testctx.T) {
			val, err := evalSource(ctx, test.source, nil)
			require.NoError(t, err)
			require.True(t, types.Equal(test.expected, val), "expected %s, got %s", test.expected, val)
		})
	}
}

func (EvalSuite) TestFreeNames(ctx context.Context, t *testctx.T) {
	source := `{
  let a = x + 1;
  let b = (i : Number, j : Number) => {
    return i + j;
  };
  return 1 + 2 + a + x + b(10, 20);
}`

	root, err := Parse(DefaultGrammar(), "test.steph", source)
	require.NoError(t, err)
	require.Equal(t, []string{"x"}, root.Names().Sorted())

	prog, err := Check(ctx, root, types.NewEnv(map[string]types.Type{"x": types.Number}))
	require.NoError(t, err)
	require.Equal(t, types.Number, prog.Type)

	for x, expected := range map[int64]int64{42: 118, 0: 34} {
		t.Run(fmt.Sprintf("x=%d", x), func(ctx context.Context, t *testctx.T) {
			val, err := prog.Eval(ctx, types.NewEnv(map[string]types.Value{"x": num(x)}))
			require.NoError(t, err)
			require.Equal(t, num(expected), val)
		})
	}
}

func (EvalSuite) TestGlobalFunction(ctx context.Context, t *testctx.T) {
	identity, err := evalSource(ctx, `(n : Number) => n`, nil)
	require.NoError(t, err)

	val, err := evalSource(ctx, `foo + bar(12) + 10`, map[string]types.Value{
		"foo": num(42),
		"bar": identity,
	})
	require.NoError(t, err)
	require.Equal(t, num(64), val)

	t.Run("returning a closure", func(ctx context.Context, t *testctx.T) {
		var b Bindings
		require.NoError(t, b.Bind(ctx, DefaultGrammar(), "adder", "", `(x : Number) => (y : Number) => x + y`))

		root, err := Parse(DefaultGrammar(), "test.steph", `adder(1)(2)`)
		require.NoError(t, err)
		prog, err := Check(ctx, root, b.TypeEnv())
		require.NoError(t, err)
		val, err := prog.Eval(ctx, b.Scope())
		require.NoError(t, err)
		require.Equal(t, num(3), val)
	})
}

func (EvalSuite) TestRecursion(ctx context.Context, t *testctx.T) {
	t.Run("if", func(ctx context.Context, t *testctx.T) {
		val, err := evalSource(ctx, `{
  let fac : (Number) => Number = (n : Number) => if (n == 1) 1 else n * fac(n - 1);
  return fac(10);
}`, nil)
		require.NoError(t, err)
		require.Equal(t, num(3628800), val)
	})

	t.Run("clauses", func(ctx context.Context, t *testctx.T) {
		val, err := evalSource(ctx, `{
  let fac : (Number) => Number = (n == 1) => 1, (n : Number) => n * fac(n - 1);
  return fac(10);
}`, nil)
		require.NoError(t, err)
		require.Equal(t, num(3628800), val)
	})

	t.Run("through a nested block", func(ctx context.Context, t *testctx.T) {
		val, err := evalSource(ctx, `{
  let sum : (List(Number), Number) => Number = (l : List(Number), acc : Number) => {
    let next = acc + 1;
    return if (l == []) acc else sum([], next);
  };
  return sum([1], 0);
}`, nil)
		require.NoError(t, err)
		require.Equal(t, num(1), val)
	})

	t.Run("fibonacci", func(ctx context.Context, t *testctx.T) {
		val, err := evalSource(ctx, `{
  let fib : (Number) => Number =
    (n == 0) => 0,
    (n == 1) => 1,
    (n : Number) => fib(n - 1) + fib(n - 2);
  return fib(15);
}`, nil)
		require.NoError(t, err)
		require.Equal(t, num(610), val)
	})
}

func (EvalSuite) TestClauses(ctx context.Context, t *testctx.T) {
	source := `{
  let describe = (n == 1) => "one", (n < 0) => "negative", (n : Number) => "many";
  return describe(x);
}`
	root, err := Parse(DefaultGrammar(), "test.steph", source)
	require.NoError(t, err)
	prog, err := Check(ctx, root, types.NewEnv(map[string]types.Type{"x": types.Number}))
	require.NoError(t, err)

	for x, expected := range map[int64]string{1: "one", -5: "negative", 0: "many", 7: "many"} {
		val, err := prog.Eval(ctx, types.NewEnv(map[string]types.Value{"x": num(x)}))
		require.NoError(t, err)
		require.Equal(t, types.StringValue{Val: expected}, val, "x = %d", x)
	}
}

func (EvalSuite) TestGuardsSeeClosure(ctx context.Context, t *testctx.T) {
	source := `{
  let equals = (value : Number) => {
    return (arg == value) => true, (arg : Number) => false;
  };
  return {
    let equals10 = equals(10);
    return equals10(x);
  };
}`
	root, err := Parse(DefaultGrammar(), "test.steph", source)
	require.NoError(t, err)
	prog, err := Check(ctx, root, types.NewEnv(map[string]types.Type{"x": types.Number}))
	require.NoError(t, err)
	require.Equal(t, types.Boolean, prog.Type)

	val, err := prog.Eval(ctx, types.NewEnv(map[string]types.Value{"x": num(10)}))
	require.NoError(t, err)
	require.Equal(t, types.BooleanValue{Val: true}, val)

	val, err = prog.Eval(ctx, types.NewEnv(map[string]types.Value{"x": num(20)}))
	require.NoError(t, err)
	require.Equal(t, types.BooleanValue{Val: false}, val)
}

func (EvalSuite) TestClosures(ctx context.Context, t *testctx.T) {
	tests := []struct {
		name     string
		source   string
		expected types.Value
	}{
		{
			name:     "captures a sibling",
			source:   `{ let y = 10; let f = (n : Number) => n + y; return f(1); }`,
			expected: num(11),
		},
		{
			name:     "curried",
			source:   `{ let add = (a : Number) => (b : Number) => a + b; let add5 = add(5); return add5(3); }`,
			expected: num(8),
		},
		{
			name:     "immediately applied",
			source:   `{ let add = (a : Number) => (b : Number) => a + b; return add(2)(3); }`,
			expected: num(5),
		},
		{
			name:     "argument shadows outer binding",
			source:   `{ let n = 100; let f = (n : Number) => n + 1; return f(1); }`,
			expected: num(2),
		},
		{
			name: "inner let shadows the binding",
			source: `{
  let f : (Number) => Number = (n : Number) => { let f = n * 2; return f; };
  return f(4);
}`,
			expected: num(8),
		},
		{
			name:     "closure wins over caller",
			source:   `{ let y = 1; let f = (n : Number) => n + y; return { let y = 1000; return f(0); }; }`,
			expected: num(1),
		},
		{
			name: "closure escaping a recursive binding",
			source: `{
  let h = {
    let k = 5;
    let f : (Number) => (Number) => Number =
      (n == 0) => ((x : Number) => k),
      (n : Number) => ((m : Number) => f(m - 1)(0));
    return f(1);
  };
  return h(1);
}`,
			expected: num(5),
		},
		{
			name: "recursion below an unrelated binding",
			source: `{
  let k = 1;
  let f : (Number) => Number = (n == 0) => k, (n : Number) => { let j = 2; return f(n - j); };
  return f(4) + 1;
}`,
			expected: num(2),
		},
		{
			name:     "empty list argument",
			source:   `{ let append1 = (l : List(Number)) => l + [1]; return append1([]); }`,
			expected: types.NewListValue(types.Number, num(1)),
		},
		{
			name:     "zero arguments",
			source:   `{ let answer = () => 42; return answer(); }`,
			expected: num(42),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(ctx context.Context, t *testctx.T) {
			val, err := evalSource(ctx, test.source, nil)
			require.NoError(t, err)
			require.True(t, types.Equal(test.expected, val), "expected %s, got %s", test.expected, val)
		})
	}
}

func (EvalSuite) TestValueTypeMatchesCheckedType(ctx context.Context, t *testctx.T) {
	tests := []struct {
		name    string
		source  string
		globals map[string]string
	}{
		{name: "sum", source: `1 + 2`},
		{name: "concatenation", source: `"a" + "b"`},
		{name: "comparison", source: `1 < 2`},
		{name: "empty list", source: `[]`},
		{name: "empty list first", source: `[[], [1]]`},
		{name: "empty list last", source: `[[1], []]`},
		{name: "lambda", source: `(l : List(Number)) => [l]`},
		{name: "bound lambda", source: `{ let f = (n : Number) => n; return f; }`},
		{name: "partial application", source: `{ let add = (a : Number) => (b : Number) => a + b; return add(1); }`},
		{
			name: "closure escaping a recursive binding",
			source: `{
  let h = {
    let k = 5;
    let f : (Number) => (Number) => Number =
      (n == 0) => ((x : Number) => k),
      (n : Number) => ((m : Number) => f(m - 1)(0));
    return f(1);
  };
  return h(1);
}`,
		},
		{
			name: "recursive closure returned",
			source: `{
  let k = "!";
  let f : (Number) => (String) => String =
    (n == 0) => ((s : String) => s + k),
    (n : Number) => ((s : String) => f(n - 1)(s + "."));
  return f(3);
}`,
		},
		{
			name: "recursive closure applied",
			source: `{
  let k = "!";
  let f : (Number) => (String) => String =
    (n == 0) => ((s : String) => s + k),
    (n : Number) => ((s : String) => f(n - 1)(s + "."));
  return f(2)("a");
}`,
		},
		{
			name: "recursion below an unrelated binding",
			source: `{
  let k = 1;
  let f : (Number) => Number = (n == 0) => k, (n : Number) => { let j = 2; return f(n - j); };
  return f(4) + 1;
}`,
		},
		{
			name:    "global returning a closure",
			source:  `adder(1)`,
			globals: map[string]string{"adder": `(x : Number) => (y : Number) => x + y`},
		},
		{
			name:    "global closure applied",
			source:  `adder(1)(2)`,
			globals: map[string]string{"adder": `(x : Number) => (y : Number) => x + y`},
		},
		{
			name:    "global applied to a local function",
			source:  `{ let inc = (n : Number) => n + 1; return twice(inc)(1); }`,
			globals: map[string]string{"twice": `(f : (Number) => Number) => (n : Number) => f(f(n))`},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(ctx context.Context, t *testctx.T) {
			var b Bindings
			for name, source := range test.globals {
				require.NoError(t, b.Bind(ctx, DefaultGrammar(), name, "", source))
			}

			root, err := Parse(DefaultGrammar(), "test.steph", test.source)
			require.NoError(t, err)
			prog, err := Check(ctx, root, b.TypeEnv())
			require.NoError(t, err)
			val, err := prog.Eval(ctx, b.Scope())
			require.NoError(t, err)
			require.True(t, prog.Type.Eq(val.Type()), "checked %s, evaluated %s", prog.Type, val.Type())
		})
	}
}

func (EvalSuite) TestFunctionValues(ctx context.Context, t *testctx.T) {
	val, err := evalSource(ctx, `{ let inc = (n : Number) => n + 1; return inc; }`, nil)
	require.NoError(t, err)

	fn, ok := val.(*BoundFunction)
	require.True(t, ok)
	require.Equal(t, "inc : (Number) => Number", fn.String())

	res, err := fn.Call(ctx, nil, []types.Value{num(41)})
	require.NoError(t, err)
	require.Equal(t, num(42), res)

	val, err = evalSource(ctx, `(n : Number) => n`, nil)
	require.NoError(t, err)
	require.Equal(t, "<anonymous> : (Number) => Number", val.String())
}

func (EvalSuite) TestRuntimeErrors(ctx context.Context, t *testctx.T) {
	t.Run("no matching clause", func(ctx context.Context, t *testctx.T) {
		_, err := evalSource(ctx, `{ let f = (n == 1) => 1; return f(2); }`, nil)
		var noMatch *NoMatchingClauseError
		require.ErrorAs(t, err, &noMatch)
		require.Equal(t, "f", noMatch.Function)
		require.Equal(t, []types.Value{num(2)}, noMatch.Args)
		require.EqualError(t, err, "no matching clause for f(2)")

		var evalErr *EvalError
		require.ErrorAs(t, err, &evalErr)
		require.Equal(t, 1, evalErr.Location.Line)
		require.Equal(t, 33, evalErr.Location.Column)
	})

	t.Run("division by zero", func(ctx context.Context, t *testctx.T) {
		_, err := evalSource(ctx, `{ let zero = 0; return 10 / zero; }`, nil)
		require.ErrorIs(t, err, types.ErrDivisionByZero)
		var evalErr *EvalError
		require.ErrorAs(t, err, &evalErr)
	})

	t.Run("missing global", func(ctx context.Context, t *testctx.T) {
		root, err := Parse(DefaultGrammar(), "test.steph", `x + 1`)
		require.NoError(t, err)
		prog, err := Check(ctx, root, types.NewEnv(map[string]types.Type{"x": types.Number}))
		require.NoError(t, err)

		_, err = prog.Eval(ctx, nil)
		var unbound *UnboundNameError
		require.ErrorAs(t, err, &unbound)
		require.Equal(t, "x", unbound.Name)
	})

	t.Run("call depth", func(ctx context.Context, t *testctx.T) {
		_, err := evalSource(WithMaxDepth(ctx, 100), `{
  let loop : (Number) => Number = (n : Number) => loop(n + 1);
  return loop(0);
}`, nil)
		var depthErr *DepthError
		require.ErrorAs(t, err, &depthErr)
		require.Equal(t, 100, depthErr.Limit)
	})

	t.Run("depth within limit", func(ctx context.Context, t *testctx.T) {
		val, err := evalSource(WithMaxDepth(ctx, 100), `{
  let count : (Number) => Number = (n == 0) => 0, (n : Number) => 1 + count(n - 1);
  return count(50);
}`, nil)
		require.NoError(t, err)
		require.Equal(t, num(50), val)
	})

	t.Run("canceled", func(ctx context.Context, t *testctx.T) {
		ctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := evalSource(ctx, `{ let f = (n : Number) => n; return f(1); }`, nil)
		require.ErrorIs(t, err, context.Canceled)
		var evalErr *EvalError
		require.False(t, errors.As(err, &evalErr))
	})
}

func (EvalSuite) TestConcurrentEvaluation(ctx context.Context, t *testctx.T) {
	root, err := Parse(DefaultGrammar(), "test.steph", `{
  let fac : (Number) => Number = (n == 1) => 1, (n : Number) => n * fac(n - 1);
  return fac(x);
}`)
	require.NoError(t, err)
	prog, err := Check(ctx, root, types.NewEnv(map[string]types.Type{"x": types.Number}))
	require.NoError(t, err)

	results := make([]types.Value, 12)
	eg, ctx := errgroup.WithContext(ctx)
	for i := range results {
		eg.Go(func() error {
			val, err := prog.Eval(ctx, types.NewEnv(map[string]types.Value{"x": num(int64(i + 1))}))
			if err != nil {
				return err
			}
			results[i] = val
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	expected := int64(1)
	for i, val := range results {
		expected *= int64(i + 1)
		require.Equal(t, num(expected), val)
	}
}
