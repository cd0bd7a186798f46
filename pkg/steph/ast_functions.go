package steph

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/vito/steph/pkg/types"
)

// FunctionArgument is one parameter of a function clause: either a
// *TypedArgument or a *PatternArgument.
type FunctionArgument interface {
	SourceLocatable
	ArgName() string
	fmt.Stringer
	argument()
}

// TypedArgument accepts any value of its declared type.
type TypedArgument struct {
	Name string
	Type types.Type
	Loc  *SourceLocation
}

func (a *TypedArgument) ArgName() string                    { return a.Name }
func (a *TypedArgument) GetSourceLocation() *SourceLocation { return a.Loc }
func (a *TypedArgument) String() string                     { return fmt.Sprintf("%s: %s", a.Name, a.Type) }
func (*TypedArgument) argument()                            {}

// PatternArgument accepts a value only if `value Op Guard` holds, with Guard
// evaluated when the function is called.
type PatternArgument struct {
	Name  string
	Op    types.Operator
	Guard Node
	Loc   *SourceLocation

	slot int
}

func (a *PatternArgument) ArgName() string                    { return a.Name }
func (a *PatternArgument) GetSourceLocation() *SourceLocation { return a.Loc }
func (a *PatternArgument) String() string                     { return fmt.Sprintf("%s %s ...", a.Name, a.Op.Symbol()) }
func (*PatternArgument) argument()                            {}

// FunctionPiece is one clause of a function. Its children are the guards of
// its pattern arguments followed by its body.
type FunctionPiece struct {
	node
	Args []FunctionArgument
}

var _ Node = (*FunctionPiece)(nil)

func NewFunctionPiece(loc *SourceLocation, args []FunctionArgument, body Node) (*FunctionPiece, error) {
	var kids []Node
	var guardNames []Names
	argNames := make([]string, 0, len(args))
	for _, arg := range args {
		for _, seen := range argNames {
			if seen == arg.ArgName() {
				return nil, NewParseError(loc, "repeated argument name %s", seen)
			}
		}
		argNames = append(argNames, arg.ArgName())
		if pattern, ok := arg.(*PatternArgument); ok {
			pattern.slot = len(kids)
			kids = append(kids, pattern.Guard)
			guardNames = append(guardNames, pattern.Guard.Names())
		}
	}
	kids = append(kids, body)

	free := unionNames(append(guardNames, withoutNames(body.Names(), argNames...))...)
	return &FunctionPiece{
		node: newNode(loc, free, kids...),
		Args: args,
	}, nil
}

func (p *FunctionPiece) Body() Node { return p.kids[len(p.kids)-1] }

// Binds reports whether one of the clause's arguments is named name.
func (p *FunctionPiece) Binds(name string) bool {
	for _, arg := range p.Args {
		if arg.ArgName() == name {
			return true
		}
	}
	return false
}

func (p *FunctionPiece) replaceChild(i int, child Node) {
	p.kids[i] = child
	for _, arg := range p.Args {
		if pattern, ok := arg.(*PatternArgument); ok && pattern.slot == i {
			pattern.Guard = child
		}
	}
}

// Infer types the clause as a function. A pattern argument takes the type of
// its guard; guards are typed in the enclosing scope, the body in the
// enclosing scope extended with the arguments.
func (p *FunctionPiece) Infer(ctx context.Context, c *Checker, env types.TypeEnv) (types.Type, error) {
	return withTypeErrorHandling(p, func() (types.Type, error) {
		argTypes := make([]types.Type, len(p.Args))
		bound := make(map[string]types.Type, len(p.Args))
		for i, arg := range p.Args {
			switch a := arg.(type) {
			case *TypedArgument:
				argTypes[i] = a.Type
			case *PatternArgument:
				guardType, err := c.Infer(ctx, a.Guard, env)
				if err != nil {
					return nil, err
				}
				if !guardType.SupportsOperator(a.Op) {
					return nil, NewTypeError(&types.OperatorError{Type: guardType, Op: a.Op}, a.Guard)
				}
				argTypes[i] = guardType
			}
			bound[arg.ArgName()] = argTypes[i]
		}

		ret, err := c.Infer(ctx, p.Body(), env.Extend(bound))
		if err != nil {
			return nil, err
		}
		return types.NewFunctionType(argTypes, ret), nil
	})
}

func (p *FunctionPiece) Eval(ctx context.Context, env types.Scope) (types.Value, error) {
	return nil, &EvalError{
		Inner:    errors.New("a function clause cannot be evaluated outside of its function"),
		Location: p.Loc,
	}
}

// matches reports whether every argument of the clause accepts the
// corresponding value. Guards are evaluated in scope.
func (p *FunctionPiece) matches(ctx context.Context, scope types.Scope, args []types.Value) (bool, error) {
	if len(args) != len(p.Args) {
		return false, nil
	}
	for i, arg := range p.Args {
		pattern, ok := arg.(*PatternArgument)
		if !ok {
			continue
		}
		guard, err := pattern.Guard.Eval(ctx, scope)
		if err != nil {
			return false, err
		}
		unified, err := types.Union(args[i].Type(), guard.Type())
		if err != nil {
			return false, nil
		}
		res, err := unified.BinaryOperator(pattern.Op, args[i], guard)
		if err != nil {
			return false, err
		}
		if b, ok := res.(types.BooleanValue); !ok || !b.Val {
			return false, nil
		}
	}
	return true, nil
}

// Function is an ordered list of clauses sharing one function type.
type Function struct {
	node

	// Name is the binding the function was defined by, if any. It is only
	// used in messages.
	Name string
}

var _ Node = (*Function)(nil)

func NewFunction(loc *SourceLocation, pieces ...*FunctionPiece) *Function {
	kids := make([]Node, len(pieces))
	free := make([]Names, len(pieces))
	for i, piece := range pieces {
		kids[i] = piece
		free[i] = piece.Names()
	}
	return &Function{node: newNode(loc, unionNames(free...), kids...)}
}

func (f *Function) Pieces() []*FunctionPiece {
	pieces := make([]*FunctionPiece, len(f.kids))
	for i, kid := range f.kids {
		pieces[i] = kid.(*FunctionPiece)
	}
	return pieces
}

func (f *Function) Infer(ctx context.Context, c *Checker, env types.TypeEnv) (types.Type, error) {
	return withTypeErrorHandling(f, func() (types.Type, error) {
		var fnType types.Type
		for _, piece := range f.Pieces() {
			t, err := c.Infer(ctx, piece, env)
			if err != nil {
				return nil, err
			}
			if fnType == nil {
				fnType = t
				continue
			}
			if !t.Eq(fnType) {
				return nil, NewTypeError(fmt.Errorf("function clauses have different types: %s and %s", fnType, t), piece)
			}
		}
		return fnType, nil
	})
}

// Eval closes over the function's free names.
func (f *Function) Eval(ctx context.Context, env types.Scope) (types.Value, error) {
	return withEvalErrorHandling(ctx, f, func() (types.Value, error) {
		checker := checkerFromContext(ctx)
		if checker == nil {
			return nil, fmt.Errorf("function evaluated before type checking")
		}
		t, _ := checker.TypeOf(f)
		fnType, ok := t.(*types.FunctionType)
		if !ok {
			return nil, fmt.Errorf("function evaluated before type checking")
		}
		closure := make(map[string]types.Value, len(f.free))
		for name := range f.free {
			val, ok := env.Lookup(name)
			if !ok {
				return nil, &UnboundNameError{Name: name}
			}
			closure[name] = val
		}
		return &BoundFunction{
			Function: f,
			Closure:  types.NewEnv(closure),
			FnType:   fnType,
			checker:  checker,
		}, nil
	})
}

// BoundFunction is a function value: a Function together with the values of
// its free names at the time it was created.
type BoundFunction struct {
	Function *Function
	Closure  types.Scope
	FnType   *types.FunctionType

	// checker typed Function; functions nested in its body take their types
	// from it, even when called from a program checked separately.
	checker *Checker
}

var _ types.Value = (*BoundFunction)(nil)

func (bf *BoundFunction) Type() types.Type { return bf.FnType }

func (bf *BoundFunction) String() string {
	name := bf.Function.Name
	if name == "" {
		name = "<anonymous>"
	}
	return fmt.Sprintf("%s : %s", name, bf.FnType)
}

// Call runs the first clause whose arguments accept args. The clause sees
// the caller's scope overlaid with the closure; guards are evaluated there
// before the arguments are bound.
func (bf *BoundFunction) Call(ctx context.Context, caller types.Scope, args []types.Value) (types.Value, error) {
	if bf.checker != nil {
		ctx = withChecker(ctx, bf.checker)
	}
	scope := caller.Overlay(bf.Closure)
	for _, piece := range bf.Function.Pieces() {
		ok, err := piece.matches(ctx, scope, args)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		bound := make(map[string]types.Value, len(args))
		for i, arg := range piece.Args {
			bound[arg.ArgName()] = args[i]
		}
		return piece.Body().Eval(ctx, scope.Extend(bound))
	}
	return nil, &NoMatchingClauseError{Function: bf.Function.Name, Args: args}
}

// FunctionCall applies a function to arguments evaluated in the caller's
// scope.
type FunctionCall struct {
	node
}

var _ Node = (*FunctionCall)(nil)

func NewFunctionCall(loc *SourceLocation, fn Node, args ...Node) *FunctionCall {
	kids := append([]Node{fn}, args...)
	free := make([]Names, len(kids))
	for i, kid := range kids {
		free[i] = kid.Names()
	}
	return &FunctionCall{node: newNode(loc, unionNames(free...), kids...)}
}

func (fc *FunctionCall) Fn() Node     { return fc.kids[0] }
func (fc *FunctionCall) Args() []Node { return fc.kids[1:] }

func (fc *FunctionCall) Infer(ctx context.Context, c *Checker, env types.TypeEnv) (types.Type, error) {
	return withTypeErrorHandling(fc, func() (types.Type, error) {
		t, err := c.Infer(ctx, fc.Fn(), env)
		if err != nil {
			return nil, err
		}
		fnType, ok := t.(*types.FunctionType)
		if !ok {
			return nil, NewTypeError(fmt.Errorf("cannot call a value of type %s", t), fc.Fn())
		}
		args := fc.Args()
		if len(args) != len(fnType.Args) {
			return nil, fmt.Errorf("function of type %s called with %d argument(s)", fnType, len(args))
		}
		for i, arg := range args {
			argType, err := c.Infer(ctx, arg, env)
			if err != nil {
				return nil, err
			}
			if !types.Assignable(fnType.Args[i], argType) {
				return nil, NewTypeError(fmt.Errorf("argument %d: expected %s, got %s", i+1, fnType.Args[i], argType), arg)
			}
		}
		return fnType.Returns, nil
	})
}

func (fc *FunctionCall) Eval(ctx context.Context, env types.Scope) (types.Value, error) {
	return withEvalErrorHandling(ctx, fc, func() (types.Value, error) {
		ctx, err := enterCall(ctx)
		if err != nil {
			return nil, err
		}

		fnVal, err := fc.Fn().Eval(ctx, env)
		if err != nil {
			return nil, err
		}
		fn, ok := fnVal.(*BoundFunction)
		if !ok {
			return nil, fmt.Errorf("cannot call %s", fnVal)
		}

		args := make([]types.Value, len(fc.Args()))
		for i, arg := range fc.Args() {
			args[i], err = arg.Eval(ctx, env)
			if err != nil {
				return nil, err
			}
		}

		return fn.Call(ctx, env, args)
	})
}

func describeArgs(args []FunctionArgument) string {
	strs := make([]string, len(args))
	for i, arg := range args {
		strs[i] = arg.String()
	}
	return strings.Join(strs, ", ")
}
