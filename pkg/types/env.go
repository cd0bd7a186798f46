package types

import (
	"maps"
	"slices"
)

// Env is an immutable scope mapping names to T. Extending an Env returns a
// new frame; the receiver is never modified, so an Env can be shared freely
// between goroutines and closures.
type Env[T any] struct {
	parent *Env[T]
	vars   map[string]T
}

// TypeEnv maps free names to their static types.
type TypeEnv = *Env[Type]

// Scope maps names to runtime values.
type Scope = *Env[Value]

// NewEnv creates a root frame holding a copy of vars.
func NewEnv[T any](vars map[string]T) *Env[T] {
	return &Env[T]{vars: maps.Clone(vars)}
}

// Lookup finds the innermost binding for name. A nil Env is empty.
func (env *Env[T]) Lookup(name string) (T, bool) {
	for e := env; e != nil; e = e.parent {
		if v, ok := e.vars[name]; ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Bind returns a new Env with name bound to val.
func (env *Env[T]) Bind(name string, val T) *Env[T] {
	return &Env[T]{parent: env, vars: map[string]T{name: val}}
}

// Extend returns a new Env with every entry of vars bound on top of env.
func (env *Env[T]) Extend(vars map[string]T) *Env[T] {
	if len(vars) == 0 {
		return env
	}
	return &Env[T]{parent: env, vars: maps.Clone(vars)}
}

// Overlay returns a new Env in which bindings from top shadow env.
func (env *Env[T]) Overlay(top *Env[T]) *Env[T] {
	return env.Extend(top.Flatten())
}

// Flatten collapses all frames into a single map.
func (env *Env[T]) Flatten() map[string]T {
	var frames []*Env[T]
	for e := env; e != nil; e = e.parent {
		frames = append(frames, e)
	}
	flat := map[string]T{}
	for _, e := range slices.Backward(frames) {
		maps.Copy(flat, e.vars)
	}
	return flat
}

// Names returns every bound name in sorted order.
func (env *Env[T]) Names() []string {
	return slices.Sorted(maps.Keys(env.Flatten()))
}
