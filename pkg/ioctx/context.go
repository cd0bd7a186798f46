// Package ioctx carries the writers programs print to on a context, so that
// tests and embedders can capture output.
package ioctx

import (
	"context"
	"io"
)

type stream int

const (
	stdout stream = iota
	stderr
)

func writerFrom(ctx context.Context, s stream) io.Writer {
	if w, ok := ctx.Value(s).(io.Writer); ok {
		return w
	}
	return io.Discard
}

// StdoutFromContext returns the writer for program output, or io.Discard.
func StdoutFromContext(ctx context.Context) io.Writer {
	return writerFrom(ctx, stdout)
}

func StdoutToContext(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, stdout, w)
}

// StderrFromContext returns the writer for diagnostics, or io.Discard.
func StderrFromContext(ctx context.Context) io.Writer {
	return writerFrom(ctx, stderr)
}

func StderrToContext(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, stderr, w)
}
