package query

import (
	"context"
	"fmt"
	"iter"
)

// Results is the lazy sequence produced by Command.Execute. Pages are
// requested as Next drains the previous one; abandoning Results issues no
// further requests.
type Results struct {
	cmd         *Command
	transformer Transformer
	next        func(ctx context.Context) (any, bool, error)

	value any
	err   error
	done  bool
}

// Next advances to the following result and reports whether there is one.
// After it returns false, Err reports the fault, if any.
func (r *Results) Next(ctx context.Context) bool {
	if r.done || r.err != nil || r.next == nil {
		r.done = true
		return false
	}
	v, ok, err := r.next(ctx)
	if err != nil {
		r.err = err
	}
	if !ok {
		r.done = true
		r.value = nil
		return false
	}
	r.value = v
	return true
}

// Value returns the current result.
func (r *Results) Value() any { return r.value }

// Err returns the error that ended the sequence.
func (r *Results) Err() error { return r.err }

// Default returns the value that stands for "no result" in this shape.
func (r *Results) Default() any { return r.transformer.Default() }

// Command returns the command driving the sequence.
func (r *Results) Command() *Command { return r.cmd }

// All ranges over the remaining results. Iteration stops at the first
// error, which is yielded with a nil value.
func (r *Results) All(ctx context.Context) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for r.Next(ctx) {
			if !yield(r.Value(), nil) {
				return
			}
		}
		if r.err != nil {
			yield(nil, r.err)
		}
	}
}

func as[T any](v any) (T, error) {
	if v == nil {
		var zero T
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return t, fmt.Errorf("%w: want %T, got %T", ErrResultType, t, v)
	}
	return t, nil
}

// Collect drains r into a slice.
func Collect[T any](ctx context.Context, r *Results) ([]T, error) {
	var out []T
	for r.Next(ctx) {
		t, err := as[T](r.Value())
		if err != nil {
			return out, err
		}
		out = append(out, t)
	}
	return out, r.Err()
}

// First returns the first result. When there is none it returns the
// shape's default and false.
func First[T any](ctx context.Context, r *Results) (T, bool, error) {
	if r.Next(ctx) {
		t, err := as[T](r.Value())
		return t, err == nil, err
	}
	if err := r.Err(); err != nil {
		var zero T
		return zero, false, err
	}
	t, err := as[T](r.Default())
	return t, false, err
}

// Each calls fn for every result until fn fails.
func Each[T any](ctx context.Context, r *Results, fn func(T) error) error {
	for r.Next(ctx) {
		t, err := as[T](r.Value())
		if err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
	}
	return r.Err()
}
