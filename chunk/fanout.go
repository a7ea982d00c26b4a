package chunk

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Outcome is the result of processing one group.
type Outcome[T any] struct {
	Group Group
	Value T
	Err   error
}

// Fanout calls fn for every group and returns one outcome per group, in group
// order regardless of completion order. With limit <= 1 groups run
// sequentially; otherwise at most limit run at once. A failing or panicking
// group never affects its siblings.
func Fanout[T any](ctx context.Context, groups []Group, limit int, fn func(context.Context, Group) (T, error)) []Outcome[T] {
	out := make([]Outcome[T], len(groups))

	if limit <= 1 {
		for i, g := range groups {
			v, err := call(ctx, g, fn)
			out[i] = Outcome[T]{Group: g, Value: v, Err: err}
		}
		return out
	}

	var eg errgroup.Group
	eg.SetLimit(limit)
	for i, g := range groups {
		eg.Go(func() error {
			v, err := call(ctx, g, fn)
			out[i] = Outcome[T]{Group: g, Value: v, Err: err}
			return nil
		})
	}
	_ = eg.Wait()
	return out
}

// Successes returns the values of successful outcomes, in order.
func Successes[T any](outcomes []Outcome[T]) []T {
	var vals []T
	for _, o := range outcomes {
		if o.Err == nil {
			vals = append(vals, o.Value)
		}
	}
	return vals
}

// Failures returns the failed outcomes, in order.
func Failures[T any](outcomes []Outcome[T]) []Outcome[T] {
	var failed []Outcome[T]
	for _, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

func call[T any](ctx context.Context, g Group, fn func(context.Context, Group) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("chunk %d panicked: %v", g.Index, r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return v, err
	}
	return fn(ctx, g)
}
