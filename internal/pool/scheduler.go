// Package pool implements the concurrency scheduler: a bounded worker
// pool that drives segment queries and recursive bisection in parallel
// while preserving a stable output order.
//
// The shape is an errgroup capped at a concurrency limit, each task
// tagged with its position, results handed back in that position's
// order regardless of completion order. Here the tag is a sub-segment's
// index within its parent's bisection-factor children, so the bisection
// engine can submit every child's checksum task at once and still
// consume the results in key order.
package pool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// MapOrdered runs f over every item in inputs with at most concurrency
// goroutines in flight, and returns their results in input order
// (= key order, since callers index inputs by ascending sub-range). A
// concurrency of 0 serializes; negative values run unbounded. The first
// error from any task aborts the group and is returned; results for
// sibling tasks are discarded.
func MapOrdered[In, Out any](ctx context.Context, inputs []In, concurrency int, f func(context.Context, In) (Out, error)) ([]Out, error) {
	eg, egCtx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		eg.SetLimit(concurrency)
	} else if concurrency == 0 {
		eg.SetLimit(1)
	}

	results := make([]Out, len(inputs))
	for i := range inputs {
		i := i
		in := inputs[i]
		eg.Go(func() error {
			out, err := f(egCtx, in)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
