package pool

import (
	"context"

	"github.com/utkarsh5026/mhcpool/internal/types"
)

// Go submits fn to p and returns a typed future. Errors and panics raised
// by fn arrive as *TaskError. With a nil pool fn runs in the calling
// goroutine before Go returns.
//
// Example:
//
//	f, err := pool.Go(ctx, p, func(ctx context.Context) (float64, error) {
//	    return model.Score(ctx), nil
//	})
//	if err != nil {
//	    return err
//	}
//	score, _, err := f.Get()
func Go[R any](ctx context.Context, p *Pool, fn func(context.Context) (R, error)) (*Future[R], error) {
	f := types.NewFuture[R, int64]()

	if p == nil {
		v, err := CallWrapped(ctx, fn)
		f.Resolve(types.NewResult(v, int64(0), err))
		return f, nil
	}

	id := p.nextID.Add(1)
	j := &job{
		id:  id,
		ctx: ctx,
		run: func(ctx context.Context) error {
			v, err := CallWrapped(ctx, fn)
			f.Resolve(types.NewResult(v, id, err))
			return err
		},
		fail: func(err error) {
			var zero R
			f.Resolve(types.NewResult(zero, id, err))
		},
	}

	if err := p.submit(ctx, j); err != nil {
		return nil, err
	}
	return f, nil
}

// Map runs fn over items on p and returns the results in input order.
// It stops at the first failed item in input order and returns its error;
// items not yet started are skipped. A nil pool runs the items serially in
// the calling goroutine.
func Map[T, R any](ctx context.Context, p *Pool, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}

	if p == nil {
		for i, item := range items {
			v, err := CallWrapped(ctx, func(ctx context.Context) (R, error) {
				return callItem(ctx, fn, item)
			})
			if err != nil {
				return results, err
			}
			results[i] = v
		}
		return results, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	futures := make([]*Future[R], len(items))
	for i, item := range items {
		f, err := Go(ctx, p, func(ctx context.Context) (R, error) {
			return callItem(ctx, fn, item)
		})
		if err != nil {
			return results, err
		}
		futures[i] = f
	}

	for i, f := range futures {
		v, _, err := f.Get()
		if err != nil {
			return results, err
		}
		results[i] = v
	}

	return results, nil
}

// callItem attributes a returned error to fn rather than to the closure
// Map submits.
func callItem[T, R any](ctx context.Context, fn func(context.Context, T) (R, error), item T) (R, error) {
	v, err := fn(ctx, item)
	if err != nil {
		return v, wrapReturned(err, fn)
	}
	return v, nil
}
