package transfer

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/pithecene-io/canisnap/policy"
)

// Window limits.
const (
	LinearConcurrency     = 20
	ChunkStoreConcurrency = 12
)

// WindowOptions configures RunWindows.
type WindowOptions struct {
	// Limit is the maximum number of items issued concurrently.
	Limit int
	// Retry wraps every item call. Nil means strict (one attempt).
	Retry policy.Retry
	// OnWindow is called after each window is delivered to the sink.
	OnWindow func(done, total int)
}

// RunWindows processes items in consecutive windows of at most opts.Limit.
//
// Every item of a window is issued concurrently and the whole window is
// awaited. Results are then passed to sink in item order, regardless of
// completion order. Any failure rejects the window: its results are not
// delivered and no later window starts. ctx is checked before each window.
func RunWindows[T, R any](
	ctx context.Context,
	items []T,
	opts WindowOptions,
	fn func(ctx context.Context, item T) (R, error),
	sink func(item T, result R) error,
) error {
	limit := opts.Limit
	if limit <= 0 {
		limit = 1
	}
	retry := opts.Retry
	if retry == nil {
		retry = policy.NewStrict()
	}

	for start := 0; start < len(items); start += limit {
		if err := ctx.Err(); err != nil {
			return &Error{Kind: KindCanceled, Err: err}
		}

		window := items[start:min(start+limit, len(items))]
		results := make([]R, len(window))

		g, gctx := errgroup.WithContext(ctx)
		for i, item := range window {
			g.Go(func() error {
				return retry.Do(gctx, func() error {
					r, err := fn(gctx, item)
					if err != nil {
						return err
					}
					results[i] = r
					return nil
				})
			})
		}
		if err := g.Wait(); err != nil {
			if ctx.Err() != nil && !isClassified(err) {
				return &Error{Kind: KindCanceled, Err: err}
			}
			return err
		}

		for i, item := range window {
			if err := sink(item, results[i]); err != nil {
				return err
			}
		}
		if opts.OnWindow != nil {
			opts.OnWindow(start+len(window), len(items))
		}
	}
	return nil
}

func isClassified(err error) bool {
	var te *Error
	return errors.As(err, &te)
}
