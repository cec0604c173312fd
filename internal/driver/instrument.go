package driver

import (
	"context"

	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/events"
)

// instrument brackets call with Before and After records. A failure that
// call did not already hand to the dispatcher is reported here, so every
// failed command yields exactly one Exception record. summarize may be nil.
func instrument[T any](ctx context.Context, s *Session, cmd events.Command, p events.Params,
	call func(ctx context.Context) (T, error), summarize func(T) string) (T, error) {
	var zero T
	before, err := s.dispatcher.Before(ctx, cmd, p)
	if err != nil {
		return zero, err
	}

	s.reported = false
	out, err := call(ctx)
	if err != nil {
		if s.reported {
			return zero, err
		}
		return zero, s.raise(ctx, err)
	}

	res := events.Result{Object: out}
	if summarize != nil {
		res.Summary = summarize(out)
	}
	if _, err := s.dispatcher.After(ctx, before, res); err != nil {
		return out, err
	}
	return out, nil
}

// instrumentVoid is instrument for commands without a result.
func instrumentVoid(ctx context.Context, s *Session, cmd events.Command, p events.Params, call func(ctx context.Context) error) error {
	_, err := instrument(ctx, s, cmd, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, call(ctx)
	}, nil)
	return err
}
