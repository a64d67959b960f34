package api

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
)

// RequestKey identifies a logical read for de-duplication. Two keys are the
// same request exactly when all fields are equal.
type RequestKey struct {
	Op           string
	Registration string
	Start        string
	End          string
}

// String encodes the key for singleflight. Every field is quoted, so keys
// whose fields merely concatenate to the same text stay distinct.
func (k RequestKey) String() string {
	parts := []string{k.Op, k.Registration, k.Start, k.End}
	for i, p := range parts {
		parts[i] = strconv.Quote(p)
	}
	return strings.Join(parts, ":")
}

// dedupe runs fn unless a call for key is already in flight, in which case
// it waits for that call and returns its result. The key is released once
// the call settles, so a later call starts fresh. Concurrent callers share
// the same value, or the same error.
//
// fn runs with a context that is detached from the caller's cancellation,
// so one caller giving up does not fail the others. A cancelled caller stops
// waiting and returns its own context error.
func dedupe[T any](ctx context.Context, c *Client, key RequestKey, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	flight := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(key.String(), func() (any, error) {
		return fn(flight)
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Shared {
			slog.Debug("joined in-flight request", "key", key.String())
		}
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}
