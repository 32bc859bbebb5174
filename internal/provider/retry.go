// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Majel Contributors

package provider

import (
	"context"
	"log/slog"
	"time"

	majelerr "github.com/Guffawaffle/majel/pkg/errors"
)

// defaultMaxRetries is the number of additional attempts after the first
// failure of a transient provider call.
const defaultMaxRetries = 2

// defaultBaseDelay is the delay before the first retry; each subsequent
// retry doubles it. No jitter is applied.
const defaultBaseDelay = time.Second

// Retrier wraps a single provider call with bounded exponential backoff.
// Only errors carrying a transient HTTP-like status (rate limit or server
// failure) are retried; everything else propagates unchanged.
type Retrier struct {
	// MaxRetries is the number of retries after the initial attempt.
	// Zero means the default (2).
	MaxRetries int

	// BaseDelay is the first retry delay. Zero means the default (1s).
	BaseDelay time.Duration

	// Sleep is the wait function between attempts. Nil means a
	// context-aware timer. Tests substitute a recorder.
	Sleep func(ctx context.Context, d time.Duration) error
}

// transientStatus reports whether an HTTP-like status is worth retrying.
func transientStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs fn, retrying on transient provider failures. The label names the
// call in retry logs. On exhaustion the last error propagates unchanged.
func Do[T any](ctx context.Context, r Retrier, label string, fn func(ctx context.Context) (T, error)) (T, error) {
	maxRetries := r.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	baseDelay := r.BaseDelay
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var zero T
	for attempt := 0; ; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}

		status := majelerr.StatusOf(err)
		if !transientStatus(status) || attempt >= maxRetries {
			return zero, err
		}

		delay := baseDelay << attempt
		slog.Warn("transient provider failure, retrying",
			"label", label,
			"status", status,
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return zero, majelerr.Wrapf(err, majelerr.CodeEngineTurnTimeout, "%s: canceled while waiting to retry", label)
		}
	}
}
