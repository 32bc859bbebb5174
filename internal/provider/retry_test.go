// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Majel Contributors

package provider_test

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/Guffawaffle/majel/internal/provider"
	majelerr "github.com/Guffawaffle/majel/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSleep records requested delays without waiting.
type fakeSleep struct {
	delays []time.Duration
}

func (f *fakeSleep) sleep(_ context.Context, d time.Duration) error {
	f.delays = append(f.delays, d)
	return nil
}

func transientErr(status int) error {
	return majelerr.New(majelerr.CodeProviderUpstreamFailure, "upstream failure", majelerr.FieldStatus(status))
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	sleeper := &fakeSleep{}
	r := provider.Retrier{Sleep: sleeper.sleep}

	calls := 0
	out, err := provider.Do(context.Background(), r, "chat", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", transientErr(503)
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, calls)
	require.Len(t, sleeper.delays, 2)
	assert.Equal(t, time.Second, sleeper.delays[0])
	assert.Equal(t, 2*time.Second, sleeper.delays[1])
}

func TestDo_NonTransientDoesNotRetry(t *testing.T) {
	sleeper := &fakeSleep{}
	r := provider.Retrier{Sleep: sleeper.sleep}

	calls := 0
	_, err := provider.Do(context.Background(), r, "chat", func(context.Context) (string, error) {
		calls++
		return "", transientErr(400)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeper.delays)
}

func TestDo_PlainErrorDoesNotRetry(t *testing.T) {
	sleeper := &fakeSleep{}
	r := provider.Retrier{Sleep: sleeper.sleep}

	cause := stderrors.New("connection refused")
	calls := 0
	_, err := provider.Do(context.Background(), r, "chat", func(context.Context) (int, error) {
		calls++
		return 0, cause
	})

	require.ErrorIs(t, err, cause)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeper.delays)
}

func TestDo_ExhaustionPropagatesLastError(t *testing.T) {
	sleeper := &fakeSleep{}
	r := provider.Retrier{Sleep: sleeper.sleep}

	calls := 0
	_, err := provider.Do(context.Background(), r, "chat", func(context.Context) (string, error) {
		calls++
		return "", transientErr(429)
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls, "initial attempt plus two retries")
	assert.Equal(t, 429, majelerr.StatusOf(err))
	assert.Len(t, sleeper.delays, 2)
}

func TestDo_CanceledWhileWaiting(t *testing.T) {
	r := provider.Retrier{
		Sleep: func(ctx context.Context, _ time.Duration) error {
			return context.Canceled
		},
	}

	calls := 0
	_, err := provider.Do(context.Background(), r, "chat", func(context.Context) (string, error) {
		calls++
		return "", transientErr(500)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, majelerr.IsTimeout(err))
}

func TestDo_CustomRetryBudget(t *testing.T) {
	sleeper := &fakeSleep{}
	r := provider.Retrier{MaxRetries: 1, BaseDelay: 10 * time.Millisecond, Sleep: sleeper.sleep}

	calls := 0
	_, err := provider.Do(context.Background(), r, "chat", func(context.Context) (string, error) {
		calls++
		return "", transientErr(502)
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, sleeper.delays, 1)
	assert.Equal(t, 10*time.Millisecond, sleeper.delays[0])
}

func TestValidateModel(t *testing.T) {
	require.NoError(t, provider.ValidateModel(provider.DefaultModel))
	require.NoError(t, provider.ValidateModel("gemini-2.5-pro"))

	err := provider.ValidateModel("gpt-nonsense")
	require.Error(t, err)
	assert.True(t, majelerr.HasCode(err, majelerr.CodeProviderModelUnknown))

	err = provider.ValidateModel("")
	require.Error(t, err)
	assert.True(t, majelerr.HasCode(err, majelerr.CodeProviderRequestInvalid))
}
