package retry_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gxo-labs/seltrace/internal/logger"
	"github.com/gxo-labs/seltrace/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsAfterFailures(t *testing.T) {
	h := retry.NewHelper(logger.NewLogger("error", "text", &bytes.Buffer{}))
	calls := 0
	err := h.Do(context.Background(), retry.Config{Attempts: 3, Delay: time.Millisecond}, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("browser not ready")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoReturnsLastError(t *testing.T) {
	h := retry.NewHelper(logger.NewLogger("error", "text", &bytes.Buffer{}))
	boom := errors.New("connection refused")
	calls := 0
	err := h.Do(context.Background(), retry.Config{Attempts: 2}, func(context.Context) error {
		calls++
		return boom
	})
	assert.Same(t, boom, err)
	assert.Equal(t, 2, calls)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	h := retry.NewHelper(logger.NewLogger("error", "text", &bytes.Buffer{}))
	fatal := errors.New("bad capabilities")
	calls := 0
	err := h.Do(context.Background(), retry.Config{
		Attempts:  5,
		Retryable: func(err error) bool { return !errors.Is(err, fatal) },
	}, func(context.Context) error {
		calls++
		return fatal
	})
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestDoHonorsCancellation(t *testing.T) {
	h := retry.NewHelper(logger.NewLogger("error", "text", &bytes.Buffer{}))
	ctx, cancel := context.WithCancel(context.Background())
	boom := errors.New("down")
	err := h.Do(ctx, retry.Config{Attempts: 3, Delay: time.Hour}, func(context.Context) error {
		cancel()
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoCancelledBeforeNextAttemptWrapsContext(t *testing.T) {
	h := retry.NewHelper(logger.NewLogger("error", "text", &bytes.Buffer{}))
	ctx, cancel := context.WithCancel(context.Background())
	boom := errors.New("browser not ready")
	calls := 0
	err := h.Do(ctx, retry.Config{Attempts: 5}, func(context.Context) error {
		calls++
		cancel()
		return boom
	})
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoRedactsLoggedErrors(t *testing.T) {
	var buf bytes.Buffer
	h := retry.NewHelper(logger.NewLogger("debug", "text", &buf))
	h.SetRedactor(func(s string) string { return strings.ReplaceAll(s, "s3cret", "[REDACTED]") })
	_ = h.Do(context.Background(), retry.Config{Attempts: 2}, func(context.Context) error {
		return errors.New("auth s3cret rejected")
	})
	assert.NotContains(t, buf.String(), "s3cret")
	assert.Contains(t, buf.String(), "[REDACTED]")
}
