// Package retry re-runs flaky operations, such as attaching to a browser
// that is still starting, with exponential backoff and jitter.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	seltracelog "github.com/gxo-labs/seltrace/pkg/seltrace/v1/log"
)

type Operation func(ctx context.Context) error

type Config struct {
	Attempts      int
	Delay         time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        float64
	// Retryable decides whether a failure is worth another attempt. Nil
	// retries every failure.
	Retryable func(error) bool
	// Operation names the operation in log lines.
	Operation string
}

type Helper struct {
	log        seltracelog.Logger
	randSource *rand.Rand
	redact     func(string) string
}

// NewHelper returns a Helper logging through log.
func NewHelper(log seltracelog.Logger) *Helper {
	if log == nil {
		panic("retry.NewHelper requires a non-nil logger")
	}
	return &Helper{
		log:        log.With("component", "Retry"),
		randSource: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetRedactor installs a function applied to error text before logging.
func (h *Helper) SetRedactor(redact func(string) string) {
	h.redact = redact
}

func (h *Helper) describe(err error) string {
	if h.redact == nil {
		return err.Error()
	}
	return h.redact(err.Error())
}

// Do runs op until it succeeds, the attempts are exhausted, the failure is
// not retryable or ctx is done. The last error is returned unwrapped unless
// the context interrupted the loop.
func (h *Helper) Do(ctx context.Context, cfg Config, op Operation) error {
	cfg = normalize(cfg)
	prefix := ""
	if cfg.Operation != "" {
		prefix = fmt.Sprintf("operation=%s ", cfg.Operation)
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			h.log.Warnf("%sRetry attempt %d/%d cancelled before start: %v", prefix, attempt, cfg.Attempts, err)
			if lastErr == nil {
				return err
			}
			return fmt.Errorf("retry cancelled after %d attempts with last error: %w (context: %w)", attempt-1, lastErr, err)
		}

		lastErr = op(ctx)
		if lastErr == nil {
			if attempt > 1 {
				h.log.Infof("%sOperation succeeded on attempt %d/%d", prefix, attempt, cfg.Attempts)
			}
			return nil
		}
		if attempt == cfg.Attempts || (cfg.Retryable != nil && !cfg.Retryable(lastErr)) {
			break
		}

		wait := h.backoff(cfg, attempt)
		h.log.Warnf("%sOperation failed on attempt %d/%d (retrying in %v): %s",
			prefix, attempt, cfg.Attempts, wait.Truncate(time.Millisecond), h.describe(lastErr))

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			h.log.Warnf("%sRetry delay for attempt %d/%d cancelled: %v", prefix, attempt+1, cfg.Attempts, ctx.Err())
			return fmt.Errorf("retry delay cancelled after attempt %d with error: %w (context: %w)", attempt, lastErr, ctx.Err())
		}
	}

	h.log.Errorf("%sOperation failed definitively after %d attempts: %s", prefix, cfg.Attempts, h.describe(lastErr))
	return lastErr
}

func normalize(cfg Config) Config {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	if cfg.BackoffFactor < 1.0 {
		cfg.BackoffFactor = 1.0
	}
	cfg.Jitter = math.Min(math.Max(cfg.Jitter, 0), 1)
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if cfg.MaxDelay < 0 {
		cfg.MaxDelay = 0
	}
	return cfg
}

func (h *Helper) backoff(cfg Config, attempt int) time.Duration {
	base := float64(cfg.Delay) * math.Pow(cfg.BackoffFactor, float64(attempt-1))
	if base > float64(math.MaxInt64) {
		base = float64(math.MaxInt64)
	}
	wait := time.Duration(base)
	if cfg.Jitter > 0 {
		wait += time.Duration(float64(wait) * cfg.Jitter * (h.randSource.Float64()*2.0 - 1.0))
		if wait < 0 {
			wait = 0
		}
	}
	if cfg.MaxDelay > 0 && wait > cfg.MaxDelay {
		wait = cfg.MaxDelay
	}
	return wait
}
