package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"medbot/internal/config"
)

// Policy bounds a call to an external service: an overall timeout and a
// limited number of attempts with jittered exponential backoff.
type Policy struct {
	Timeout    time.Duration
	Attempts   uint
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Log        *zap.Logger
}

// FromConfig converts the resilience section into a Policy.
func FromConfig(cfg config.ResilienceConfig, log *zap.Logger) Policy {
	return Policy{
		Timeout:    time.Duration(cfg.TimeoutSecs) * time.Second,
		Attempts:   uint(max(cfg.RetryCount(), 0)) + 1,
		MinBackoff: time.Duration(cfg.BackoffMinMs) * time.Millisecond,
		MaxBackoff: time.Duration(cfg.BackoffMaxMs) * time.Millisecond,
		Log:        log,
	}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so that Do returns it without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// retryAfter is implemented by errors that carry a server-provided delay.
type retryAfter interface {
	RetryAfter() time.Duration
}

// Do runs fn until it succeeds, returns a permanent error, or the
// attempts or the timeout run out. Context cancellation and deadline
// errors are never retried.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	attempts := p.Attempts
	if attempts == 0 {
		attempts = 1
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	minBackoff, maxBackoff := max(p.MinBackoff, 0), max(p.MaxBackoff, 0)
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(minBackoff),
		retry.MaxDelay(maxBackoff),
		retry.LastErrorOnly(true),
		retry.RetryIf(Retryable),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("retrying upstream call", zap.String("op", op), zap.Uint("attempt", n+1), zap.Error(err))
		}),
	}
	// RandomDelay panics on a zero jitter.
	delay := retry.BackOffDelay
	if minBackoff > 0 {
		opts = append(opts, retry.MaxJitter(minBackoff))
		delay = retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)
	}
	opts = append(opts, retry.DelayType(func(n uint, err error, cfg *retry.Config) time.Duration {
		var ra retryAfter
		if errors.As(err, &ra) && ra.RetryAfter() > 0 {
			return ra.RetryAfter()
		}
		return delay(n, err, cfg)
	}))
	return retry.Do(func() error { return fn(ctx) }, opts...)
}

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	var perm *permanentError
	if err == nil || errors.As(err, &perm) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
