package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// ErrExhausted is wrapped into the error returned once every attempt has failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy describes how an operation against a remote backend is retried.
//
// MaxAttempts:  total number of calls, including the first one.
// InitialDelay: lower bound of every wait and size of the first backoff window.
// MaxDelay:     cap on the backoff window.
// Multiplier:   growth factor of the window between attempts.
// Retryable:    decides whether an error is worth another attempt.
// Sleep:        waits between attempts; replaced in tests.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Retryable    func(error) bool
	Sleep        func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy is five attempts with a window starting at 1s, doubling up to 60s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2,
		Retryable:    IsRetryable,
		Sleep:        sleepContext,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = d.InitialDelay
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = max(d.MaxDelay, p.InitialDelay)
	}
	if p.Multiplier < 1 {
		p.Multiplier = d.Multiplier
	}
	if p.Retryable == nil {
		p.Retryable = d.Retryable
	}
	if p.Sleep == nil {
		p.Sleep = d.Sleep
	}
	return p
}

// Window returns the backoff window after the given failed attempt (1-based).
func (p Policy) Window(attempt int) time.Duration {
	p = p.withDefaults()
	w := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if w > float64(p.MaxDelay) || math.IsInf(w, 1) {
		return p.MaxDelay
	}
	return time.Duration(w)
}

// Delay picks a random wait inside [InitialDelay, Window(attempt)].
func (p Policy) Delay(attempt int) time.Duration {
	p = p.withDefaults()
	window := p.Window(attempt)
	spread := window - p.InitialDelay
	if spread <= 0 {
		return p.InitialDelay
	}
	return p.InitialDelay + time.Duration(rand.Int63n(int64(spread)+1))
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempts
// run out or ctx is done.
func Do(ctx context.Context, name string, p Policy, fn func(ctx context.Context) error) error {
	p = p.withDefaults()
	logger := slog.Default().With("component", "retry", "operation", name)

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s aborted: %w", name, err)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			if attempt > 1 {
				logger.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		}

		if !p.Retryable(lastErr) {
			logger.Warn("operation failed permanently", "attempt", attempt, "error", lastErr)
			return fmt.Errorf("%s: %w", name, unwrapPermanent(lastErr))
		}
		if attempt == p.MaxAttempts {
			break
		}

		delay := p.Delay(attempt)
		logger.Warn("operation failed, retrying",
			"attempt", attempt,
			"max_attempts", p.MaxAttempts,
			"error", lastErr,
			"next_delay", delay,
		)
		if err := p.Sleep(ctx, delay); err != nil {
			return fmt.Errorf("%s aborted during backoff: %w", name, err)
		}
	}

	return fmt.Errorf("%s: %w after %d attempts: %w", name, ErrExhausted, p.MaxAttempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err, or anything it wraps, was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// IsRetryable is the default predicate: everything except permanent errors.
func IsRetryable(err error) bool {
	return err != nil && !IsPermanent(err)
}

func unwrapPermanent(err error) error {
	var pe *permanentError
	if errors.As(err, &pe) && pe == err {
		return pe.err
	}
	return err
}

// ClassifyHTTPStatus marks err permanent for client errors that will not go
// away on their own. Timeouts, throttling and server errors stay retryable.
func ClassifyHTTPStatus(code int, err error) error {
	switch {
	case code == http.StatusRequestTimeout,
		code == http.StatusTooEarly,
		code == http.StatusTooManyRequests:
		return err
	case code >= 400 && code < 500:
		return Permanent(err)
	default:
		return err
	}
}
