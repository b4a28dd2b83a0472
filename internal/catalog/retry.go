package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phobologic/sprocmap/internal/model"
)

// RetryPolicy bounds how a catalog query is retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int `yaml:"max_attempts"`

	// Timeout limits each attempt. Zero means no per-attempt limit.
	Timeout time.Duration `yaml:"timeout"`

	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		Timeout:      30 * time.Second,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

// Retrying wraps a Source with per-attempt timeouts and exponential
// backoff. Missing inputs are not retried.
type Retrying struct {
	Source Source
	Policy RetryPolicy
	Logger *slog.Logger
}

// WithRetry wraps src with policy p.
func WithRetry(src Source, p RetryPolicy, logger *slog.Logger) *Retrying {
	return &Retrying{Source: src, Policy: p, Logger: logger}
}

// Procedures calls the wrapped source until it succeeds, the attempts run
// out, or ctx is done. The last error is returned.
func (r *Retrying) Procedures(ctx context.Context) ([]model.Procedure, error) {
	attempts := max(r.Policy.MaxAttempts, 1)
	delay := r.Policy.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		procs, err := r.attempt(ctx)
		if err == nil {
			return procs, nil
		}
		lastErr = err
		if ctx.Err() != nil || errors.Is(err, model.ErrInputNotFound) || attempt == attempts {
			break
		}

		logger(r.Logger).Warn("catalog query failed, retrying",
			"attempt", attempt, "delay", delay, "err", err)
		if sleep(ctx, delay) != nil {
			break
		}
		delay = r.nextDelay(delay)
	}
	return nil, fmt.Errorf("catalog unavailable: %w", lastErr)
}

func (r *Retrying) attempt(ctx context.Context) ([]model.Procedure, error) {
	if r.Policy.Timeout <= 0 {
		return r.Source.Procedures(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, r.Policy.Timeout)
	defer cancel()
	return r.Source.Procedures(ctx)
}

func (r *Retrying) nextDelay(d time.Duration) time.Duration {
	mult := r.Policy.Multiplier
	if mult <= 0 {
		mult = 2.0
	}
	next := time.Duration(float64(d) * mult)
	if r.Policy.MaxDelay > 0 && next > r.Policy.MaxDelay {
		next = r.Policy.MaxDelay
	}
	return next
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
