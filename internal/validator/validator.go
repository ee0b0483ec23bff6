// Package validator confirms that a list member's number is reachable on the
// messaging network. Failures never abort a reconciliation; callers only
// learn whether a normalized number came back.
package validator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/LeventeLantos/listsync/internal/client"
)

type NumberValidator interface {
	Validate(ctx context.Context, number string, tenantID int64) (string, error)
}

// Checker is the provider boundary; client.NumberCheckClient implements it.
type Checker interface {
	CheckNumber(ctx context.Context, number string, tenantID int64) (string, error)
}

// ErrTimeout wraps attempts cut off by the per-attempt timeout.
var ErrTimeout = errors.New("number validation timed out")

type Options struct {
	AttemptTimeout time.Duration
	MaxAttempts    uint
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (o Options) withDefaults() Options {
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = 10 * time.Second
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = 3
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 200 * time.Millisecond
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 2 * time.Second
	}
	return o
}

// Retrying bounds every attempt with a timeout and retries transient
// failures with exponential backoff.
type Retrying struct {
	checker Checker
	opts    Options
	logger  *zap.Logger
}

var _ NumberValidator = (*Retrying)(nil)

func NewRetrying(checker Checker, opts Options, logger *zap.Logger) *Retrying {
	return &Retrying{checker: checker, opts: opts.withDefaults(), logger: logger}
}

func (r *Retrying) Validate(ctx context.Context, number string, tenantID int64) (string, error) {
	if number == "" {
		return "", fmt.Errorf("empty number")
	}

	attempt := 0
	op := func() (string, error) {
		attempt++
		actx, cancel := context.WithTimeout(ctx, r.opts.AttemptTimeout)
		defer cancel()

		out, err := r.checker.CheckNumber(actx, number, tenantID)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return "", backoff.Permanent(ctx.Err())
		}
		if errors.Is(actx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %v", ErrTimeout, r.opts.AttemptTimeout, err)
		}
		if !retryable(err) {
			return "", backoff.Permanent(err)
		}
		r.logger.Debug("number check attempt failed",
			zap.String("number", number),
			zap.Int64("tenant_id", tenantID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		return "", err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.InitialBackoff
	b.MaxInterval = r.opts.MaxBackoff

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(r.opts.MaxAttempts),
	)
}

func retryable(err error) bool {
	if errors.Is(err, client.ErrNotOnNetwork) {
		return false
	}
	var se *client.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}
