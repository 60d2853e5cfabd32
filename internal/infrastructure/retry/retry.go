// Package retry runs blob store calls under a bounded, linear backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/hilthontt/repochat/internal/domain"
	"github.com/hilthontt/repochat/internal/infrastructure/logging"
	"github.com/hilthontt/repochat/internal/infrastructure/metrics"
)

const (
	DefaultMaxAttempts uint = 3
	DefaultBaseDelay        = time.Second
)

type Policy struct {
	MaxAttempts uint
	BaseDelay   time.Duration

	logger  logging.Logger
	metrics *metrics.Metrics
}

func NewPolicy(maxAttempts uint, baseDelay time.Duration, logger logging.Logger, m *metrics.Metrics) *Policy {
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay < 0 {
		baseDelay = 0
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		logger:      logger,
		metrics:     m,
	}
}

// linear waits attempt*base before each retry.
type linear struct {
	base    time.Duration
	attempt int
}

func (l *linear) NextBackOff() time.Duration {
	l.attempt++
	return time.Duration(l.attempt) * l.base
}

func (l *linear) Reset() { l.attempt = 0 }

// Do invokes op until it succeeds, fails with a non-retryable error, or the
// policy runs out of attempts. NotFound, PermissionDenied, VersionConflict
// and CorruptDocument are returned unchanged on first sight. Exhausting the
// attempts on RateLimited or Transient returns ErrOperationFailed wrapping
// the last error.
func Do[T any](ctx context.Context, p *Policy, op func(ctx context.Context) (T, error)) (T, error) {
	attempt := 0
	res, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		res, err := op(ctx)
		if err != nil && !domain.IsRetryable(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	},
		backoff.WithBackOff(&linear{base: p.BaseDelay}),
		backoff.WithMaxTries(p.MaxAttempts),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, delay time.Duration) {
			p.metrics.Retried()
			p.logger.Warn(logging.BlobStore, logging.Retry, "retrying blob store call", map[logging.ExtraKey]any{
				logging.Attempt:      attempt,
				logging.Delay:        delay.String(),
				logging.ErrorMessage: err.Error(),
			})
		}),
	)
	if err == nil {
		return res, nil
	}

	// The final attempt comes back still wrapped when it hits MaxTries.
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}

	if domain.IsRetryable(err) {
		p.metrics.Exhausted()
		return res, fmt.Errorf("%w after %d attempts: %w", domain.ErrOperationFailed, attempt, err)
	}
	return res, err
}

// Run is Do for operations without a result.
func Run(ctx context.Context, p *Policy, op func(ctx context.Context) error) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
