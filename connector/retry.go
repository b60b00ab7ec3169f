// ABOUTME: Retrying connector decorator with exponential backoff
// ABOUTME: Retries transport-level failures only; row failures and permanent errors pass straight through
package connector

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/harperreed/crmbridge/models"
)

// Default backoff settings.
const (
	DefaultInitialInterval = 200 * time.Millisecond
	DefaultMaxInterval     = 5 * time.Second
	DefaultMaxRetries      = 3
)

// RetryPolicy configures Retrying.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      int
}

// DefaultRetryPolicy returns the default backoff settings.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
		MaxRetries:      DefaultMaxRetries,
	}
}

// Retrying wraps a Connector and retries failed calls with exponential backoff.
type Retrying struct {
	next   Connector
	policy RetryPolicy
	logger *zap.Logger
}

// NewRetrying decorates next. A nil logger discards retry logs.
func NewRetrying(next Connector, policy RetryPolicy, logger *zap.Logger) *Retrying {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = DefaultInitialInterval
	}
	if policy.MaxInterval <= 0 {
		policy.MaxInterval = DefaultMaxInterval
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	return &Retrying{next: next, policy: policy, logger: logger.With(zap.String("store", next.Name()))}
}

func (r *Retrying) Name() string      { return r.next.Name() }
func (r *Retrying) Side() models.Side { return r.next.Side() }

// Unwrap returns the decorated connector.
func (r *Retrying) Unwrap() Connector { return r.next }

func (r *Retrying) FetchAll(ctx context.Context, collection string) ([]models.Record, error) {
	var out []models.Record
	err := r.retry(ctx, "fetch", collection, func() error {
		records, err := r.next.FetchAll(ctx, collection)
		if err != nil {
			return err
		}
		out = records
		return nil
	})
	return out, err
}

// UpsertBatch retries only when the whole batch failed. Re-sending a batch is
// safe because every write is keyed on id.
func (r *Retrying) UpsertBatch(ctx context.Context, collection string, rows []models.Record, conflictKey string) ([]string, map[string]error, error) {
	var (
		succeeded []string
		failures  map[string]error
	)
	err := r.retry(ctx, "upsert", collection, func() error {
		s, f, err := r.next.UpsertBatch(ctx, collection, rows, conflictKey)
		if err != nil {
			return err
		}
		succeeded, failures = s, f
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return succeeded, failures, nil
}

func (r *Retrying) Exists(ctx context.Context, collection string, ids []string) (map[string]bool, error) {
	var found map[string]bool
	err := r.retry(ctx, "exists", collection, func() error {
		f, err := r.next.Exists(ctx, collection, ids)
		if err != nil {
			return err
		}
		found = f
		return nil
	})
	return found, err
}

func (r *Retrying) retry(ctx context.Context, op, collection string, fn func() error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.policy.InitialInterval
	exp.MaxInterval = r.policy.MaxInterval
	exp.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(r.policy.MaxRetries)), ctx)

	var last error
	err := backoff.RetryNotify(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		last = err
		if isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, wait time.Duration) {
		r.logger.Warn("retrying connector call",
			zap.String("op", op),
			zap.String("collection", collection),
			zap.Duration("wait", wait),
			zap.Error(err))
	})
	if err != nil && last != nil {
		// Context expiry during a backoff wait reports the context error; keep the store error.
		return last
	}
	return err
}

func isPermanent(err error) bool {
	return errors.Is(err, ErrUnsupportedConflictKey) ||
		errors.Is(err, ErrUnknownCollection) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
