package pool

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// batchLogger returns the logger of ex, or a no-op logger for executors
// defined outside this package.
func batchLogger(ex Executor) *zap.Logger {
	switch p := ex.(type) {
	case *BoundedPool:
		return p.logger
	case *SerialPool:
		return p.logger
	case *ScheduledPool:
		return p.logger
	default:
		return zap.NewNop()
	}
}

// RunBatch submits one task to ex that processes items inside a single
// transactional scope.
//
// The task opens a scope from scopes, applies action to each item in order
// and marks the scope successful only if every item succeeded. The scope is
// closed exactly once on every path. The first failing item stops the batch;
// its error becomes the future's error, and Await reports it as an
// *ExecutionError whose Cause is that error. Items after it are not run.
func RunBatch[T any](ex Executor, items []T, action ItemFunc[T], scopes ScopeFactory) (*Future[struct{}], error) {
	batchID := uuid.NewString()
	logger := batchLogger(ex).With(zap.String("batch_id", batchID), zap.Int("items", len(items)))

	return Submit(ex, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, processBatch(ctx, logger, items, action, scopes)
	})
}

func processBatch[T any](ctx context.Context, logger *zap.Logger, items []T, action ItemFunc[T], scopes ScopeFactory) (err error) {
	scope, err := scopes(ctx)
	if err != nil {
		logger.Warn("could not open batch scope", zap.Error(err))
		return errors.Wrap(err, "opening batch scope")
	}

	defer func() {
		if closeErr := scope.Close(); closeErr != nil {
			logger.Warn("closing batch scope failed", zap.Error(closeErr))
			err = multierr.Append(err, errors.Wrap(closeErr, "closing batch scope"))
		}
	}()

	for i, item := range items {
		if itemErr := applyItem(ctx, action, item); itemErr != nil {
			logger.Debug("batch item failed",
				zap.Int("index", i),
				zap.Error(itemErr),
			)
			return itemErr
		}
	}

	scope.MarkSuccess()
	return nil
}

func applyItem[T any](ctx context.Context, action ItemFunc[T], item T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(r)
		}
	}()
	return action(ctx, item)
}

// SubmitBatch runs items as one batch on the registry's general pool.
func SubmitBatch[T any](r *Registry, items []T, action ItemFunc[T], scopes ScopeFactory) (*Future[struct{}], error) {
	return RunBatch(r.General(), items, action, scopes)
}

// SubmitBatches partitions items into consecutive batches of at most
// batchSize and submits each to the general pool with its own scope. It
// stops at the first submission error and returns the futures submitted so
// far along with it.
func SubmitBatches[T any](r *Registry, items []T, batchSize int, action ItemFunc[T], scopes ScopeFactory) ([]*Future[struct{}], error) {
	if batchSize <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "batch size %d", batchSize)
	}

	futures := make([]*Future[struct{}], 0, (len(items)+batchSize-1)/batchSize)
	for start := 0; start < len(items); start += batchSize {
		end := min(start+batchSize, len(items))

		f, err := SubmitBatch(r, items[start:end], action, scopes)
		if err != nil && !isExecutionError(err) {
			return futures, errors.Wrapf(err, "submitting batch [%d, %d)", start, end)
		}
		futures = append(futures, f)
	}
	return futures, nil
}
