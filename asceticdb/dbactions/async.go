package dbactions

import (
	"context"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-db-go/asceticdb/deferred"
	"github.com/krew-solutions/ascetic-db-go/asceticdb/log"
	"github.com/krew-solutions/ascetic-db-go/asceticdb/session"
)

// dispatch submits fn to the worker pool and returns a future that fn's
// outcome completes. The caller never waits for fn. ctx is handed to
// fn as is: cancelling it aborts the operation between its steps.
func dispatch[T any](ctx context.Context, a *Actions, action string, fn func(context.Context) (T, error)) *deferred.Future[T] {
	future := deferred.NewFuture[T]()
	op := slog.String("op", ulid.Make().String())

	err := a.pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				future.Reject(errors.Errorf("%s panicked: %v", action, r))
			}
		}()
		value, err := fn(ctx)
		if err != nil {
			a.capture(ctx, err)
			future.Reject(err)
			return
		}
		log.Debug(ctx, "database operation completed", op, slog.String("action", action))
		future.Resolve(value)
	})
	if err != nil {
		err = errors.Wrapf(err, "unable to submit %s", action)
		a.capture(ctx, err)
		future.Reject(err)
		return future
	}
	log.Debug(ctx, "database operation dispatched", op, slog.String("action", action))
	return future
}

// DoAsyncAction is the asynchronous form of DoAction.
func (a *Actions) DoAsyncAction(ctx context.Context, consumer ConnectionConsumer) *deferred.Future[struct{}] {
	return dispatch(ctx, a, "DoAsyncAction", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.executor.Consume(ctx, session.ConnectionCallback(consumer))
	})
}

// MapAsync is the asynchronous form of Map.
func MapAsync[T any](ctx context.Context, a *Actions, fn ConnectionFunction[T]) *deferred.Future[T] {
	return dispatch(ctx, a, "MapAsync", func(ctx context.Context) (T, error) {
		return session.Produce[T](ctx, a.executor, fn)
	})
}

// MapQueryAsync is the asynchronous form of MapQuery.
func MapQueryAsync[T any](
	ctx context.Context,
	a *Actions,
	query string,
	modifier StatementModifier,
	mapper ResultSetMapper[T],
) *deferred.Future[T] {
	return dispatch(ctx, a, "MapQueryAsync", func(ctx context.Context) (T, error) {
		return session.Queried[T](ctx, a.executor, query, session.StatementCallback(modifier), mapper)
	})
}

// UpdateAsync is the asynchronous form of Update.
func (a *Actions) UpdateAsync(ctx context.Context, query string, params ...any) *deferred.Future[int64] {
	return dispatch(ctx, a, "UpdateAsync", func(ctx context.Context) (int64, error) {
		return a.update(ctx, query, params)
	})
}
