package dbactions

import (
	"context"

	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-db-go/asceticdb/deferred"
	"github.com/krew-solutions/ascetic-db-go/asceticdb/session"
)

func withDao[D, T any](ctx context.Context, a *Actions, constructor DaoConstructor[D], fn DaoFunction[D, T]) (T, error) {
	return session.Produce(ctx, a.executor, func(c session.Connection) (T, error) {
		dao, err := constructor(c)
		if err != nil {
			var zero T
			return zero, errors.Wrap(err, "unable to construct data access object")
		}
		return fn(dao)
	})
}

func consumerFunction[D any](consumer DaoConsumer[D]) DaoFunction[D, struct{}] {
	return func(dao D) (struct{}, error) {
		return struct{}{}, consumer(dao)
	}
}

// DoDaoAction builds a data access object from a fresh connection and
// passes it to consumer. The connection is released when consumer
// returns. If constructor fails, consumer is not called.
func DoDaoAction[D any](ctx context.Context, a *Actions, constructor DaoConstructor[D], consumer DaoConsumer[D]) error {
	_, err := withDao(ctx, a, constructor, consumerFunction(consumer))
	if err != nil {
		a.capture(ctx, err)
	}
	return err
}

// MapDao is DoDaoAction for operations producing a value.
func MapDao[D, T any](ctx context.Context, a *Actions, constructor DaoConstructor[D], fn DaoFunction[D, T]) (T, error) {
	value, err := withDao(ctx, a, constructor, fn)
	if err != nil {
		a.capture(ctx, err)
	}
	return value, err
}

// DoAsyncDaoAction is the asynchronous form of DoDaoAction.
func DoAsyncDaoAction[D any](
	ctx context.Context,
	a *Actions,
	constructor DaoConstructor[D],
	consumer DaoConsumer[D],
) *deferred.Future[struct{}] {
	return dispatch(ctx, a, "DoAsyncDaoAction", func(ctx context.Context) (struct{}, error) {
		return withDao(ctx, a, constructor, consumerFunction(consumer))
	})
}

// MapAsyncDao is the asynchronous form of MapDao.
func MapAsyncDao[D, T any](
	ctx context.Context,
	a *Actions,
	constructor DaoConstructor[D],
	fn DaoFunction[D, T],
) *deferred.Future[T] {
	return dispatch(ctx, a, "MapAsyncDao", func(ctx context.Context) (T, error) {
		return withDao(ctx, a, constructor, fn)
	})
}
