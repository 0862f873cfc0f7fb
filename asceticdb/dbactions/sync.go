package dbactions

import (
	"context"
	"fmt"

	"github.com/krew-solutions/ascetic-db-go/asceticdb/option"
	"github.com/krew-solutions/ascetic-db-go/asceticdb/session"
)

// DoAction runs consumer with a connection that is released once it
// returns.
func (a *Actions) DoAction(ctx context.Context, consumer ConnectionConsumer) error {
	if err := a.executor.Consume(ctx, session.ConnectionCallback(consumer)); err != nil {
		a.capture(ctx, err)
		return err
	}
	return nil
}

// Map runs fn with a connection and returns its value.
func Map[T any](ctx context.Context, a *Actions, fn ConnectionFunction[T]) (T, error) {
	value, err := session.Produce[T](ctx, a.executor, fn)
	if err != nil {
		a.capture(ctx, err)
	}
	return value, err
}

// MapQuery prepares query, applies modifier, executes it as a read
// query and maps the resulting rows. The mapper receives the cursor
// before its first row.
func MapQuery[T any](
	ctx context.Context,
	a *Actions,
	query string,
	modifier StatementModifier,
	mapper ResultSetMapper[T],
) (T, error) {
	value, err := session.Queried[T](ctx, a.executor, query, session.StatementCallback(modifier), mapper)
	if err != nil {
		a.capture(ctx, err)
	}
	return value, err
}

// Count returns the integer in the first column of the first row
// produced by query, or 0 when there is no row or the query fails.
func (a *Actions) Count(ctx context.Context, query string, modifier StatementModifier) int64 {
	n, err := session.Queried(ctx, a.executor, query, session.StatementCallback(modifier), scanFirstInt)
	if err != nil {
		a.capture(ctx, err)
		return 0
	}
	return n
}

// CountQuery is Count for a query without parameters.
func (a *Actions) CountQuery(ctx context.Context, query string) int64 {
	return a.Count(ctx, query, NoModifier)
}

// UnsafeCountf formats queryFormat with args using fmt.Sprintf and
// counts the result like CountQuery.
//
// The arguments are substituted into the query text, not bound as
// parameters. Never pass user-provided data.
func (a *Actions) UnsafeCountf(ctx context.Context, queryFormat string, args ...any) int64 {
	return a.CountQuery(ctx, fmt.Sprintf(queryFormat, args...))
}

// Update binds params at positions 1..N, executes query as a write
// query and returns the number of affected rows.
func (a *Actions) Update(ctx context.Context, query string, params ...any) (int64, error) {
	n, err := a.update(ctx, query, params)
	if err != nil {
		a.capture(ctx, err)
		return 0, err
	}
	return n, nil
}

func (a *Actions) update(ctx context.Context, query string, params []any) (int64, error) {
	return session.Prepared(ctx, a.executor, query, func(s session.Statement) (int64, error) {
		if err := Params(params...)(s); err != nil {
			return 0, err
		}
		res, err := s.Exec()
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	})
}

// FetchSingleEntity runs query and maps its first row, if any. Unlike
// MapQuery, the cursor handed to mapper is already on that row, so
// mapper must not advance it. Failures yield Nothing.
func FetchSingleEntity[T any](
	ctx context.Context,
	a *Actions,
	query string,
	modifier StatementModifier,
	mapper ResultSetMapper[T],
) option.Option[T] {
	entity, err := session.Queried(ctx, a.executor, query, session.StatementCallback(modifier),
		func(rows session.Rows) (option.Option[T], error) {
			if !rows.Next() {
				return option.Nothing[T](), nil
			}
			v, err := mapper(rows)
			if err != nil {
				return option.Nothing[T](), err
			}
			return option.Some(v), nil
		})
	if err != nil {
		a.capture(ctx, err)
		return option.Nothing[T]()
	}
	return entity
}

// LogicalSize returns the approximate on-disk size of table in bytes,
// or 0 if the backend cannot tell.
func (a *Actions) LogicalSize(ctx context.Context, table string) int64 {
	size, err := session.Queried(ctx, a.executor, a.logicalSizeQuery, session.StatementCallback(Params(table)), scanFirstInt)
	if err != nil {
		a.capture(ctx, err)
		return 0
	}
	return size
}

// scanFirstInt reads the first column of the first row. A missing row
// and a NULL value both give 0.
func scanFirstInt(rows session.Rows) (int64, error) {
	if !rows.Next() {
		return 0, nil
	}
	var n *int64
	if err := rows.Scan(&n); err != nil {
		return 0, err
	}
	if n == nil {
		return 0, nil
	}
	return *n, nil
}
