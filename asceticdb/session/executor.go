package session

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-db-go/asceticdb/signals"
)

// Executor acquires one connection per operation from its source and
// releases every resource derived from it before control returns to
// the caller, whatever the outcome of the operation.
// Release happens in reverse order of acquisition: rows, statement,
// connection.
type Executor struct {
	source         ConnectionSource
	onAcquired     *signals.SignalImp[ConnectionAcquiredEvent]
	onReleased     *signals.SignalImp[ConnectionReleasedEvent]
	onQueryStarted *signals.SignalImp[QueryStartedEvent]
	onQueryEnded   *signals.SignalImp[QueryEndedEvent]
}

func NewExecutor(source ConnectionSource) *Executor {
	return &Executor{
		source:         source,
		onAcquired:     signals.NewSignal[ConnectionAcquiredEvent](),
		onReleased:     signals.NewSignal[ConnectionReleasedEvent](),
		onQueryStarted: signals.NewSignal[QueryStartedEvent](),
		onQueryEnded:   signals.NewSignal[QueryEndedEvent](),
	}
}

func (e *Executor) Source() ConnectionSource {
	return e.source
}

func (e *Executor) OnAcquired() signals.Signal[ConnectionAcquiredEvent] {
	return e.onAcquired
}

func (e *Executor) OnReleased() signals.Signal[ConnectionReleasedEvent] {
	return e.onReleased
}

func (e *Executor) OnQueryStarted() signals.Signal[QueryStartedEvent] {
	return e.onQueryStarted
}

func (e *Executor) OnQueryEnded() signals.Signal[QueryEndedEvent] {
	return e.onQueryEnded
}

// Consume runs callback against a freshly acquired connection.
func (e *Executor) Consume(ctx context.Context, callback ConnectionCallback) error {
	_, err := Produce(ctx, e, func(c Connection) (struct{}, error) {
		return struct{}{}, callback(c)
	})
	return err
}

// WithStatement prepares query on a freshly acquired connection and
// runs callback against the statement.
func (e *Executor) WithStatement(ctx context.Context, query string, callback StatementCallback) error {
	_, err := Prepared(ctx, e, query, func(s Statement) (struct{}, error) {
		return struct{}{}, callback(s)
	})
	return err
}

// Produce is the value-returning form of Executor.Consume.
// A panic raised by fn is turned into an error once the connection
// has been released.
func Produce[T any](ctx context.Context, e *Executor, fn func(Connection) (T, error)) (result T, err error) {
	if err = ctx.Err(); err != nil {
		return result, err
	}

	conn, err := e.source.Acquire(ctx)
	if err != nil {
		return result, errors.Wrap(err, "unable to acquire connection")
	}
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			err = errors.Errorf("panicked: %v", r)
		}
		releaseErr := conn.Release()
		e.onReleased.Notify(ConnectionReleasedEvent{Connection: conn, Err: releaseErr})
		if releaseErr != nil {
			err = appendErr(err, errors.Wrap(releaseErr, "unable to release connection"))
		}
	}()
	e.onAcquired.Notify(ConnectionAcquiredEvent{Connection: conn})

	return fn(conn)
}

// Prepared prepares query on a freshly acquired connection, runs fn
// against it and closes the statement before the connection is
// released.
func Prepared[T any](ctx context.Context, e *Executor, query string, fn func(Statement) (T, error)) (T, error) {
	return Produce(ctx, e, func(c Connection) (result T, err error) {
		if err = ctx.Err(); err != nil {
			return result, err
		}
		stmt, err := c.Prepare(query)
		if err != nil {
			return result, errors.Wrapf(err, "unable to prepare %q", query)
		}
		defer func() {
			if closeErr := stmt.Close(); closeErr != nil {
				err = appendErr(err, errors.Wrap(closeErr, "unable to close statement"))
			}
		}()
		return fn(&trackedStatement{Statement: stmt, ctx: ctx, query: query, executor: e})
	})
}

// Queried prepares query, lets modifier bind its parameters, executes
// it as a read query and hands the resulting rows to mapper. Rows are
// closed before the statement.
func Queried[T any](
	ctx context.Context,
	e *Executor,
	query string,
	modifier StatementCallback,
	mapper func(Rows) (T, error),
) (T, error) {
	return Prepared(ctx, e, query, func(s Statement) (result T, err error) {
		if modifier != nil {
			if err = modifier(s); err != nil {
				return result, err
			}
		}
		rows, err := s.Query()
		if err != nil {
			return result, err
		}
		defer func() {
			if closeErr := rows.Close(); closeErr != nil {
				err = appendErr(err, errors.Wrap(closeErr, "unable to close rows"))
			}
		}()
		result, err = mapper(rows)
		if err != nil {
			return result, err
		}
		if err = rows.Err(); err != nil {
			var zero T
			return zero, err
		}
		return result, nil
	})
}

func appendErr(err, next error) error {
	if err == nil {
		return next
	}
	return multierror.Append(err, next)
}

// trackedStatement remembers bound parameters and reports executions
// to the executor's query signals.
type trackedStatement struct {
	Statement
	ctx      context.Context
	query    string
	params   []any
	executor *Executor
}

func (s *trackedStatement) Bind(index int, value any) error {
	if err := s.Statement.Bind(index, value); err != nil {
		return err
	}
	for len(s.params) < index {
		s.params = append(s.params, nil)
	}
	s.params[index-1] = value
	return nil
}

func (s *trackedStatement) Query() (Rows, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, err
	}
	done := s.started()
	rows, err := s.Statement.Query()
	done(err)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to execute %q", s.query)
	}
	return rows, nil
}

func (s *trackedStatement) Exec() (Result, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, err
	}
	done := s.started()
	res, err := s.Statement.Exec()
	done(err)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to execute %q", s.query)
	}
	return res, nil
}

func (s *trackedStatement) started() func(error) {
	params := append([]any(nil), s.params...)
	s.executor.onQueryStarted.Notify(QueryStartedEvent{Query: s.query, Params: params})
	start := time.Now()
	return func(err error) {
		s.executor.onQueryEnded.Notify(QueryEndedEvent{
			Query:        s.query,
			Params:       params,
			ResponseTime: time.Since(start),
			Err:          err,
		})
	}
}
