// Package dbactions offers synchronous and asynchronous helpers for
// running work against pooled database connections.
//
// Strict helpers (DoAction, Map, MapQuery, Update and every async and
// DAO variant) return failures to the caller. Best-effort helpers
// (Count, CountQuery, UnsafeCountf, FetchSingleEntity, LogicalSize)
// turn failures into a zero result. Both kinds hand every failure to
// the configured log.ExceptionLogger first, and only after the
// connection and everything derived from it has been released.
package dbactions

import (
	"context"

	"github.com/krew-solutions/ascetic-db-go/asceticdb/log"
	"github.com/krew-solutions/ascetic-db-go/asceticdb/session"
)

// SourceLabel identifies this package in captured exceptions.
const SourceLabel = "DbActions"

// DefaultLogicalSizeQuery is the H2 introspection procedure, used when
// neither an option nor the connection source provides a query.
const DefaultLogicalSizeQuery = "CALL DISK_SPACE_USED(?)"

type Option func(*Actions)

// WithExceptionLogger replaces the default log.SlogCapturer. A nil
// logger is ignored.
func WithExceptionLogger(l log.ExceptionLogger) Option {
	return func(a *Actions) {
		if l != nil {
			a.exceptions = l
		}
	}
}

// WithLogicalSizeQuery overrides the table size introspection query.
// The query takes the table identifier as its only parameter and
// returns the size in bytes in the first column.
func WithLogicalSizeQuery(query string) Option {
	return func(a *Actions) {
		if query != "" {
			a.logicalSizeQuery = query
		}
	}
}

type Actions struct {
	executor         *session.Executor
	pool             Submitter
	exceptions       log.ExceptionLogger
	logicalSizeQuery string
}

func New(executor *session.Executor, pool Submitter, opts ...Option) *Actions {
	a := &Actions{
		executor:         executor,
		pool:             pool,
		exceptions:       log.SlogCapturer{},
		logicalSizeQuery: DefaultLogicalSizeQuery,
	}
	if q, ok := executor.Source().(session.LogicalSizeQuerier); ok && q.LogicalSizeQuery() != "" {
		a.logicalSizeQuery = q.LogicalSizeQuery()
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Actions) Executor() *session.Executor {
	return a.executor
}

// capture never panics, whatever the installed logger does.
func (a *Actions) capture(ctx context.Context, err error) {
	defer func() {
		_ = recover()
	}()
	a.exceptions.Capture(ctx, err, SourceLabel)
}
