package session

import (
	"context"

	"github.com/pkg/errors"
)

// ErrReleased is returned when a released Connection is used again.
var ErrReleased = errors.New("connection already released")

// ConnectionSource is a pooled provider of database connections.
// Implementations must be safe for concurrent Acquire calls.
type ConnectionSource interface {
	Acquire(ctx context.Context) (Connection, error)
}

// Connection is a single-use handle to a live database session.
// It is owned by the caller of Acquire until Release is called and
// must not be shared between goroutines.
type Connection interface {
	Context() context.Context
	Prepare(query string) (Statement, error)
	// Release returns the handle to its source. Only the first call
	// has an effect.
	Release() error
}

// Statement is a prepared query bound to a Connection.
// Parameters are bound by 1-based positional index.
type Statement interface {
	Bind(index int, value any) error
	Query() (Rows, error)
	Exec() (Result, error)
	Close() error
}

// Db

type Result interface {
	RowsAffected() (int64, error)
}

// Rows is a forward-only cursor positioned before the first row.
type Rows interface {
	Close() error
	Err() error
	Next() bool
	Scan(dest ...any) error
}

// LogicalSizeQuerier is implemented by sources which know how to ask
// their backend for the on-disk size of a table. The query takes the
// table identifier as its only parameter.
type LogicalSizeQuerier interface {
	LogicalSizeQuery() string
}

type ConnectionCallback func(Connection) error

type StatementCallback func(Statement) error
