package dbactions

import (
	"github.com/krew-solutions/ascetic-db-go/asceticdb/session"
)

// ConnectionConsumer performs side effects with a live connection.
type ConnectionConsumer func(session.Connection) error

// ConnectionFunction computes a value from a live connection.
type ConnectionFunction[T any] func(session.Connection) (T, error)

// StatementModifier binds parameters onto a prepared statement. It is
// invoked exactly once per execution.
type StatementModifier func(session.Statement) error

// ResultSetMapper converts rows into a value. It must not keep rows
// after returning.
type ResultSetMapper[T any] func(session.Rows) (T, error)

// DaoConstructor builds a data access object around a connection. The
// object is only valid until the operation using it returns.
type DaoConstructor[D any] func(session.Connection) (D, error)

type DaoConsumer[D any] func(D) error

type DaoFunction[D, T any] func(D) (T, error)

// Submitter runs tasks in the background. *workerpool.Pool satisfies it.
type Submitter interface {
	Submit(task func()) error
}

// NoModifier leaves the statement untouched.
func NoModifier(session.Statement) error {
	return nil
}

// Params binds values to positions 1..N in the given order.
func Params(values ...any) StatementModifier {
	return func(s session.Statement) error {
		for i, v := range values {
			if err := s.Bind(i+1, v); err != nil {
				return err
			}
		}
		return nil
	}
}
