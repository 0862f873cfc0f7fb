package pg

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-db-go/asceticdb/session"
	"github.com/krew-solutions/ascetic-db-go/asceticdb/session/result"
)

// connection implements session.Connection over a pooled pgx connection.
type connection struct {
	ctx  context.Context
	conn *pgxpool.Conn
	once sync.Once
	done bool
}

func newConnection(ctx context.Context, conn *pgxpool.Conn) *connection {
	return &connection{ctx: ctx, conn: conn}
}

func (c *connection) Context() context.Context {
	return c.ctx
}

// Prepare creates a named server-side statement. Question mark
// placeholders are rewritten to the $n form understood by PostgreSQL.
func (c *connection) Prepare(query string) (session.Statement, error) {
	if c.done {
		return nil, session.ErrReleased
	}
	name := "stmt_" + uuid.NewString()
	desc, err := c.conn.Conn().Prepare(c.ctx, name, sqlx.Rebind(sqlx.DOLLAR, query))
	if err != nil {
		return nil, err
	}
	return &statement{
		ctx:    c.ctx,
		conn:   c.conn,
		name:   name,
		params: make([]any, len(desc.ParamOIDs)),
	}, nil
}

func (c *connection) Release() error {
	c.once.Do(func() {
		c.done = true
		c.conn.Release()
	})
	return nil
}

// statement implements session.Statement
type statement struct {
	ctx    context.Context
	conn   *pgxpool.Conn
	name   string
	params []any
}

func (s *statement) Bind(index int, value any) error {
	if index < 1 || index > len(s.params) {
		return errors.Errorf("parameter index %d out of range [1, %d]", index, len(s.params))
	}
	s.params[index-1] = value
	return nil
}

func (s *statement) Query() (session.Rows, error) {
	rows, err := s.conn.Query(s.ctx, s.name, s.params...)
	if err != nil {
		return nil, err
	}
	return &rowsAdapter{rows: rows}, nil
}

func (s *statement) Exec() (session.Result, error) {
	tag, err := s.conn.Exec(s.ctx, s.name, s.params...)
	if err != nil {
		return nil, err
	}
	return result.NewResult(tag.RowsAffected()), nil
}

// Close deallocates the server-side statement even when the operation
// context has been cancelled, so the connection goes back to the pool
// clean.
func (s *statement) Close() error {
	return s.conn.Conn().Deallocate(context.WithoutCancel(s.ctx), s.name)
}
