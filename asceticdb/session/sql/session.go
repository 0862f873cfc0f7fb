package sql

import (
	"context"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-db-go/asceticdb/session"
	"github.com/krew-solutions/ascetic-db-go/asceticdb/session/result"
)

type connection struct {
	ctx      context.Context
	conn     *sqlx.Conn
	bindType int
	once     sync.Once
	done     bool
	err      error
}

func (c *connection) Context() context.Context {
	return c.ctx
}

// Prepare rebinds question mark placeholders for the driver in use.
func (c *connection) Prepare(query string) (session.Statement, error) {
	if c.done {
		return nil, session.ErrReleased
	}
	stmt, err := c.conn.PreparexContext(c.ctx, sqlx.Rebind(c.bindType, query))
	if err != nil {
		return nil, err
	}
	return &statement{ctx: c.ctx, stmt: stmt}, nil
}

func (c *connection) Release() error {
	c.once.Do(func() {
		c.done = true
		c.err = c.conn.Close()
	})
	return c.err
}

type statement struct {
	ctx    context.Context
	stmt   *sqlx.Stmt
	params []any
}

func (s *statement) Bind(index int, value any) error {
	if index < 1 {
		return errors.Errorf("parameter index %d out of range", index)
	}
	for len(s.params) < index {
		s.params = append(s.params, nil)
	}
	s.params[index-1] = value
	return nil
}

func (s *statement) Query() (session.Rows, error) {
	rows, err := s.stmt.QueryContext(s.ctx, s.params...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *statement) Exec() (session.Result, error) {
	res, err := s.stmt.ExecContext(s.ctx, s.params...)
	if err != nil {
		return nil, err
	}
	return result.FromSQL(res)
}

func (s *statement) Close() error {
	return s.stmt.Close()
}
