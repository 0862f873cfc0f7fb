package sql

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-db-go/asceticdb/session"
)

// DefaultDriver is registered by github.com/jackc/pgx/v5/stdlib.
const DefaultDriver = "pgx"

// Source hands out dedicated connections of a database/sql pool.
type Source struct {
	db               *sqlx.DB
	logicalSizeQuery string
}

func NewSource(db *sqlx.DB, logicalSizeQuery string) *Source {
	return &Source{db: db, logicalSizeQuery: logicalSizeQuery}
}

// Open opens driverName with dsn, limits the pool to maxOpen
// connections and pings the server.
func Open(ctx context.Context, driverName, dsn string, maxOpen int, logicalSizeQuery string) (*Source, error) {
	if driverName == "" {
		driverName = DefaultDriver
	}
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open %s database", driverName)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "unable to reach database")
	}
	return NewSource(db, logicalSizeQuery), nil
}

func (s *Source) Acquire(ctx context.Context) (session.Connection, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, err
	}
	return &connection{ctx: ctx, conn: conn, bindType: sqlx.BindType(s.db.DriverName())}, nil
}

func (s *Source) LogicalSizeQuery() string {
	return s.logicalSizeQuery
}

func (s *Source) Stats() sql.DBStats {
	return s.db.Stats()
}

func (s *Source) Close() error {
	return s.db.Close()
}
