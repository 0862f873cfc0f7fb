package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-db-go/asceticdb/session"
)

// LogicalSizeQuery reports the total on-disk size of a relation,
// indexes and TOAST data included.
const LogicalSizeQuery = "SELECT pg_total_relation_size(?::regclass)"

// Source hands out connections of a pgxpool.Pool.
type Source struct {
	pool *pgxpool.Pool
}

func NewSource(pool *pgxpool.Pool) *Source {
	return &Source{pool: pool}
}

// Open creates a pool of at most maxConns connections to url and checks
// that the server is reachable.
func Open(ctx context.Context, url string, maxConns int) (*Source, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse database url")
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "unable to reach database")
	}
	return NewSource(pool), nil
}

func (s *Source) Acquire(ctx context.Context) (session.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return newConnection(ctx, conn), nil
}

func (s *Source) LogicalSizeQuery() string {
	return LogicalSizeQuery
}

func (s *Source) Stat() *pgxpool.Stat {
	return s.pool.Stat()
}

func (s *Source) Close() error {
	s.pool.Close()
	return nil
}
