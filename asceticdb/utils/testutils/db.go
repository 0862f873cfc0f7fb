package testutils

import (
	"context"
	"os"

	"github.com/krew-solutions/ascetic-db-go/asceticdb/session/pg"
	sqlsource "github.com/krew-solutions/ascetic-db-go/asceticdb/session/sql"
)

// NewPgSource connects to the PostgreSQL server described by the DB_*
// environment variables.
func NewPgSource(ctx context.Context) (*pg.Source, error) {
	return pg.Open(ctx, PgURL(), 5)
}

func PgURL() string {
	var db_username string = getEnv("DB_USERNAME", "devel")
	var db_password string = getEnv("DB_PASSWORD", "devel")
	var db_host string = getEnv("DB_HOST", "localhost")
	var db_port string = getEnv("DB_PORT", "5432")
	var db_basename string = getEnv("DB_DATABASE", "devel_grade")

	return "postgres://" + db_username + ":" + db_password + "@" + db_host + ":" + db_port + "/" + db_basename
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}

// NewSQLSource connects through database/sql to the same server as
// NewPgSource.
func NewSQLSource(ctx context.Context) (*sqlsource.Source, error) {
	return sqlsource.Open(ctx, sqlsource.DefaultDriver, PgURL(), 5, pg.LogicalSizeQuery)
}
