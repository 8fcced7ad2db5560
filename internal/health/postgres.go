package health

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresChecker implements health checking for PostgreSQL.
type PostgresChecker struct {
	pool *pgxpool.Pool
}

// NewPostgresChecker creates a new PostgreSQL health checker.
func NewPostgresChecker(pool *pgxpool.Pool) *PostgresChecker {
	return &PostgresChecker{pool: pool}
}

// HealthCheck pings the database.
func (p *PostgresChecker) HealthCheck(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
