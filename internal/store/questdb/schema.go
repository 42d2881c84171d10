package questdb

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// QuestDB types the top-of-book and derived columns as DOUBLE so one-sided
// books can store NULL. The table is WAL-enabled and partitioned by day,
// matching the expected retention workflow of dropping whole partitions.
const createTableDDL = `
CREATE TABLE IF NOT EXISTS %s (
	exchange SYMBOL,
	symbol SYMBOL,
	base SYMBOL,
	quote SYMBOL,
	region SYMBOL,
	venue_type SYMBOL,
	instance SYMBOL,
	seq LONG,
	best_bid DOUBLE,
	best_ask DOUBLE,
	mid_price DOUBLE,
	spread_bps DOUBLE,
	recv_ts_s DOUBLE,
	depth_json STRING,
	raw_json STRING,
	ts TIMESTAMP
) TIMESTAMP(ts) PARTITION BY DAY WAL;`

// SchemaClient manages the orderbook table over QuestDB's PostgreSQL wire
// endpoint (port 8812 by default).
type SchemaClient struct {
	pool *pgxpool.Pool
}

// NewSchemaClient connects a pgx pool to the given DSN and verifies the
// connection with a ping.
func NewSchemaClient(ctx context.Context, dsn string) (*SchemaClient, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("questdb: parse pg config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("questdb: connect pg wire: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("questdb: ping: %w", err)
	}

	return &SchemaClient{pool: pool}, nil
}

// CreateSchema creates the orderbook table if it does not exist.
func (s *SchemaClient) CreateSchema(ctx context.Context, table string) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(createTableDDL, table)); err != nil {
		return fmt.Errorf("questdb: create table %s: %w", table, err)
	}
	return nil
}

// RowCount reports how many rows the table currently holds. Used by the
// schema tool to confirm ingestion is flowing.
func (s *SchemaClient) RowCount(ctx context.Context, table string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT count() FROM %s", table)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("questdb: count %s: %w", table, err)
	}
	return count, nil
}

// Close shuts down the connection pool.
func (s *SchemaClient) Close() {
	s.pool.Close()
}
