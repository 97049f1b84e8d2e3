package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const postgresTableSuffix = "synapse_meta_tables"

// Postgres is a Store backed by the <prefix>synapse_meta_tables table.
type Postgres struct {
	db    *sql.DB
	table string
}

func NewPostgres(db *sql.DB, prefix string) *Postgres {
	return &Postgres{db: db, table: pq.QuoteIdentifier(prefix + postgresTableSuffix)}
}

// Setup creates the registry table if it doesn't exist.
func (p *Postgres) Setup(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+p.table+` (
		  table_name TEXT PRIMARY KEY,
		  table_id TEXT NOT NULL,
		  created_at TIMESTAMP NOT NULL DEFAULT NOW()
		);
`)
	if err != nil {
		return fmt.Errorf("creating table %s: %w", p.table, err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, key string) (string, bool, error) {
	var tableID string
	err := p.db.QueryRowContext(ctx, `SELECT table_id FROM `+p.table+` WHERE table_name = $1;`, key).Scan(&tableID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("getting %s: %w", key, err)
	}
	return tableID, true, nil
}

func (p *Postgres) Put(ctx context.Context, key, tableID string) error {
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO `+p.table+` (table_name, table_id)
		VALUES ($1, $2)
		ON CONFLICT (table_name) DO NOTHING;
`, key, tableID)
	if err != nil {
		return fmt.Errorf("putting %s: %w", key, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("putting %s: rows affected: %w", key, err)
	}
	if affected == 0 {
		return fmt.Errorf("putting %s: %w", key, ErrAlreadyRegistered)
	}
	return nil
}
