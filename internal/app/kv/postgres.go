package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"labelbot/internal/app/db"
)

// Postgres is a Store backed by the kv_entries and kv_list_items tables.
type Postgres struct {
	// DB is the database handle for executing queries.
	DB *sql.DB

	closeFn func()
}

// OpenPostgres connects, migrates and returns a Postgres store.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	sqlDB, closeFn, err := db.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Postgres{DB: sqlDB, closeFn: closeFn}, nil
}

// NewPostgres wraps an already migrated database handle.
func NewPostgres(sqlDB *sql.DB) *Postgres {
	return &Postgres{DB: sqlDB}
}

func (p *Postgres) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := p.DB.QueryRowContext(ctx,
		`SELECT value FROM kv_entries WHERE key = $1`,
		key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("postgres get: %w", err)
	}
	return value, nil
}

func (p *Postgres) Set(ctx context.Context, key, value string) error {
	_, err := p.DB.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("postgres set: %w", err)
	}
	return nil
}

func (p *Postgres) SetNX(ctx context.Context, key, value string) (bool, error) {
	res, err := p.DB.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`,
		key, value,
	)
	if err != nil {
		return false, fmt.Errorf("postgres setnx: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("postgres setnx: %w", err)
	}
	return rows == 1, nil
}

// RPush appends value and returns the list length including it. Appends to the
// same key are serialized by a transaction-scoped advisory lock.
func (p *Postgres) RPush(ctx context.Context, key, value string) (n int64, err error) {
	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("postgres rpush: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1))`,
		key,
	); err != nil {
		return 0, fmt.Errorf("postgres rpush lock: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO kv_list_items (list_key, value) VALUES ($1, $2)`,
		key, value,
	); err != nil {
		return 0, fmt.Errorf("postgres rpush: %w", err)
	}

	if err = tx.QueryRowContext(ctx,
		`SELECT count(*) FROM kv_list_items WHERE list_key = $1`,
		key,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres rpush count: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("postgres rpush commit: %w", err)
	}
	return n, nil
}

func (p *Postgres) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	rows, err := p.DB.QueryContext(ctx,
		`SELECT value FROM kv_list_items WHERE list_key = $1 ORDER BY id`,
		key,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres lrange: %w", err)
	}
	defer rows.Close()

	var all []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("postgres lrange scan: %w", err)
		}
		all = append(all, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres lrange: %w", err)
	}

	lo, hi, ok := rangeBounds(int64(len(all)), start, stop)
	if !ok {
		return []string{}, nil
	}
	return all[lo:hi], nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	if p.closeFn != nil {
		p.closeFn()
		return nil
	}
	return p.DB.Close()
}
