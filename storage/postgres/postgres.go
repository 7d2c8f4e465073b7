// Package postgres implements storage.Repository backed by PostgreSQL.
//
// The slots table is keyed by (namespace, slot), the same key space as the
// BBolt and in-memory backends. Envelope fields are stored as columns.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmcleod/tablehand/storage"
)

// Store implements storage.Repository backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Repository = (*Store)(nil)

// NewRepository returns a Repository backed by the given pgx connection pool.
func NewRepository(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewRepositoryFromDSN creates a connection pool from a DSN string, ensures
// the schema exists, and returns a new Repository.
func NewRepositoryFromDSN(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return NewRepository(pool), nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Put(namespace, slot string, envelope *storage.Envelope) error {
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO slots (namespace, slot, ver, scheme, nonce, ciphertext)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (namespace, slot)
		 DO UPDATE SET ver = $3, scheme = $4, nonce = $5, ciphertext = $6`,
		namespace, slot, envelope.Ver, envelope.Scheme, envelope.Nonce, envelope.Ciphertext)
	return err
}

func (s *Store) Get(namespace, slot string) (*storage.Envelope, error) {
	var env storage.Envelope
	err := s.pool.QueryRow(context.Background(),
		`SELECT ver, scheme, nonce, ciphertext FROM slots WHERE namespace = $1 AND slot = $2`,
		namespace, slot).Scan(&env.Ver, &env.Scheme, &env.Nonce, &env.Ciphertext)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", namespace, slot, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &env, nil
}

func (s *Store) Delete(namespace, slot string) error {
	tag, err := s.pool.Exec(context.Background(),
		`DELETE FROM slots WHERE namespace = $1 AND slot = $2`, namespace, slot)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", namespace, slot, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) List(namespace string) ([]string, error) {
	rows, err := s.pool.Query(context.Background(),
		`SELECT slot FROM slots WHERE namespace = $1 ORDER BY slot`, namespace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []string
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}
