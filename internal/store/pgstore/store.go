// Package pgstore keeps blueprints in PostgreSQL, one row per blueprint with
// the points in a jsonb column.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dyluth/blueprints/internal/store"
	"github.com/dyluth/blueprints/pkg/blueprint"
	"github.com/golang/glog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS blueprints (
	author TEXT  NOT NULL,
	name   TEXT  NOT NULL,
	points JSONB NOT NULL DEFAULT '[]'::jsonb,
	PRIMARY KEY (author, name)
)`

// uniqueViolation is the PostgreSQL SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// Store is a store.Repository backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Repository = (*Store)(nil)

// Open connects to databaseURL and makes sure the table exists.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	glog.Infof("[pgstore] connected")
	return s, nil
}

// Migrate creates the blueprints table if needed.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create blueprints table: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Create inserts bp unless its key is already taken.
func (s *Store) Create(ctx context.Context, bp *blueprint.Blueprint) error {
	points, err := encodePoints(bp)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO blueprints (author, name, points) VALUES ($1, $2, $3)`,
		bp.Author, bp.Name, points)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", store.ErrExists, bp.Key())
	}
	if err != nil {
		return fmt.Errorf("failed to insert blueprint: %w", err)
	}
	return nil
}

// Update replaces the points of an existing blueprint.
func (s *Store) Update(ctx context.Context, bp *blueprint.Blueprint) error {
	points, err := encodePoints(bp)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE blueprints SET points = $3 WHERE author = $1 AND name = $2`,
		bp.Author, bp.Name, points)
	if err != nil {
		return fmt.Errorf("failed to update blueprint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, bp.Key())
	}
	return nil
}

// Get reads one blueprint.
func (s *Store) Get(ctx context.Context, key blueprint.Key) (*blueprint.Blueprint, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT author, name, points FROM blueprints WHERE author = $1 AND name = $2`,
		key.Author, key.Name)
	bp, err := scanBlueprint(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blueprint: %w", err)
	}
	return bp, nil
}

// ListByAuthor reads every blueprint of author, sorted by name.
func (s *Store) ListByAuthor(ctx context.Context, author string) ([]*blueprint.Blueprint, error) {
	bps, err := s.query(ctx,
		`SELECT author, name, points FROM blueprints WHERE author = $1 ORDER BY name`, author)
	if err != nil {
		return nil, err
	}
	if len(bps) == 0 {
		return nil, fmt.Errorf("%w: no blueprints for author %s", store.ErrNotFound, author)
	}
	return bps, nil
}

// List reads every blueprint, sorted by author and name.
func (s *Store) List(ctx context.Context) ([]*blueprint.Blueprint, error) {
	return s.query(ctx, `SELECT author, name, points FROM blueprints ORDER BY author, name`)
}

// Delete removes a blueprint.
func (s *Store) Delete(ctx context.Context, key blueprint.Key) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM blueprints WHERE author = $1 AND name = $2`, key.Author, key.Name)
	if err != nil {
		return fmt.Errorf("failed to delete blueprint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, key)
	}
	return nil
}

func (s *Store) query(ctx context.Context, sql string, args ...any) ([]*blueprint.Blueprint, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query blueprints: %w", err)
	}
	defer rows.Close()

	out := []*blueprint.Blueprint{}
	for rows.Next() {
		bp, err := scanBlueprint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read blueprint row: %w", err)
		}
		out = append(out, bp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query blueprints: %w", err)
	}
	return out, nil
}

func scanBlueprint(row pgx.Row) (*blueprint.Blueprint, error) {
	var (
		bp  blueprint.Blueprint
		raw []byte
	)
	if err := row.Scan(&bp.Author, &bp.Name, &raw); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &bp.Points); err != nil {
		return nil, fmt.Errorf("failed to unmarshal points: %w", err)
	}
	if bp.Points == nil {
		bp.Points = []blueprint.Point{}
	}
	return &bp, nil
}

func encodePoints(bp *blueprint.Blueprint) ([]byte, error) {
	if err := bp.Validate(); err != nil {
		return nil, fmt.Errorf("invalid blueprint: %w", err)
	}
	data, err := json.Marshal(bp.Clone().Points)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal points: %w", err)
	}
	return data, nil
}
