package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/labelqr/internal/core"
	"github.com/JonMunkholm/labelqr/internal/logging"
)

// DBTX is the subset of pgxpool.Pool used by Postgres.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schema = `
CREATE TABLE IF NOT EXISTS qr_preferences (
	client_id  TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS qr_sheets (
	id         TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

const (
	loadPreferencesSQL  = `SELECT data FROM qr_preferences WHERE client_id = $1`
	savePreferencesSQL  = `INSERT INTO qr_preferences (client_id, data, updated_at) VALUES ($1, $2, now()) ON CONFLICT (client_id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`
	clearPreferencesSQL = `DELETE FROM qr_preferences WHERE client_id = $1`
	saveSheetSQL        = `INSERT INTO qr_sheets (id, data, created_at) VALUES ($1, $2, $3)`
	loadSheetSQL        = `SELECT data FROM qr_sheets WHERE id = $1`
	purgeSheetsSQL      = `DELETE FROM qr_sheets WHERE created_at < $1`
)

// Postgres is a Store on PostgreSQL tables qr_preferences and qr_sheets.
type Postgres struct {
	db   DBTX
	pool *pgxpool.Pool
	ttl  time.Duration
	now  func() time.Time
}

var _ Store = (*Postgres)(nil)

// OpenPostgres connects a pool to url and creates the tables if needed.
func OpenPostgres(ctx context.Context, url string, maxConns int, ttl time.Duration) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := NewPostgres(pool, ttl)
	s.pool = pool
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgres wraps an existing connection. The caller owns db.
func NewPostgres(db DBTX, ttl time.Duration) *Postgres {
	return &Postgres{db: db, ttl: ttl, now: time.Now}
}

// Migrate creates the tables if they do not exist.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

func (s *Postgres) Load(ctx context.Context, client string) (Preferences, bool, error) {
	var data []byte
	err := s.db.QueryRow(ctx, loadPreferencesSQL, client).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return Preferences{}, false, nil
	}
	if err != nil {
		return Preferences{}, false, fmt.Errorf("load preferences: %w", err)
	}
	p, err := decodePreferences(data)
	if err != nil {
		return Preferences{}, false, err
	}
	return p, true, nil
}

func (s *Postgres) Save(ctx context.Context, client string, p Preferences) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	if _, err := s.db.Exec(ctx, savePreferencesSQL, client, data); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

func (s *Postgres) Clear(ctx context.Context, client string) error {
	if _, err := s.db.Exec(ctx, clearPreferencesSQL, client); err != nil {
		return fmt.Errorf("clear preferences: %w", err)
	}
	return nil
}

func (s *Postgres) SaveSheet(ctx context.Context, sheet SavedSheet) (string, error) {
	sheet, data, err := prepareSheet(sheet, s.now())
	if err != nil {
		return "", err
	}
	if _, err := s.db.Exec(ctx, saveSheetSQL, sheet.ID, data, sheet.CreatedAt); err != nil {
		return "", fmt.Errorf("save sheet: %w", err)
	}
	return sheet.ID, nil
}

func (s *Postgres) LoadSheet(ctx context.Context, id string) (SavedSheet, error) {
	if !validSheetID(id) {
		return SavedSheet{}, core.ErrSheetNotFound
	}
	var data []byte
	err := s.db.QueryRow(ctx, loadSheetSQL, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return SavedSheet{}, core.ErrSheetNotFound
	}
	if err != nil {
		return SavedSheet{}, fmt.Errorf("load sheet: %w", err)
	}
	return decodeSheet(data, s.ttl, s.now())
}

// PurgeExpired deletes sheets older than the TTL.
func (s *Postgres) PurgeExpired(ctx context.Context) error {
	if s.ttl <= 0 {
		return nil
	}
	tag, err := s.db.Exec(ctx, purgeSheetsSQL, s.now().Add(-s.ttl))
	if err != nil {
		return fmt.Errorf("purge sheets: %w", err)
	}
	if n := tag.RowsAffected(); n > 0 {
		logging.FromContext(ctx).Info("expired sheets purged", "count", n)
	}
	return nil
}

// Close closes the pool opened by OpenPostgres.
func (s *Postgres) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
