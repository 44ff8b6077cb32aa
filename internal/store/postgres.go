package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

var _ Store = (*PostgresStore)(nil)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS secrets (
    id TEXT PRIMARY KEY,
    payload TEXT NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS secrets_expires_at_idx ON secrets (expires_at);
`

const (
	// An expired row that the sweeper has not reached yet may be replaced.
	insertSecretQuery = `INSERT INTO secrets (id, payload, expires_at) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at
WHERE secrets.expires_at <= $4`

	takeSecretQuery = `DELETE FROM secrets WHERE id = $1 RETURNING payload, expires_at`

	sweepSecretsQuery = `DELETE FROM secrets WHERE expires_at <= $1`
)

// PostgresStore keeps secrets in a single table. Take is one DELETE ...
// RETURNING statement, so concurrent readers serialize on the row lock
// and only one of them gets it back.
type PostgresStore struct {
	db          *sql.DB
	now         func() time.Time
	log         *zap.Logger
	sweepCancel context.CancelFunc
}

func NewPostgresStore(ctx context.Context, dsn string, sweepInterval time.Duration, log *zap.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping postgres: %v", ErrUnavailable, err)
	}

	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := newPostgresStore(db, log)
	s.startSweeper(sweepInterval)
	return s, nil
}

func newPostgresStore(db *sql.DB, log *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now, log: log}
}

func (s *PostgresStore) Put(ctx context.Context, id, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("invalid ttl %s", ttl)
	}

	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx, insertSecretQuery, id, value, now.Add(ttl), now)
	if err != nil {
		return fmt.Errorf("%w: insert: %v", ErrUnavailable, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: insert: %v", ErrUnavailable, err)
	}
	if n == 0 {
		return ErrExists
	}
	return nil
}

func (s *PostgresStore) Take(ctx context.Context, id string) (string, error) {
	var (
		payload   string
		expiresAt time.Time
	)
	err := s.db.QueryRowContext(ctx, takeSecretQuery, id).Scan(&payload, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: delete: %v", ErrUnavailable, err)
	}

	// The row is gone either way; an expired one just is not handed out.
	if !s.now().Before(expiresAt) {
		return "", ErrNotFound
	}
	return payload, nil
}

func (s *PostgresStore) Close() error {
	if s.sweepCancel != nil {
		s.sweepCancel()
	}
	return s.db.Close()
}

func (s *PostgresStore) startSweeper(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	s.sweepCancel = cancel

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

func (s *PostgresStore) sweep(ctx context.Context) {
	res, err := s.db.ExecContext(ctx, sweepSecretsQuery, s.now().UTC())
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error("failed to sweep expired secrets", zap.Error(err))
		}
		return
	}
	if rows, _ := res.RowsAffected(); rows > 0 {
		s.log.Info("swept expired secrets", zap.Int64("removed", rows))
	}
}
