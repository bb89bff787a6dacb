package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/alertkit/pkg/notification"
)

// PostgresConfig configures the Postgres-backed store connection.
type PostgresConfig struct {
	ConnectionString  string        `env:"PG_CONN_URL,required"`
	MaxOpenConns      int32         `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns      int32         `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
	HealthCheckPeriod time.Duration `env:"PG_HEALTHCHECK_PERIOD" envDefault:"1m"`
	RetryAttempts     int           `env:"PG_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval     time.Duration `env:"PG_RETRY_INTERVAL" envDefault:"5s"`
}

// Connect establishes a pgx connection pool with linear-backoff retries so
// engine startup survives transient database unavailability.
func Connect(ctx context.Context, cfg PostgresConfig) (*pgxpool.Pool, error) {
	connConfig, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseDBConfig, err)
	}
	connConfig.MaxConns = cfg.MaxOpenConns
	connConfig.MinConns = cfg.MaxIdleConns
	connConfig.HealthCheckPeriod = cfg.HealthCheckPeriod

	for i := range cfg.RetryAttempts {
		pool, err := pgxpool.NewWithConfig(ctx, connConfig)
		if err != nil {
			time.Sleep(time.Duration(i+1) * cfg.RetryInterval)
			continue
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			time.Sleep(time.Duration(i+1) * cfg.RetryInterval)
			continue
		}
		return pool, nil
	}
	return nil, ErrFailedToOpenDBConnection
}

// PostgresStore persists notifications in a single table with JSONB payload
// and attempt history.
//
// Expected schema:
//
//	CREATE TABLE notifications (
//	    id               UUID PRIMARY KEY,
//	    recipient_id     TEXT NOT NULL,
//	    title            TEXT NOT NULL,
//	    message          TEXT NOT NULL,
//	    category         TEXT NOT NULL,
//	    priority         TEXT NOT NULL,
//	    payload          JSONB,
//	    acknowledged     BOOLEAN NOT NULL DEFAULT FALSE,
//	    escalation_level INT NOT NULL DEFAULT 0,
//	    status           TEXT NOT NULL,
//	    attempts         JSONB NOT NULL DEFAULT '[]',
//	    created_at       TIMESTAMPTZ NOT NULL,
//	    expires_at       TIMESTAMPTZ
//	);
//	CREATE INDEX notifications_sweep_idx ON notifications (status, acknowledged, created_at);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed notification store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, ErrPoolRequired
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Create(ctx context.Context, n notification.Notification) error {
	payload, attempts, err := marshalJSONFields(n)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO notifications
			(id, recipient_id, title, message, category, priority, payload,
			 acknowledged, escalation_level, status, attempts, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		n.ID, n.RecipientID, n.Title, n.Message, string(n.Category), string(n.Priority),
		payload, n.Acknowledged, n.EscalationLevel, string(n.Status), attempts,
		n.CreatedAt, n.ExpiresAt,
	)
	if err != nil {
		// Escalation re-entry persists an already-stored notification; the
		// enqueue path treats ErrAlreadyExists as success, matching the
		// memory store.
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert notification %s: %w", n.ID, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*notification.Notification, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, recipient_id, title, message, category, priority, payload,
		       acknowledged, escalation_level, status, attempts, created_at, expires_at
		FROM notifications WHERE id = $1`, id)

	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notification.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load notification %s: %w", id, err)
	}
	return n, nil
}

func (s *PostgresStore) Update(ctx context.Context, n notification.Notification) error {
	_, attempts, err := marshalJSONFields(n)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET status = $2, escalation_level = $3, acknowledged = $4, attempts = $5
		WHERE id = $1`,
		n.ID, string(n.Status), n.EscalationLevel, n.Acknowledged, attempts,
	)
	if err != nil {
		return fmt.Errorf("failed to update notification %s: %w", n.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return notification.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListUnacknowledged(ctx context.Context, statuses []notification.Status, createdBefore time.Time) ([]notification.Notification, error) {
	states := make([]string, len(statuses))
	for i, st := range statuses {
		states[i] = string(st)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, recipient_id, title, message, category, priority, payload,
		       acknowledged, escalation_level, status, attempts, created_at, expires_at
		FROM notifications
		WHERE acknowledged = FALSE AND status = ANY($1) AND created_at < $2
		ORDER BY created_at`, states, createdBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to list unacknowledged notifications: %w", err)
	}
	defer rows.Close()

	var out []notification.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification row: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Acknowledge(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE notifications SET acknowledged = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to acknowledge notification %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return notification.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (*notification.Notification, error) {
	var (
		n                 notification.Notification
		category, prio    string
		status            string
		payload, attempts []byte
	)

	if err := row.Scan(&n.ID, &n.RecipientID, &n.Title, &n.Message, &category, &prio,
		&payload, &n.Acknowledged, &n.EscalationLevel, &status, &attempts,
		&n.CreatedAt, &n.ExpiresAt); err != nil {
		return nil, err
	}

	n.Category = notification.Category(category)
	n.Priority = notification.Priority(prio)
	n.Status = notification.Status(status)

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &n.Payload); err != nil {
			return nil, fmt.Errorf("malformed payload JSON: %w", err)
		}
	}
	if len(attempts) > 0 {
		if err := json.Unmarshal(attempts, &n.Attempts); err != nil {
			return nil, fmt.Errorf("malformed attempts JSON: %w", err)
		}
	}
	return &n, nil
}

func marshalJSONFields(n notification.Notification) (payload, attempts []byte, err error) {
	if n.Payload != nil {
		payload, err = json.Marshal(n.Payload)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
	}
	if n.Attempts == nil {
		attempts = []byte("[]")
	} else {
		attempts, err = json.Marshal(n.Attempts)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal attempts: %w", err)
		}
	}
	return payload, attempts, nil
}
