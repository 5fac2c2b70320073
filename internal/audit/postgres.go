package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgExecutor is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS security_audit_log (
    id          UUID PRIMARY KEY,
    user_id     TEXT NOT NULL DEFAULT '',
    action      TEXT NOT NULL,
    ip_address  TEXT NOT NULL DEFAULT '',
    user_agent  TEXT NOT NULL DEFAULT '',
    location    TEXT NOT NULL DEFAULT '',
    occurred_at TIMESTAMPTZ NOT NULL,
    success     BOOLEAN NOT NULL,
    details     JSONB
)`

// PostgresSink ships entries to a central security_audit_log table.
type PostgresSink struct {
	exec pgExecutor
}

func NewPostgresSink(exec pgExecutor) *PostgresSink {
	return &PostgresSink{exec: exec}
}

// OpenPostgresSink connects a pool to dsn and makes sure the table exists.
// The returned close func releases the pool.
func OpenPostgresSink(ctx context.Context, dsn string) (*PostgresSink, func(), error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect audit database: %w", err)
	}
	s := NewPostgresSink(pool)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}

func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.exec.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create security_audit_log: %w", err)
	}
	return nil
}

func (s *PostgresSink) Write(ctx context.Context, e Entry) error {
	details, err := marshalDetails(e.Details)
	if err != nil {
		return err
	}

	_, err = s.exec.Exec(ctx, `
		INSERT INTO security_audit_log (id, user_id, action, ip_address, user_agent, location, occurred_at, success, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.ID, e.UserID, string(e.Action), e.IPAddress, e.UserAgent, e.Location, e.Timestamp, e.Success, details)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}
