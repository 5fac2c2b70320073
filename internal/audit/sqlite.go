package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/dbx"
)

// SQLiteSink appends entries to the local audit_log table.
type SQLiteSink struct {
	db dbx.DBTX
}

func NewSQLiteSink(db dbx.DBTX) *SQLiteSink {
	return &SQLiteSink{db: db}
}

func (s *SQLiteSink) Write(ctx context.Context, e Entry) error {
	details, err := marshalDetails(e.Details)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, user_id, action, ip_address, user_agent, location, occurred_at, success, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.UserID, string(e.Action), e.IPAddress, e.UserAgent, e.Location, e.Timestamp, e.Success, details)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (s *SQLiteSink) Recent(ctx context.Context, n int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, action, ip_address, user_agent, location, occurred_at, success, details
		FROM audit_log
		ORDER BY occurred_at DESC, rowid DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			action  string
			details sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UserID, &action, &e.IPAddress, &e.UserAgent, &e.Location,
			&e.Timestamp, &e.Success, &details); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		e.Action = Action(action)
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &e.Details); err != nil {
				return nil, fmt.Errorf("failed to decode audit details: %w", err)
			}
		}
		out = append(out, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit rows: %w", err)
	}
	return out, nil
}

func marshalDetails(d map[string]any) (*string, error) {
	if len(d) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit details: %w", err)
	}
	s := string(b)
	return &s, nil
}
