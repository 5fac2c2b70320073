package audit

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
)

type Sink interface {
	Write(ctx context.Context, e Entry) error
}

// MultiSink writes to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, e Entry) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LoggerSink emits each entry as a structured log line.
type LoggerSink struct {
	log logging.Logger
}

func NewLoggerSink(l logging.Logger) *LoggerSink {
	return &LoggerSink{log: l.With("audit", true)}
}

func (s *LoggerSink) Write(ctx context.Context, e Entry) error {
	args := []any{
		"id", e.ID,
		"action", e.Action,
		"success", e.Success,
		"user_id", e.UserID,
		"ip", e.IPAddress,
		"at", e.Timestamp,
	}
	for k, v := range e.Details {
		args = append(args, "details."+k, v)
	}
	s.log.Info(ctx, "security event", args...)
	return nil
}
