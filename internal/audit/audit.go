// Package audit records security relevant authentication events.
//
// Recording is fire and forget: Record never returns an error and never lets
// a failing sink affect the authentication flow that produced the event.
// Entries are append only and are not queryable through this package, except
// for local inspection via SQLiteSink.Recent.
package audit

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/timex"
)

type Action string

const (
	ActionLoginAttempt         Action = "login_attempt"
	ActionLoginSuccess         Action = "login_success"
	ActionLoginFailure         Action = "login_failure"
	ActionRegister             Action = "register"
	ActionLogout               Action = "logout"
	ActionTokenRefresh         Action = "token_refresh"
	ActionTokenRefreshFailure  Action = "token_refresh_failure"
	ActionPasswordChange       Action = "password_change"
	ActionPasswordResetRequest Action = "password_reset_request"
	ActionPasswordReset        Action = "password_reset"
	ActionEmailVerification    Action = "email_verification"
	ActionSessionExpired       Action = "session_expired"
)

// Event is what callers report. The recorder stamps id, time and request
// info to produce an Entry.
type Event struct {
	UserID  string
	Action  Action
	Success bool
	Details map[string]any
}

type Entry struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	Action    Action         `json:"action"`
	IPAddress string         `json:"ipAddress"`
	UserAgent string         `json:"userAgent"`
	Location  string         `json:"location"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
	Details   map[string]any `json:"details,omitempty"`
}

// RequestInfo describes where events originate from.
type RequestInfo struct {
	IPAddress string
	UserAgent string
	Location  string
}

// DefaultUserAgent identifies this client build and platform.
func DefaultUserAgent(version string) string {
	return fmt.Sprintf("authkeeper-cli/%s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}

type Recorder struct {
	sink  Sink
	log   logging.Logger
	now   timex.Clock
	newID func() string
	info  RequestInfo
}

type Option func(*Recorder)

func WithClock(c timex.Clock) Option { return func(r *Recorder) { r.now = c } }

func WithIDGenerator(f func() string) Option { return func(r *Recorder) { r.newID = f } }

func WithLogger(l logging.Logger) Option { return func(r *Recorder) { r.log = l } }

func WithRequestInfo(info RequestInfo) Option { return func(r *Recorder) { r.info = info } }

func NewRecorder(sink Sink, opts ...Option) *Recorder {
	r := &Recorder{
		sink:  sink,
		log:   logging.Nop(),
		now:   time.Now,
		newID: common.NewID,
	}
	for _, o := range opts {
		o(r)
	}
	r.log = r.log.With("module", "audit")
	return r
}

// Record appends one entry. Nil-safe.
func (r *Recorder) Record(ctx context.Context, ev Event) {
	if r == nil || r.sink == nil {
		return
	}

	e := Entry{
		ID:        r.newID(),
		UserID:    ev.UserID,
		Action:    ev.Action,
		IPAddress: r.info.IPAddress,
		UserAgent: r.info.UserAgent,
		Location:  r.info.Location,
		Timestamp: r.now().UTC(),
		Success:   ev.Success,
		Details:   ev.Details,
	}

	defer func() {
		if p := recover(); p != nil {
			r.log.Error(ctx, "audit sink panicked", "action", e.Action, "panic", p)
		}
	}()

	if err := r.sink.Write(ctx, e); err != nil {
		r.log.Warn(ctx, "failed to write audit entry", "action", e.Action, "id", e.ID, "error", err)
	}
}
