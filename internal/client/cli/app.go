package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/audit"
	"github.com/dmitrijs2005/authkeeper/internal/client/models"
	"github.com/dmitrijs2005/authkeeper/internal/client/state"
	"github.com/dmitrijs2005/authkeeper/internal/timex"
)

// Machine is the state machine surface the CLI drives.
type Machine interface {
	State() state.AuthState
	Subscribe(fn func(state.AuthState)) (unsubscribe func())
	Login(ctx context.Context, req models.LoginRequest) error
	Register(ctx context.Context, req models.RegisterRequest) error
	Logout(ctx context.Context) error
	RefreshToken(ctx context.Context) error
	UpdateProfile(ctx context.Context, upd models.ProfileUpdate) error
	UpdatePassword(ctx context.Context, upd models.PasswordUpdate) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req models.PasswordReset) error
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email string) error
	ClearError()
}

// AuditLog lists recent security events, newest first.
type AuditLog interface {
	Recent(ctx context.Context, n int) ([]audit.Entry, error)
}

type App struct {
	machine Machine
	audit   AuditLog
	reader  *bufio.Reader
	now     timex.Clock
	out     *syncWriter

	// busy is set while a command runs, so only transitions made by the
	// background sweeps are announced.
	busy atomic.Bool
}

type Option func(*App)

func WithClock(c timex.Clock) Option { return func(a *App) { a.now = c } }

// WithAuditLog enables the audit command.
func WithAuditLog(l AuditLog) Option { return func(a *App) { a.audit = l } }

func NewApp(m Machine, in io.Reader, out io.Writer, opts ...Option) *App {
	a := &App{
		machine: m,
		reader:  bufio.NewReader(in),
		out:     &syncWriter{w: out},
		now:     time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

// Run starts the REPL and blocks until the user exits or input ends.
func (a *App) Run(ctx context.Context) {
	unsubscribe := a.machine.Subscribe(a.watch())
	defer unsubscribe()

	a.println("Welcome to authkeeper CLI (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader, a.printf)
}

// watch announces sessions ended by the sweeps while the REPL is idle.
func (a *App) watch() func(state.AuthState) {
	var prev atomic.Bool
	prev.Store(a.machine.State().IsAuthenticated)
	return func(s state.AuthState) {
		was := prev.Swap(s.IsAuthenticated)
		if a.busy.Load() {
			return
		}
		if was && !s.IsAuthenticated {
			a.println("\nYour session has ended. Please log in again.")
		}
	}
}

func (a *App) isLoggedIn() bool {
	return a.machine.State().IsAuthenticated
}

// getStatus renders the prompt suffix, e.g. "(ann@example.com authenticated)".
func (a *App) getStatus() string {
	s := a.machine.State()
	if s.User != nil {
		return fmt.Sprintf("(%s %s)", s.User.Email, s.Status)
	}
	return fmt.Sprintf("(%s)", s.Status)
}

// run executes one command, marking the app busy for its duration.
func (a *App) run(fn func() error) error {
	a.busy.Store(true)
	defer a.busy.Store(false)
	return fn()
}
