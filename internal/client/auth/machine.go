// Package auth exposes the authentication state machine: the snapshot plus
// the operations that move it. Operations report completion only; results
// are read from the snapshot.
package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrijs2005/authkeeper/internal/client/models"
	"github.com/dmitrijs2005/authkeeper/internal/client/services"
	"github.com/dmitrijs2005/authkeeper/internal/client/session"
	"github.com/dmitrijs2005/authkeeper/internal/client/state"
	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
)

// Manager is the session lifecycle the machine drives.
type Manager interface {
	Initialize(ctx context.Context) (*models.Session, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.Session, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.Session, error)
	Logout(ctx context.Context) error
	RefreshToken(ctx context.Context) (*models.Session, error)
	UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (*models.User, error)
	UpdatePassword(ctx context.Context, upd models.PasswordUpdate) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req models.PasswordReset) error
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email string) error
	Session() *models.Session
	OnEvent(l session.Listener)
	Close()
}

type Machine struct {
	mgr   Manager
	store *state.Store
	log   logging.Logger

	// smu makes "check the live session, then dispatch" atomic against the
	// LoggedOut dispatched by Logout.
	smu sync.Mutex
}

type Option func(*Machine)

func WithLogger(l logging.Logger) Option { return func(m *Machine) { m.log = l } }

func NewMachine(mgr Manager, opts ...Option) *Machine {
	m := &Machine{mgr: mgr, store: state.NewStore(), log: logging.Nop()}
	for _, o := range opts {
		o(m)
	}
	m.log = m.log.With("module", "machine")
	mgr.OnEvent(m.onEvent)
	return m
}

// State returns a copy of the current snapshot.
func (m *Machine) State() state.AuthState { return m.store.Snapshot() }

// Subscribe registers fn for every state change. fn must not call back into
// the machine.
func (m *Machine) Subscribe(fn func(state.AuthState)) (unsubscribe func()) {
	return m.store.Subscribe(fn)
}

func (m *Machine) onEvent(ev session.Event) {
	switch ev.Kind {
	case session.EventRefreshed:
		m.establishCurrent()
	case session.EventExpired, session.EventRefreshFailed:
		m.loggedOut()
	}
}

// establishCurrent publishes the manager's live session. Nothing is
// dispatched when it is already gone: the logout that removed it dispatches
// its own transition.
func (m *Machine) establishCurrent() bool {
	m.smu.Lock()
	defer m.smu.Unlock()
	sess := m.mgr.Session()
	if sess == nil || sess.User == nil {
		return false
	}
	m.store.Dispatch(state.SessionEstablished{User: sess.User, ExpiresAt: sess.ExpiresAt})
	return true
}

func (m *Machine) loggedOut() {
	m.smu.Lock()
	defer m.smu.Unlock()
	m.store.Dispatch(state.LoggedOut{})
}

func (m *Machine) fail(op common.Code, err error, clearSession bool) error {
	ae := toAuthError(op, err)
	m.log.Debug(context.Background(), "operation failed", "op", string(op), "code", string(ae.Code))
	m.store.Dispatch(state.Failed{Err: ae, ClearSession: clearSession})
	return ae
}

// Initialize resolves the stored session. It always leaves the machine
// either Authenticated or Unauthenticated.
func (m *Machine) Initialize(ctx context.Context) error {
	m.store.Dispatch(state.Started{})
	sess, err := m.mgr.Initialize(ctx)
	if err != nil && !errors.Is(err, services.ErrSessionSuperseded) {
		m.log.Error(ctx, "failed to restore session", "error", err)
		m.loggedOut()
		return err
	}
	if sess == nil || !m.establishCurrent() {
		m.loggedOut()
	}
	return nil
}

func (m *Machine) establish(ctx context.Context, op common.Code, call func() (*models.Session, error)) error {
	m.store.Dispatch(state.Started{})
	if _, err := call(); err != nil {
		if errors.Is(err, services.ErrSessionSuperseded) {
			return err
		}
		return m.fail(op, err, true)
	}
	if !m.establishCurrent() {
		return services.ErrSessionSuperseded
	}
	return nil
}

// Login signs in. A failure clears any previous session.
func (m *Machine) Login(ctx context.Context, req models.LoginRequest) error {
	return m.establish(ctx, common.CodeLoginFailed, func() (*models.Session, error) {
		return m.mgr.Login(ctx, req)
	})
}

// Register creates an account and signs in. A failure clears any previous
// session.
func (m *Machine) Register(ctx context.Context, req models.RegisterRequest) error {
	return m.establish(ctx, common.CodeRegistrationFailed, func() (*models.Session, error) {
		return m.mgr.Register(ctx, req)
	})
}

// Logout always ends in Unauthenticated. The returned error reports local
// cleanup problems only.
func (m *Machine) Logout(ctx context.Context) error {
	m.store.Dispatch(state.Started{})
	err := m.mgr.Logout(ctx)
	if err != nil {
		m.log.Warn(ctx, "logout finished with error", "error", err)
	}
	m.loggedOut()
	return err
}

// RefreshToken renews the session. On failure the machine is logged out
// rather than put into the error state.
func (m *Machine) RefreshToken(ctx context.Context) error {
	m.store.Dispatch(state.Started{})
	if _, err := m.mgr.RefreshToken(ctx); err != nil {
		if !errors.Is(err, services.ErrSessionSuperseded) {
			m.loggedOut()
		}
		return err
	}
	if !m.establishCurrent() {
		return services.ErrSessionSuperseded
	}
	return nil
}

func (m *Machine) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) error {
	m.store.Dispatch(state.Started{})
	u, err := m.mgr.UpdateProfile(ctx, upd)
	if err != nil {
		return m.fail(common.CodeProfileUpdateFailed, err, false)
	}
	m.smu.Lock()
	defer m.smu.Unlock()
	if m.mgr.Session() == nil {
		m.store.Dispatch(state.Completed{})
		return nil
	}
	m.store.Dispatch(state.UserUpdated{User: u})
	return nil
}

// complete runs a call that yields no identity.
func (m *Machine) complete(op common.Code, call func() error) error {
	m.store.Dispatch(state.Started{})
	if err := call(); err != nil {
		return m.fail(op, err, false)
	}
	m.store.Dispatch(state.Completed{})
	return nil
}

func (m *Machine) UpdatePassword(ctx context.Context, upd models.PasswordUpdate) error {
	return m.complete(common.CodePasswordUpdateFailed, func() error { return m.mgr.UpdatePassword(ctx, upd) })
}

func (m *Machine) ForgotPassword(ctx context.Context, email string) error {
	return m.complete(common.CodeForgotPasswordFailed, func() error { return m.mgr.ForgotPassword(ctx, email) })
}

func (m *Machine) ResetPassword(ctx context.Context, req models.PasswordReset) error {
	return m.complete(common.CodePasswordResetFailed, func() error { return m.mgr.ResetPassword(ctx, req) })
}

func (m *Machine) ResendVerification(ctx context.Context, email string) error {
	return m.complete(common.CodeResendVerificationFailed, func() error { return m.mgr.ResendVerification(ctx, email) })
}

// VerifyEmail confirms an address. When signed in, the refreshed user is
// published.
func (m *Machine) VerifyEmail(ctx context.Context, token string) error {
	m.store.Dispatch(state.Started{})
	if err := m.mgr.VerifyEmail(ctx, token); err != nil {
		return m.fail(common.CodeEmailVerificationFailed, err, false)
	}
	m.smu.Lock()
	defer m.smu.Unlock()
	if sess := m.mgr.Session(); sess != nil {
		m.store.Dispatch(state.UserUpdated{User: sess.User})
		return nil
	}
	m.store.Dispatch(state.Completed{})
	return nil
}

// ClearError drops a pending error. Without one it changes nothing.
func (m *Machine) ClearError() {
	if m.store.Snapshot().Error == nil {
		return
	}
	m.store.Dispatch(state.ErrorCleared{})
}

// Close stops the background sweeps. The session is kept.
func (m *Machine) Close() {
	m.mgr.Close()
}
