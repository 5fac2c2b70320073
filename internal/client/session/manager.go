package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/client/models"
	"github.com/dmitrijs2005/authkeeper/internal/client/services"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/timex"
)

const (
	DefaultExpiryInterval  = 60 * time.Second
	DefaultRefreshInterval = 30 * time.Second
	DefaultRefreshWindow   = 5 * time.Minute
)

// Gateway is the part of services.AuthService the manager drives.
type Gateway interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.User, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.User, error)
	Logout(ctx context.Context) error
	RefreshToken(ctx context.Context) (*models.User, error)

	GetProfile(ctx context.Context) (*models.User, error)
	UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (*models.User, error)
	UpdatePassword(ctx context.Context, upd models.PasswordUpdate) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req models.PasswordReset) error
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email string) error

	Restore(ctx context.Context) (services.RestoreResult, error)
	ClearLocal(ctx context.Context) error
	Expire(ctx context.Context) error
	Session() *models.Session
}

// EventKind tells listeners what a sweep did.
type EventKind int

const (
	// EventRefreshed: the refresh sweep renewed the session.
	EventRefreshed EventKind = iota + 1
	// EventExpired: the expiry sweep found the session expired and logged out.
	EventExpired
	// EventRefreshFailed: the refresh sweep failed and logged out.
	EventRefreshFailed
)

func (k EventKind) String() string {
	switch k {
	case EventRefreshed:
		return "refreshed"
	case EventExpired:
		return "expired"
	case EventRefreshFailed:
		return "refresh_failed"
	}
	return "unknown"
}

// Event reports a change made by a background sweep. Session is set for
// EventRefreshed, Err for EventRefreshFailed.
type Event struct {
	Kind    EventKind
	Session *models.Session
	Err     error
}

// Listener receives sweep events.
type Listener func(Event)

// Manager owns the session lifecycle: it serializes gateway operations and
// runs the expiry and proactive refresh sweeps while a session exists.
type Manager struct {
	gw  Gateway
	now timex.Clock
	log logging.Logger

	expiryEvery  time.Duration
	refreshEvery time.Duration
	window       time.Duration

	// sem serializes operations and sweep ticks. It is a channel so that
	// waiting for it honors cancellation.
	sem chan struct{}

	lmu       sync.Mutex
	listeners []Listener

	smu    sync.Mutex
	sweeps *sweeps
	all    sync.WaitGroup
	closed bool
}

type sweeps struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now for the sweeps.
func WithClock(c timex.Clock) Option { return func(m *Manager) { m.now = c } }

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option { return func(m *Manager) { m.log = l } }

// WithListener registers l at construction; see OnEvent.
func WithListener(l Listener) Option {
	return func(m *Manager) { m.listeners = append(m.listeners, l) }
}

// WithExpiryInterval sets the expiry sweep period. Non-positive values
// keep the default.
func WithExpiryInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.expiryEvery = d
		}
	}
}

// WithRefreshInterval sets the proactive refresh sweep period.
func WithRefreshInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.refreshEvery = d
		}
	}
}

// WithRefreshWindow sets how long before expiry the refresh sweep renews.
func WithRefreshWindow(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.window = d
		}
	}
}

// NewManager returns a Manager over gw. No sweep runs until a session is
// acquired.
func NewManager(gw Gateway, opts ...Option) *Manager {
	m := &Manager{
		gw:           gw,
		now:          time.Now,
		log:          logging.Nop(),
		expiryEvery:  DefaultExpiryInterval,
		refreshEvery: DefaultRefreshInterval,
		window:       DefaultRefreshWindow,
		sem:          make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(m)
	}
	m.log = m.log.With("module", "session")
	return m
}

// OnEvent registers a listener for sweep events. Listeners run on the sweep
// goroutine after the manager has released its lock.
func (m *Manager) OnEvent(l Listener) {
	m.lmu.Lock()
	defer m.lmu.Unlock()
	m.listeners = append(m.listeners, l)
}

func (m *Manager) emit(ev Event) {
	m.lmu.Lock()
	ls := append([]Listener(nil), m.listeners...)
	m.lmu.Unlock()
	for _, l := range ls {
		l(ev)
	}
}

func (m *Manager) acquire(ctx context.Context) error {
	select {
	case m.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) release() { <-m.sem }

// Session is the current gateway session, or nil.
func (m *Manager) Session() *models.Session {
	return m.gw.Session()
}

// Running reports whether the background sweeps are active.
func (m *Manager) Running() bool {
	m.smu.Lock()
	defer m.smu.Unlock()
	return m.sweeps != nil
}

// Initialize resumes a stored session: a valid cached session is adopted as
// is, a token without one gets exactly one refresh attempt. A failed refresh
// clears local state and leaves the manager unauthenticated; it is not
// reported as an error.
func (m *Manager) Initialize(ctx context.Context) (*models.Session, error) {
	if err := m.acquire(ctx); err != nil {
		return nil, err
	}
	defer m.release()

	res, err := m.gw.Restore(ctx)
	if err != nil {
		return nil, err
	}
	if !res.HasToken {
		return nil, nil
	}
	if res.Session != nil {
		m.log.Debug(ctx, "adopted cached session", "expires_at", res.Session.ExpiresAt)
		m.startSweeps()
		return res.Session, nil
	}

	if _, err := m.gw.RefreshToken(ctx); err != nil {
		m.log.Info(ctx, "stored session could not be renewed", "error", err)
		if err := m.gw.ClearLocal(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return m.resume()
}

// resume starts the sweeps for the current session. A nil session means a
// logout won the race.
func (m *Manager) resume() (*models.Session, error) {
	sess := m.gw.Session()
	if sess == nil {
		return nil, services.ErrSessionSuperseded
	}
	m.startSweeps()
	return sess, nil
}

// establish runs an identity-producing call. Any failure other than a
// superseded result ends the previous session too.
func (m *Manager) establish(ctx context.Context, call func() (*models.User, error)) (*models.Session, error) {
	if err := m.acquire(ctx); err != nil {
		return nil, err
	}
	defer m.release()

	if _, err := call(); err != nil {
		if !errors.Is(err, services.ErrSessionSuperseded) {
			m.dropSession(ctx, true)
		}
		return nil, err
	}
	return m.resume()
}

// dropSession clears local state and stops the sweeps. wait must be false
// when called from a sweep goroutine.
func (m *Manager) dropSession(ctx context.Context, wait bool) {
	if err := m.gw.ClearLocal(ctx); err != nil {
		m.log.Error(ctx, "failed to clear local session", "error", err)
	}
	m.stopSweeps(wait)
}

// Login signs in and starts the sweeps. A failure ends any previous
// session.
func (m *Manager) Login(ctx context.Context, req models.LoginRequest) (*models.Session, error) {
	return m.establish(ctx, func() (*models.User, error) { return m.gw.Login(ctx, req) })
}

// Register creates an account, signs in and starts the sweeps.
func (m *Manager) Register(ctx context.Context, req models.RegisterRequest) (*models.Session, error) {
	return m.establish(ctx, func() (*models.User, error) { return m.gw.Register(ctx, req) })
}

// RefreshToken renews the session. A failure is fatal to the session: local
// state is cleared before the error is returned.
func (m *Manager) RefreshToken(ctx context.Context) (*models.Session, error) {
	if err := m.acquire(ctx); err != nil {
		return nil, err
	}
	defer m.release()

	if _, err := m.gw.RefreshToken(ctx); err != nil {
		if !errors.Is(err, services.ErrSessionSuperseded) {
			m.dropSession(ctx, true)
		}
		return nil, err
	}
	return m.resume()
}

// Logout does not take the operation lock.
func (m *Manager) Logout(ctx context.Context) error {
	s := m.cancelSweeps()
	err := m.gw.Logout(ctx)
	if s != nil {
		s.wg.Wait()
	}
	return err
}

// GetProfile fetches the current user.
func (m *Manager) GetProfile(ctx context.Context) (*models.User, error) {
	if err := m.acquire(ctx); err != nil {
		return nil, err
	}
	defer m.release()
	return m.gw.GetProfile(ctx)
}

// UpdateProfile updates the current user.
func (m *Manager) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (*models.User, error) {
	if err := m.acquire(ctx); err != nil {
		return nil, err
	}
	defer m.release()
	return m.gw.UpdateProfile(ctx, upd)
}

func (m *Manager) do(ctx context.Context, fn func() error) error {
	if err := m.acquire(ctx); err != nil {
		return err
	}
	defer m.release()
	return fn()
}

// UpdatePassword changes the password of the signed-in user.
func (m *Manager) UpdatePassword(ctx context.Context, upd models.PasswordUpdate) error {
	return m.do(ctx, func() error { return m.gw.UpdatePassword(ctx, upd) })
}

// ForgotPassword requests a reset mail.
func (m *Manager) ForgotPassword(ctx context.Context, email string) error {
	return m.do(ctx, func() error { return m.gw.ForgotPassword(ctx, email) })
}

// ResetPassword completes a password reset.
func (m *Manager) ResetPassword(ctx context.Context, req models.PasswordReset) error {
	return m.do(ctx, func() error { return m.gw.ResetPassword(ctx, req) })
}

// VerifyEmail confirms an address with the mailed token.
func (m *Manager) VerifyEmail(ctx context.Context, token string) error {
	return m.do(ctx, func() error { return m.gw.VerifyEmail(ctx, token) })
}

// ResendVerification requests another verification mail.
func (m *Manager) ResendVerification(ctx context.Context, email string) error {
	return m.do(ctx, func() error { return m.gw.ResendVerification(ctx, email) })
}

// Close stops the sweeps and waits for them. The session itself is kept.
func (m *Manager) Close() {
	m.smu.Lock()
	m.closed = true
	if m.sweeps != nil {
		m.sweeps.cancel()
		m.sweeps = nil
	}
	m.smu.Unlock()
	m.all.Wait()
}
