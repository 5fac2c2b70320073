package session

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/client/models"
	"github.com/dmitrijs2005/authkeeper/internal/client/services"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeGateway mimics AuthService session bookkeeping, including the
// generation guard against late results.
type fakeGateway struct {
	mu    sync.Mutex
	clock *testClock
	ttl   time.Duration
	sess  *models.Session
	gen   int

	Restored   services.RestoreResult
	RestoreErr error
	LoginErr   error
	RefreshErr error
	LogoutErr  error
	ProfileErr error

	// LoginGate, when set, blocks Login until closed.
	LoginGate    chan struct{}
	LoginEntered chan struct{}

	RefreshCalls int
	ClearCalls   int
	ExpireCalls  int
	LogoutCalls  int
	Ops          []string
}

func newFakeGateway(clock *testClock) *fakeGateway {
	return &fakeGateway{clock: clock, ttl: time.Hour}
}

func (g *fakeGateway) counts() (refresh, clear, expire, logout int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.RefreshCalls, g.ClearCalls, g.ExpireCalls, g.LogoutCalls
}

func (g *fakeGateway) setSession(id string, expiresAt time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sess = &models.Session{User: &models.User{ID: id}, ExpiresAt: expiresAt}
}

func (g *fakeGateway) issue(gen int) (*models.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gen != g.gen {
		return nil, services.ErrSessionSuperseded
	}
	g.sess = &models.Session{User: &models.User{ID: "ann"}, ExpiresAt: g.clock.Now().Add(g.ttl)}
	return g.sess.User.Clone(), nil
}

func (g *fakeGateway) generation() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen
}

func (g *fakeGateway) note(op string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Ops = append(g.Ops, op)
}

func (g *fakeGateway) Login(ctx context.Context, req models.LoginRequest) (*models.User, error) {
	gen := g.generation()
	g.note("Login")
	if g.LoginEntered != nil {
		close(g.LoginEntered)
	}
	if g.LoginGate != nil {
		<-g.LoginGate
	}
	if g.LoginErr != nil {
		return nil, g.LoginErr
	}
	return g.issue(gen)
}

func (g *fakeGateway) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	gen := g.generation()
	g.note("Register")
	if g.LoginErr != nil {
		return nil, g.LoginErr
	}
	return g.issue(gen)
}

func (g *fakeGateway) Logout(ctx context.Context) error {
	g.mu.Lock()
	g.LogoutCalls++
	g.gen++
	g.sess = nil
	g.mu.Unlock()
	return g.LogoutErr
}

func (g *fakeGateway) RefreshToken(ctx context.Context) (*models.User, error) {
	gen := g.generation()
	g.mu.Lock()
	g.RefreshCalls++
	err := g.RefreshErr
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return g.issue(gen)
}

func (g *fakeGateway) GetProfile(ctx context.Context) (*models.User, error) {
	g.note("GetProfile")
	if g.ProfileErr != nil {
		return nil, g.ProfileErr
	}
	return &models.User{ID: "ann"}, nil
}

func (g *fakeGateway) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (*models.User, error) {
	g.note("UpdateProfile")
	return &models.User{ID: "ann", Name: *upd.Name}, nil
}

func (g *fakeGateway) UpdatePassword(ctx context.Context, upd models.PasswordUpdate) error {
	g.note("UpdatePassword")
	return nil
}

func (g *fakeGateway) ForgotPassword(ctx context.Context, email string) error {
	g.note("ForgotPassword")
	return nil
}

func (g *fakeGateway) ResetPassword(ctx context.Context, req models.PasswordReset) error {
	g.note("ResetPassword")
	return nil
}

func (g *fakeGateway) VerifyEmail(ctx context.Context, token string) error {
	g.note("VerifyEmail")
	return nil
}

func (g *fakeGateway) ResendVerification(ctx context.Context, email string) error {
	g.note("ResendVerification")
	return nil
}

func (g *fakeGateway) Restore(ctx context.Context) (services.RestoreResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Restored.Session != nil {
		g.sess = g.Restored.Session.Clone()
	}
	return g.Restored, g.RestoreErr
}

func (g *fakeGateway) ClearLocal(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ClearCalls++
	g.gen++
	g.sess = nil
	return nil
}

func (g *fakeGateway) Expire(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ExpireCalls++
	g.gen++
	g.sess = nil
	return nil
}

func (g *fakeGateway) Session() *models.Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sess.Clone()
}

// eventLog collects listener events.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) listen(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) kinds() []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventKind, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Kind)
	}
	return out
}
