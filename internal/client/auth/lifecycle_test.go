package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/client/models"
	"github.com/dmitrijs2005/authkeeper/internal/client/services"
	"github.com/dmitrijs2005/authkeeper/internal/client/session"
	"github.com/dmitrijs2005/authkeeper/internal/client/state"
	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// stubGateway issues sessions lasting expiresIn from the clock's now.
type stubGateway struct {
	mu         sync.Mutex
	clock      *manualClock
	expiresIn  time.Duration
	sess       *models.Session
	refreshes  int
	RefreshErr error
}

func (g *stubGateway) issue() (*models.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sess = &models.Session{User: &models.User{ID: "u1"}, ExpiresAt: g.clock.Now().Add(g.expiresIn)}
	return g.sess.User.Clone(), nil
}

func (g *stubGateway) drop() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sess = nil
	return nil
}

func (g *stubGateway) Login(context.Context, models.LoginRequest) (*models.User, error) {
	return g.issue()
}

func (g *stubGateway) Register(context.Context, models.RegisterRequest) (*models.User, error) {
	return g.issue()
}

func (g *stubGateway) Logout(context.Context) error { return g.drop() }

func (g *stubGateway) RefreshToken(context.Context) (*models.User, error) {
	g.mu.Lock()
	g.refreshes++
	err := g.RefreshErr
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return g.issue()
}

func (g *stubGateway) GetProfile(context.Context) (*models.User, error) { return nil, nil }

func (g *stubGateway) UpdateProfile(context.Context, models.ProfileUpdate) (*models.User, error) {
	return nil, nil
}

func (g *stubGateway) UpdatePassword(context.Context, models.PasswordUpdate) error { return nil }
func (g *stubGateway) ForgotPassword(context.Context, string) error               { return nil }
func (g *stubGateway) ResetPassword(context.Context, models.PasswordReset) error   { return nil }
func (g *stubGateway) VerifyEmail(context.Context, string) error                  { return nil }
func (g *stubGateway) ResendVerification(context.Context, string) error           { return nil }

func (g *stubGateway) Restore(context.Context) (services.RestoreResult, error) {
	return services.RestoreResult{}, nil
}

func (g *stubGateway) ClearLocal(context.Context) error { return g.drop() }
func (g *stubGateway) Expire(context.Context) error     { return g.drop() }

func (g *stubGateway) Session() *models.Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sess.Clone()
}

func newLifecycle(t *testing.T, expiresIn time.Duration) (*Machine, *session.Manager, *stubGateway, *manualClock) {
	t.Helper()
	clock := &manualClock{now: loginTime}
	gw := &stubGateway{clock: clock, expiresIn: expiresIn}
	mgr := session.NewManager(gw,
		session.WithClock(clock.Now),
		session.WithExpiryInterval(time.Hour),
		session.WithRefreshInterval(time.Hour),
	)
	m := NewMachine(mgr)
	t.Cleanup(m.Close)
	return m, mgr, gw, clock
}

func TestLifecycle_LoginSetsExpiryFromExpiresIn(t *testing.T) {
	m, _, _, _ := newLifecycle(t, 600*time.Second)
	require.NoError(t, m.Login(context.Background(), models.LoginRequest{}))

	s := m.State()
	assert.True(t, s.IsAuthenticated)
	assert.Equal(t, loginTime.Add(600*time.Second), *s.SessionExpiry)
}

func TestLifecycle_ExpirySweepLogsOut(t *testing.T) {
	m, mgr, _, clock := newLifecycle(t, time.Second)
	require.NoError(t, m.Login(context.Background(), models.LoginRequest{}))

	clock.Set(loginTime.Add(2 * time.Second))
	mgr.CheckExpiry(context.Background())

	s := m.State()
	assert.Equal(t, state.StatusUnauthenticated, s.Status)
	assert.Nil(t, s.User)
	assert.False(t, mgr.Running())
}

func TestLifecycle_ProactiveRefreshOncePerTick(t *testing.T) {
	m, mgr, gw, clock := newLifecycle(t, 600*time.Second)
	require.NoError(t, m.Login(context.Background(), models.LoginRequest{}))

	expiresAt := loginTime.Add(600 * time.Second)
	clock.Set(expiresAt.Add(-4 * time.Minute))
	mgr.CheckRefresh(context.Background())

	assert.Equal(t, 1, gw.refreshes)
	s := m.State()
	assert.Equal(t, state.StatusAuthenticated, s.Status)
	assert.Equal(t, clock.Now().Add(600*time.Second), *s.SessionExpiry)
}

func TestLifecycle_RefreshSweepFailureLogsOut(t *testing.T) {
	m, mgr, gw, clock := newLifecycle(t, 600*time.Second)
	require.NoError(t, m.Login(context.Background(), models.LoginRequest{}))
	gw.RefreshErr = common.ErrInvalidToken

	clock.Set(loginTime.Add(7 * time.Minute))
	mgr.CheckRefresh(context.Background())

	s := m.State()
	assert.Equal(t, state.StatusUnauthenticated, s.Status)
	assert.Nil(t, s.User)
	assert.Nil(t, s.Error)
}

func TestLifecycle_SweepNoopAfterLogout(t *testing.T) {
	m, mgr, gw, clock := newLifecycle(t, 600*time.Second)
	require.NoError(t, m.Login(context.Background(), models.LoginRequest{}))
	require.NoError(t, m.Logout(context.Background()))

	clock.Set(loginTime.Add(7 * time.Minute))
	mgr.CheckRefresh(context.Background())
	assert.Equal(t, 0, gw.refreshes)
	assert.Equal(t, state.StatusUnauthenticated, m.State().Status)
}
