package auth

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/client/models"
	"github.com/dmitrijs2005/authkeeper/internal/client/services"
	"github.com/dmitrijs2005/authkeeper/internal/client/session"
)

var loginTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeManager follows session.Manager's contract: identity failures drop
// the session, Logout always clears it.
type fakeManager struct {
	mu       sync.Mutex
	sess     *models.Session
	listener session.Listener
	closed   bool

	InitSess    *models.Session
	InitErr     error
	LoginErr    error
	RegisterErr error
	RefreshErr  error
	LogoutErr   error
	ProfileErr  error
	PasswordErr error
	ForgotErr   error
	ResetErr    error
	VerifyErr   error
	ResendErr   error

	LastLogin   models.LoginRequest
	LastProfile models.ProfileUpdate
	Refreshes   int
}

func (f *fakeManager) session() *models.Session {
	return &models.Session{User: &models.User{ID: "u1", Email: "ann@example.com"}, ExpiresAt: loginTime.Add(time.Hour)}
}

func (f *fakeManager) fire(ev session.Event) {
	f.mu.Lock()
	l := f.listener
	f.mu.Unlock()
	l(ev)
}

func (f *fakeManager) Initialize(ctx context.Context) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InitErr != nil {
		return nil, f.InitErr
	}
	f.sess = f.InitSess.Clone()
	return f.sess.Clone(), nil
}

func (f *fakeManager) identity(err error) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		if err != services.ErrSessionSuperseded {
			f.sess = nil
		}
		return nil, err
	}
	f.sess = f.session()
	return f.sess.Clone(), nil
}

func (f *fakeManager) Login(ctx context.Context, req models.LoginRequest) (*models.Session, error) {
	f.mu.Lock()
	f.LastLogin = req
	f.mu.Unlock()
	return f.identity(f.LoginErr)
}

func (f *fakeManager) Register(ctx context.Context, req models.RegisterRequest) (*models.Session, error) {
	return f.identity(f.RegisterErr)
}

func (f *fakeManager) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sess = nil
	return f.LogoutErr
}

func (f *fakeManager) RefreshToken(ctx context.Context) (*models.Session, error) {
	f.mu.Lock()
	f.Refreshes++
	f.mu.Unlock()
	return f.identity(f.RefreshErr)
}

func (f *fakeManager) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastProfile = upd
	if f.ProfileErr != nil {
		return nil, f.ProfileErr
	}
	u := f.sess.User.Clone()
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	f.sess.User = u
	return u.Clone(), nil
}

func (f *fakeManager) UpdatePassword(ctx context.Context, upd models.PasswordUpdate) error {
	return f.PasswordErr
}

func (f *fakeManager) ForgotPassword(ctx context.Context, email string) error { return f.ForgotErr }

func (f *fakeManager) ResetPassword(ctx context.Context, req models.PasswordReset) error {
	return f.ResetErr
}

func (f *fakeManager) VerifyEmail(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.VerifyErr != nil {
		return f.VerifyErr
	}
	if f.sess != nil {
		f.sess.User.Verification.EmailVerified = true
	}
	return nil
}

func (f *fakeManager) ResendVerification(ctx context.Context, email string) error {
	return f.ResendErr
}

func (f *fakeManager) Session() *models.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sess.Clone()
}

func (f *fakeManager) OnEvent(l session.Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listener = l
}

func (f *fakeManager) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}
