package services

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/audit"
	"github.com/dmitrijs2005/authkeeper/internal/client/client"
	"github.com/dmitrijs2005/authkeeper/internal/client/models"
	"github.com/dmitrijs2005/authkeeper/internal/client/secretstore"
)

// ---- fake client ----

// fakeClient implements client.Client for AuthService unit tests.
type fakeClient struct {
	mu sync.Mutex

	// results
	LoginRet    *models.AuthResult
	LoginErr    error
	RegisterRet *models.AuthResult
	RegisterErr error
	RefreshRet  *models.AuthResult
	RefreshErr  error
	LogoutErr   error
	ProfileRet  *models.User
	ProfileErr  error
	UpdateErr   error
	PasswordErr error
	ForgotErr   error
	ResetErr    error
	VerifyErr   error
	ResendErr   error
	PingErr     error

	// LoginGate, when set, blocks Login until it is closed.
	LoginGate    chan struct{}
	LoginEntered chan struct{}
	// RefreshGate, when set, blocks Refresh until it is closed.
	RefreshGate    chan struct{}
	RefreshEntered chan struct{}

	// captured arguments
	Calls            []string
	LastLogin        models.LoginRequest
	LastRegister     models.RegisterRequest
	LastRefreshToken string
	LastProfile      models.ProfileUpdate
	LastPassword     models.PasswordUpdate
	LastEmail        string
	LastReset        models.PasswordReset
	LastVerifyToken  string
	// LastBearer is the token override of the latest call, "<none>" if unset.
	LastBearer string
}

func (f *fakeClient) note(ctx context.Context, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, name)
	if t, ok := client.TokenFromContext(ctx); ok {
		f.LastBearer = t
	} else {
		f.LastBearer = "<none>"
	}
}

func (f *fakeClient) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Calls...)
}

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) Ping(ctx context.Context) error {
	f.note(ctx, "Ping")
	return f.PingErr
}

func (f *fakeClient) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResult, error) {
	f.note(ctx, "Login")
	f.LastLogin = req
	if f.LoginEntered != nil {
		close(f.LoginEntered)
	}
	if f.LoginGate != nil {
		<-f.LoginGate
	}
	return f.LoginRet, f.LoginErr
}

func (f *fakeClient) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResult, error) {
	f.note(ctx, "Register")
	f.LastRegister = req
	return f.RegisterRet, f.RegisterErr
}

func (f *fakeClient) Logout(ctx context.Context) error {
	f.note(ctx, "Logout")
	return f.LogoutErr
}

func (f *fakeClient) Refresh(ctx context.Context, refreshToken string) (*models.AuthResult, error) {
	f.note(ctx, "Refresh")
	f.LastRefreshToken = refreshToken
	if f.RefreshEntered != nil {
		close(f.RefreshEntered)
	}
	if f.RefreshGate != nil {
		<-f.RefreshGate
	}
	return f.RefreshRet, f.RefreshErr
}

func (f *fakeClient) GetProfile(ctx context.Context) (*models.User, error) {
	f.note(ctx, "GetProfile")
	return f.ProfileRet, f.ProfileErr
}

func (f *fakeClient) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (*models.User, error) {
	f.note(ctx, "UpdateProfile")
	f.LastProfile = upd
	return f.ProfileRet, f.UpdateErr
}

func (f *fakeClient) UpdatePassword(ctx context.Context, upd models.PasswordUpdate) error {
	f.note(ctx, "UpdatePassword")
	f.LastPassword = upd
	return f.PasswordErr
}

func (f *fakeClient) ForgotPassword(ctx context.Context, email string) error {
	f.note(ctx, "ForgotPassword")
	f.LastEmail = email
	return f.ForgotErr
}

func (f *fakeClient) ResetPassword(ctx context.Context, req models.PasswordReset) error {
	f.note(ctx, "ResetPassword")
	f.LastReset = req
	return f.ResetErr
}

func (f *fakeClient) VerifyEmail(ctx context.Context, token string) error {
	f.note(ctx, "VerifyEmail")
	f.LastVerifyToken = token
	return f.VerifyErr
}

func (f *fakeClient) ResendVerification(ctx context.Context, email string) error {
	f.note(ctx, "ResendVerification")
	f.LastEmail = email
	return f.ResendErr
}

// ---- audit capture ----

type auditSink struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (s *auditSink) Write(_ context.Context, e audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *auditSink) actions() []audit.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.Action, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Action)
	}
	return out
}

func (s *auditSink) last() audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[len(s.entries)-1]
}

// ---- clock ----

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

// ---- secret store ----

// failingStore wraps Memory and fails writes and reads of selected keys.
type failingStore struct {
	*secretstore.Memory
	SetErr  map[string]error
	GetErr  map[string]error
	ManyErr error
}

func newFailingStore() *failingStore {
	return &failingStore{Memory: secretstore.NewMemory(), SetErr: map[string]error{}, GetErr: map[string]error{}}
}

func (f *failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := f.GetErr[key]; err != nil {
		return nil, err
	}
	return f.Memory.Get(ctx, key)
}

func (f *failingStore) Set(ctx context.Context, key string, value []byte) error {
	if err := f.SetErr[key]; err != nil {
		return err
	}
	return f.Memory.Set(ctx, key, value)
}

func (f *failingStore) SetMany(ctx context.Context, values map[string][]byte) error {
	if f.ManyErr != nil {
		return f.ManyErr
	}
	return f.Memory.SetMany(ctx, values)
}
