// Package services contains application services for the authkeeper client.
// This file defines the authentication gateway: the only component talking
// to the remote authentication service. It validates input, calls the
// boundary, persists tokens and the cached session, and writes audit entries.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/audit"
	"github.com/dmitrijs2005/authkeeper/internal/client/client"
	"github.com/dmitrijs2005/authkeeper/internal/client/models"
	"github.com/dmitrijs2005/authkeeper/internal/client/secretstore"
	"github.com/dmitrijs2005/authkeeper/internal/client/tokenstore"
	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/timex"
	"github.com/dmitrijs2005/authkeeper/internal/validation"
	"golang.org/x/time/rate"
)

// DefaultSessionTTL is the session lifetime used when neither the service
// nor the access token states one.
const DefaultSessionTTL = time.Hour

// AuthService is safe for concurrent use. Results of identity-producing calls
// are tagged with the session generation they started in; a logout or local
// clear in between bumps the generation and the late result is dropped with
// ErrSessionSuperseded.
type AuthService struct {
	client  client.Client
	access  *tokenstore.Store
	refresh *tokenstore.Store
	cache   *sessionCache
	audit   *audit.Recorder
	limiter *rate.Limiter
	log     logging.Logger
	now     timex.Clock
	ttl     time.Duration

	mu      sync.Mutex
	session models.Session
	gen     uint64
}

// Option configures an AuthService.
type Option func(*AuthService)

// WithClock replaces time.Now, mainly in tests.
func WithClock(c timex.Clock) Option { return func(s *AuthService) { s.now = c } }

// WithLogger sets the logger; the default discards everything.
func WithLogger(l logging.Logger) Option { return func(s *AuthService) { s.log = l } }

// WithRecorder sets the security audit recorder. Without one nothing is
// audited.
func WithRecorder(r *audit.Recorder) Option { return func(s *AuthService) { s.audit = r } }

// WithLoginLimit allows perSecond login attempts on average with the given
// burst. Non-positive perSecond disables limiting.
func WithLoginLimit(perSecond float64, burst int) Option {
	return func(s *AuthService) {
		if perSecond <= 0 {
			s.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithDefaultSessionTTL is used when the service reports no lifetime and the
// access token carries no exp claim.
func WithDefaultSessionTTL(d time.Duration) Option {
	return func(s *AuthService) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// NewAuthService creates the gateway over client c. Tokens and the cached
// session are kept in secrets.
func NewAuthService(c client.Client, secrets secretstore.Store, opts ...Option) *AuthService {
	s := &AuthService{
		client:  c,
		access:  tokenstore.Access(secrets),
		refresh: tokenstore.Refresh(secrets),
		cache:   &sessionCache{secrets: secrets},
		log:     logging.Nop(),
		now:     time.Now,
		ttl:     DefaultSessionTTL,
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("module", "auth")
	return s
}

// IsAuthenticated is evaluated on every call: a session whose expiry has
// passed is not authenticated even before the expiry sweep notices.
func (s *AuthService) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Valid(s.now())
}

// Session returns a copy of the current session, or nil.
func (s *AuthService) Session() *models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session.User == nil {
		return nil
	}
	return s.session.Clone()
}

func (s *AuthService) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *AuthService) record(ctx context.Context, action audit.Action, userID string, success bool, details map[string]any) {
	s.audit.Record(ctx, audit.Event{UserID: userID, Action: action, Success: success, Details: details})
}

func reason(err error) map[string]any {
	d := map[string]any{"reason": string(common.CodeOf(err))}
	if e, ok := common.AsError(err); ok {
		if c, ok := e.Details["cause"]; ok {
			d["cause"] = c
		}
	}
	return d
}

// establish persists a fresh AuthResult and makes it the current session.
// expectAccess, when non-nil, must still be the stored access token. ok is
// recorded once everything is stored; any other failure except a superseded
// result is recorded as failed.
func (s *AuthService) establish(ctx context.Context, gen uint64, expectAccess *string, res *models.AuthResult, ok audit.Event, failed audit.Action) (*models.User, error) {
	fail := func(userID string, err error) (*models.User, error) {
		d := reason(err)
		for k, v := range ok.Details {
			d[k] = v
		}
		s.record(ctx, failed, userID, false, d)
		s.log.Warn(ctx, "session not established", "action", string(failed), "error", err)
		return nil, err
	}

	if res == nil || res.User == nil || res.Token == "" {
		return fail(ok.UserID, errIncompleteResult)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return nil, ErrSessionSuperseded
	}
	if expectAccess != nil {
		cur, err := s.access.Get(ctx)
		if err != nil {
			return fail(ok.UserID, storageError(err))
		}
		if cur != *expectAccess {
			return nil, ErrSessionSuperseded
		}
	}

	sess := models.Session{User: res.User.Clone(), ExpiresAt: s.expiresAt(res)}
	if ok.UserID == "" {
		ok.UserID = sess.User.ID
	}

	if err := s.access.Set(ctx, res.Token); err != nil {
		return fail(ok.UserID, storageError(err))
	}
	if res.RefreshToken != "" {
		if err := s.refresh.Set(ctx, res.RefreshToken); err != nil {
			return fail(ok.UserID, storageError(err))
		}
	}
	if err := s.cache.Save(ctx, sess); err != nil {
		return fail(ok.UserID, storageError(err))
	}

	s.audit.Record(ctx, ok)
	s.session = sess
	return sess.User.Clone(), nil
}

// replaceUser swaps the cached user after a profile call, keeping the
// expiry. Without a current session nothing is stored.
func (s *AuthService) replaceUser(ctx context.Context, gen uint64, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return ErrSessionSuperseded
	}
	if s.session.User == nil {
		return nil
	}

	sess := models.Session{User: u.Clone(), ExpiresAt: s.session.ExpiresAt}
	if err := s.cache.Save(ctx, sess); err != nil {
		return storageError(err)
	}
	s.session = sess
	return nil
}

// clearLocked drops tokens, the cached pair and the in-memory session.
// Caller holds s.mu. Every step runs even if an earlier one fails.
func (s *AuthService) clearLocked(ctx context.Context) error {
	s.gen++
	s.session = models.Session{}
	return errors.Join(
		s.access.Remove(ctx),
		s.refresh.Remove(ctx),
		s.cache.Clear(ctx),
	)
}

// Login validates the credentials locally, signs in and stores the new
// session. Login attempts are rate limited when WithLoginLimit is set.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.User, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := validation.ValidateEmail(req.Email).Err(); err != nil {
		return nil, err
	}
	if err := validation.ValidateRequired(validation.FieldPassword, req.Password).Err(); err != nil {
		return nil, err
	}

	details := map[string]any{"email": req.Email}

	if s.limiter != nil && !s.limiter.AllowN(s.now(), 1) {
		s.record(ctx, audit.ActionLoginFailure, "", false, map[string]any{"email": req.Email, "reason": string(common.CodeRateLimitExceeded)})
		return nil, common.ErrRateLimitExceeded
	}

	gen := s.generation()
	s.record(ctx, audit.ActionLoginAttempt, "", true, details)

	res, err := s.client.Login(ctx, req)
	if err != nil {
		err = normalize(err)
		d := reason(err)
		d["email"] = req.Email
		s.record(ctx, audit.ActionLoginFailure, "", false, d)
		s.log.Info(ctx, "login failed", "email", req.Email, "reason", common.CodeOf(err))
		return nil, err
	}

	u, err := s.establish(ctx, gen, nil, res, audit.Event{Action: audit.ActionLoginSuccess, Success: true, Details: details}, audit.ActionLoginFailure)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "logged in", "user_id", u.ID)
	return u, nil
}

// Register validates in a fixed order and reports the first failing check:
// email, password strength, confirmation, terms.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := validation.ValidateEmail(req.Email).Err(); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(req.Password).Err(); err != nil {
		return nil, err
	}
	if err := validation.ValidatePasswordMatch(req.Password, req.ConfirmPassword).Err(); err != nil {
		return nil, err
	}
	if !req.AcceptTerms {
		return nil, common.NewError(common.CodeTermsNotAccepted, "terms must be accepted").WithField(validation.FieldAcceptTerms)
	}

	gen := s.generation()

	res, err := s.client.Register(ctx, req)
	if err != nil {
		err = normalize(err)
		d := reason(err)
		d["email"] = req.Email
		s.record(ctx, audit.ActionRegister, "", false, d)
		return nil, err
	}

	u, err := s.establish(ctx, gen, nil, res, audit.Event{
		Action: audit.ActionRegister, Success: true, Details: map[string]any{"email": req.Email},
	}, audit.ActionRegister)
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "registered", "user_id", u.ID)
	return u, nil
}

// Logout clears local state first and unconditionally, then tells the
// service using the token captured before the clear. Boundary failures are
// logged and swallowed; only a local storage failure is returned.
func (s *AuthService) Logout(ctx context.Context) error {
	s.mu.Lock()
	token, err := s.access.Get(ctx)
	if err != nil {
		s.log.Warn(ctx, "cannot read access token, skipping remote logout", "error", err)
	}
	var userID string
	if s.session.User != nil {
		userID = s.session.User.ID
	}
	clearErr := s.clearLocked(ctx)
	s.mu.Unlock()

	s.record(ctx, audit.ActionLogout, userID, true, nil)

	if token != "" {
		if err := s.client.Logout(client.WithToken(ctx, token)); err != nil {
			s.log.Warn(ctx, "remote logout failed", "error", err)
		}
	}

	if clearErr != nil {
		return fmt.Errorf("clear local session: %w", clearErr)
	}
	return nil
}

// ClearLocal forgets the session without contacting the service.
func (s *AuthService) ClearLocal(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked(ctx)
}

// Expire is the forced logout of a session whose expiry has passed.
func (s *AuthService) Expire(ctx context.Context) error {
	s.mu.Lock()
	var userID string
	if s.session.User != nil {
		userID = s.session.User.ID
	}
	err := s.clearLocked(ctx)
	s.mu.Unlock()

	s.record(ctx, audit.ActionSessionExpired, userID, true, nil)
	return err
}

// RefreshToken trades the refresh token (the access token when no refresh
// token is stored) for a new session. Any failure leaves the stored state
// untouched; the caller is expected to force a logout.
func (s *AuthService) RefreshToken(ctx context.Context) (*models.User, error) {
	gen := s.generation()

	access, err := s.access.Get(ctx)
	if err != nil {
		return nil, storageError(err)
	}
	rt, err := s.refresh.Get(ctx)
	if err != nil {
		return nil, storageError(err)
	}
	if rt == "" {
		rt = access
	}
	if rt == "" {
		return nil, ErrNotAuthenticated
	}

	var userID string
	if sess := s.Session(); sess != nil {
		userID = sess.User.ID
	}

	res, err := s.client.Refresh(client.WithToken(ctx, access), rt)
	if err != nil {
		err = normalize(err)
		s.record(ctx, audit.ActionTokenRefreshFailure, userID, false, reason(err))
		s.log.Warn(ctx, "token refresh failed", "reason", common.CodeOf(err))
		return nil, err
	}

	u, err := s.establish(ctx, gen, &access, res, audit.Event{Action: audit.ActionTokenRefresh, Success: true, UserID: userID}, audit.ActionTokenRefreshFailure)
	if err != nil {
		return nil, err
	}
	s.log.Debug(ctx, "token refreshed", "user_id", u.ID)
	return u, nil
}

// authorized returns the stored access token and the current generation.
func (s *AuthService) authorized(ctx context.Context) (context.Context, uint64, error) {
	gen := s.generation()
	token, err := s.access.Get(ctx)
	if err != nil {
		return nil, 0, storageError(err)
	}
	if token == "" {
		return nil, 0, ErrNotAuthenticated
	}
	return client.WithToken(ctx, token), gen, nil
}

// GetProfile fetches the signed-in user and replaces the cached copy.
func (s *AuthService) GetProfile(ctx context.Context) (*models.User, error) {
	cctx, gen, err := s.authorized(ctx)
	if err != nil {
		return nil, err
	}

	u, err := s.client.GetProfile(cctx)
	if err != nil {
		return nil, normalize(err)
	}
	if err := s.replaceUser(ctx, gen, u); err != nil {
		return nil, err
	}
	return u.Clone(), nil
}

// UpdateProfile changes the fields set in upd and caches the returned user.
func (s *AuthService) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (*models.User, error) {
	cctx, gen, err := s.authorized(ctx)
	if err != nil {
		return nil, err
	}
	if upd.Email != nil {
		email := strings.TrimSpace(*upd.Email)
		upd.Email = &email
		if err := validation.ValidateEmail(email).Err(); err != nil {
			return nil, err
		}
	}
	if upd.Name != nil {
		if err := validation.ValidateRequired(validation.FieldName, *upd.Name).Err(); err != nil {
			return nil, err
		}
	}

	u, err := s.client.UpdateProfile(cctx, upd)
	if err != nil {
		return nil, normalize(err)
	}
	if err := s.replaceUser(ctx, gen, u); err != nil {
		return nil, err
	}
	return u.Clone(), nil
}

// UpdatePassword changes the password of the signed-in user.
func (s *AuthService) UpdatePassword(ctx context.Context, upd models.PasswordUpdate) error {
	cctx, _, err := s.authorized(ctx)
	if err != nil {
		return err
	}
	if err := validation.ValidateNewPassword(upd.NewPassword).Err(); err != nil {
		return err
	}
	if err := validation.ValidatePasswordMatch(upd.NewPassword, upd.ConfirmPassword).Err(); err != nil {
		return err
	}

	var userID string
	if sess := s.Session(); sess != nil {
		userID = sess.User.ID
	}

	if err := s.client.UpdatePassword(cctx, upd); err != nil {
		err = normalize(err)
		s.record(ctx, audit.ActionPasswordChange, userID, false, reason(err))
		return err
	}
	s.record(ctx, audit.ActionPasswordChange, userID, true, nil)
	return nil
}

// ForgotPassword asks the service to mail a reset link to email.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := validation.ValidateEmail(email).Err(); err != nil {
		return err
	}

	if err := s.client.ForgotPassword(ctx, email); err != nil {
		err = normalize(err)
		d := reason(err)
		d["email"] = email
		s.record(ctx, audit.ActionPasswordResetRequest, "", false, d)
		return err
	}
	s.record(ctx, audit.ActionPasswordResetRequest, "", true, map[string]any{"email": email})
	return nil
}

// ResetPassword sets a new password using the token from the reset mail.
func (s *AuthService) ResetPassword(ctx context.Context, req models.PasswordReset) error {
	if err := validation.ValidatePassword(req.Password).Err(); err != nil {
		return err
	}
	if err := validation.ValidatePasswordMatch(req.Password, req.ConfirmPassword).Err(); err != nil {
		return err
	}
	if err := validation.ValidateRequired(validation.FieldToken, req.Token).Err(); err != nil {
		return err
	}

	if err := s.client.ResetPassword(ctx, req); err != nil {
		err = normalize(err)
		s.record(ctx, audit.ActionPasswordReset, "", false, reason(err))
		return err
	}
	s.record(ctx, audit.ActionPasswordReset, "", true, nil)
	return nil
}

// VerifyEmail confirms an address. With a session present the profile is
// fetched again so the cached verification flags are current; a failure of
// that fetch does not fail the verification.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	if err := validation.ValidateRequired(validation.FieldToken, token).Err(); err != nil {
		return err
	}

	var userID string
	if sess := s.Session(); sess != nil {
		userID = sess.User.ID
	}

	if err := s.client.VerifyEmail(ctx, token); err != nil {
		err = normalize(err)
		s.record(ctx, audit.ActionEmailVerification, userID, false, reason(err))
		return err
	}
	s.record(ctx, audit.ActionEmailVerification, userID, true, nil)

	if userID != "" {
		if _, err := s.GetProfile(ctx); err != nil {
			s.log.Warn(ctx, "profile refresh after email verification failed", "error", err)
		}
	}
	return nil
}

// ResendVerification asks for another verification mail. It is not audited.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := validation.ValidateEmail(email).Err(); err != nil {
		return err
	}
	return normalize(s.client.ResendVerification(ctx, email))
}

// RestoreResult describes what Restore found in local storage.
type RestoreResult struct {
	HasToken bool
	// Session is set when a cached pair exists and has not expired. It is
	// then also the current session.
	Session *models.Session
}

// Restore loads the cached session after a restart.
func (s *AuthService) Restore(ctx context.Context) (RestoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.access.Get(ctx)
	if err != nil {
		return RestoreResult{}, err
	}
	if token == "" {
		return RestoreResult{}, nil
	}

	cached, err := s.cache.Load(ctx)
	if err != nil {
		s.log.Warn(ctx, "ignoring unreadable cached session", "error", err)
		return RestoreResult{HasToken: true}, nil
	}
	if !cached.Valid(s.now()) {
		return RestoreResult{HasToken: true}, nil
	}

	s.session = *cached
	return RestoreResult{HasToken: true, Session: cached.Clone()}, nil
}

// Ping checks that the service is reachable.
func (s *AuthService) Ping(ctx context.Context) error {
	return normalize(s.client.Ping(ctx))
}

// Close releases the underlying connection.
func (s *AuthService) Close() error {
	return s.client.Close()
}
