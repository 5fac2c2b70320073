package models

import "time"

// AuthResult is the response of every identity-producing call (login,
// register, refresh).
type AuthResult struct {
	User         *User  `json:"user"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
	// ExpiresIn is the access token lifetime in seconds. Zero means the
	// service did not report it.
	ExpiresIn int64 `json:"expiresIn,omitempty"`
}

// Session pairs the current user with the instant its session ends. The two
// are always set and cleared together.
type Session struct {
	User      *User
	ExpiresAt time.Time
}

// Valid reports whether the session is present and unexpired at now.
func (s *Session) Valid(now time.Time) bool {
	return s != nil && s.User != nil && !s.ExpiresAt.IsZero() && s.ExpiresAt.After(now)
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	return &Session{User: s.User.Clone(), ExpiresAt: s.ExpiresAt}
}

type LoginRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	RememberMe    bool   `json:"rememberMe,omitempty"`
	TwoFactorCode string `json:"twoFactorCode,omitempty"`
}

type RegisterRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"-"`
	AcceptTerms     bool   `json:"acceptTerms"`
	Plan            Plan   `json:"plan,omitempty"`
	MarketingOptIn  bool   `json:"marketingOptIn,omitempty"`
}

// ProfileUpdate carries only the fields being changed.
type ProfileUpdate struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

type PasswordUpdate struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"-"`
}

type PasswordReset struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"-"`
}
