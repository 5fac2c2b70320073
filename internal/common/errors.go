package common

import (
	"errors"
	"fmt"
)

// Code is a stable, machine readable error code suitable for localized
// messaging. The set of codes is closed.
type Code string

// Operation-level codes reported by the state machine.
const (
	CodeLoginFailed              Code = "LOGIN_FAILED"
	CodeRegistrationFailed       Code = "REGISTRATION_FAILED"
	CodeProfileUpdateFailed      Code = "PROFILE_UPDATE_FAILED"
	CodePasswordUpdateFailed     Code = "PASSWORD_UPDATE_FAILED"
	CodeForgotPasswordFailed     Code = "FORGOT_PASSWORD_FAILED"
	CodePasswordResetFailed      Code = "PASSWORD_RESET_FAILED"
	CodeEmailVerificationFailed  Code = "EMAIL_VERIFICATION_FAILED"
	CodeResendVerificationFailed Code = "RESEND_VERIFICATION_FAILED"
)

// Validation codes, produced before any network call.
const (
	CodeInvalidEmail        Code = "INVALID_EMAIL"
	CodePasswordTooShort    Code = "PASSWORD_TOO_SHORT"
	CodePasswordNoLowercase Code = "PASSWORD_NO_LOWERCASE"
	CodePasswordNoUppercase Code = "PASSWORD_NO_UPPERCASE"
	CodePasswordNoNumber    Code = "PASSWORD_NO_NUMBER"
	CodePasswordNoSpecial   Code = "PASSWORD_NO_SPECIAL"
	CodePasswordMismatch    Code = "PASSWORD_MISMATCH"
	CodeRequired            Code = "REQUIRED"
	CodeTermsNotAccepted    Code = "TERMS_NOT_ACCEPTED"
)

// Boundary codes, reported by the remote authentication service or by the
// transport.
const (
	CodeInvalidCredentials   Code = "INVALID_CREDENTIALS"
	CodeUserNotFound         Code = "USER_NOT_FOUND"
	CodeEmailAlreadyExists   Code = "EMAIL_ALREADY_EXISTS"
	CodeInvalidToken         Code = "INVALID_TOKEN"
	CodeTokenExpired         Code = "TOKEN_EXPIRED"
	CodeAccountLocked        Code = "ACCOUNT_LOCKED"
	CodeTwoFactorRequired    Code = "TWO_FACTOR_REQUIRED"
	CodeInvalidTwoFactorCode Code = "INVALID_TWO_FACTOR_CODE"
	CodeEmailNotVerified     Code = "EMAIL_NOT_VERIFIED"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"
	CodeNetworkError         Code = "NETWORK_ERROR"
)

// Error is the structured authentication error. Two errors match with
// errors.Is when their codes are equal, so the package level sentinels below
// can be used for matching regardless of message or field.
type Error struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements error.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports code equality.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || t == nil || e == nil {
		return false
	}
	return e.Code == t.Code
}

// WithField returns a copy of e bound to a field.
func (e *Error) WithField(field string) *Error {
	c := e.clone()
	c.Field = field
	return c
}

// WithMessage returns a copy of e with a different human readable message.
func (e *Error) WithMessage(msg string) *Error {
	c := e.clone()
	c.Message = msg
	return c
}

// WithDetail returns a copy of e with an additional detail entry.
func (e *Error) WithDetail(key string, value any) *Error {
	c := e.clone()
	if c.Details == nil {
		c.Details = make(map[string]any, 1)
	}
	c.Details[key] = value
	return c
}

func (e *Error) clone() *Error {
	c := *e
	if e.Details != nil {
		c.Details = make(map[string]any, len(e.Details))
		for k, v := range e.Details {
			c.Details[k] = v
		}
	}
	return &c
}

// NewError builds an Error with the given code and message.
func NewError(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// AsError extracts the structured error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e, true
	}
	return nil, false
}

// CodeOf returns the code carried by err, or an empty code.
func CodeOf(err error) Code {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// IsValidationCode reports whether c is produced by local input validation.
func IsValidationCode(c Code) bool {
	switch c {
	case CodeInvalidEmail, CodePasswordTooShort, CodePasswordNoLowercase,
		CodePasswordNoUppercase, CodePasswordNoNumber, CodePasswordNoSpecial,
		CodePasswordMismatch, CodeRequired, CodeTermsNotAccepted:
		return true
	}
	return false
}

// Boundary sentinels. Match with errors.Is.
var (
	ErrInvalidCredentials   = NewError(CodeInvalidCredentials, "invalid email or password")
	ErrUserNotFound         = NewError(CodeUserNotFound, "user not found")
	ErrEmailAlreadyExists   = NewError(CodeEmailAlreadyExists, "an account with this email already exists")
	ErrInvalidToken         = NewError(CodeInvalidToken, "invalid or missing token")
	ErrTokenExpired         = NewError(CodeTokenExpired, "token expired")
	ErrAccountLocked        = NewError(CodeAccountLocked, "account is locked")
	ErrTwoFactorRequired    = NewError(CodeTwoFactorRequired, "two-factor code required")
	ErrInvalidTwoFactorCode = NewError(CodeInvalidTwoFactorCode, "invalid two-factor code")
	ErrEmailNotVerified     = NewError(CodeEmailNotVerified, "email address is not verified")
	ErrRateLimitExceeded    = NewError(CodeRateLimitExceeded, "too many attempts, try again later")
	ErrNetwork              = NewError(CodeNetworkError, "authentication service unreachable")
)

// BoundaryError returns the sentinel registered for a boundary code.
func BoundaryError(c Code) (*Error, bool) {
	for _, e := range []*Error{
		ErrInvalidCredentials, ErrUserNotFound, ErrEmailAlreadyExists,
		ErrInvalidToken, ErrTokenExpired, ErrAccountLocked,
		ErrTwoFactorRequired, ErrInvalidTwoFactorCode, ErrEmailNotVerified,
		ErrRateLimitExceeded, ErrNetwork,
	} {
		if e.Code == c {
			return e, true
		}
	}
	return nil, false
}
