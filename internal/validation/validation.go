package validation

import (
	"regexp"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/nbutton23/zxcvbn-go"
)

// Field names used in validation errors.
const (
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirmPassword"
	FieldNewPassword     = "newPassword"
	FieldAcceptTerms     = "acceptTerms"
	FieldToken           = "token"
	FieldName            = "name"
)

// MinPasswordLength is the minimum accepted password length in characters.
const MinPasswordLength = 8

// SpecialCharacters is the fixed set of symbols satisfying the special
// character rule.
const SpecialCharacters = `!@#$%^&*(),.?":{}|<>`

var (
	emailPattern   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	lowerPattern   = regexp.MustCompile(`[a-z]`)
	upperPattern   = regexp.MustCompile(`[A-Z]`)
	digitPattern   = regexp.MustCompile(`[0-9]`)
	specialPattern = regexp.MustCompile("[" + regexp.QuoteMeta(SpecialCharacters) + "]")
)

// Error is a single violated rule.
type Error struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Code    common.Code `json:"code"`
}

// Result is the outcome of a validation call.
type Result struct {
	IsValid bool    `json:"isValid"`
	Errors  []Error `json:"errors"`
}

// Err returns nil for a valid result, otherwise the first violation as a
// *common.Error. The full list is attached under Details["violations"].
func (r Result) Err() error {
	if r.IsValid || len(r.Errors) == 0 {
		return nil
	}
	first := r.Errors[0]
	e := common.NewError(first.Code, first.Message).WithField(first.Field)
	if len(r.Errors) > 1 {
		e = e.WithDetail("violations", r.Codes())
	}
	return e
}

// Codes lists the codes of all violations in evaluation order.
func (r Result) Codes() []common.Code {
	codes := make([]common.Code, 0, len(r.Errors))
	for _, e := range r.Errors {
		codes = append(codes, e.Code)
	}
	return codes
}

// Has reports whether the result contains a violation with code c.
func (r Result) Has(c common.Code) bool {
	for _, e := range r.Errors {
		if e.Code == c {
			return true
		}
	}
	return false
}

func result(errs []Error) Result {
	return Result{IsValid: len(errs) == 0, Errors: errs}
}

// rule is one independently evaluated password requirement.
type rule struct {
	code    common.Code
	message string
	checks  []validation.Rule
}

// Required comes first in each check list: ozzo skips Match and Length on
// empty values, and an empty password must fail every rule.
var passwordRules = []rule{
	{
		code:    common.CodePasswordTooShort,
		message: "password must be at least 8 characters long",
		checks:  []validation.Rule{validation.Required, validation.RuneLength(MinPasswordLength, 0)},
	},
	{
		code:    common.CodePasswordNoLowercase,
		message: "password must contain at least one lowercase letter",
		checks:  []validation.Rule{validation.Required, validation.Match(lowerPattern)},
	},
	{
		code:    common.CodePasswordNoUppercase,
		message: "password must contain at least one uppercase letter",
		checks:  []validation.Rule{validation.Required, validation.Match(upperPattern)},
	},
	{
		code:    common.CodePasswordNoNumber,
		message: "password must contain at least one number",
		checks:  []validation.Rule{validation.Required, validation.Match(digitPattern)},
	},
	{
		code:    common.CodePasswordNoSpecial,
		message: "password must contain at least one special character (" + SpecialCharacters + ")",
		checks:  []validation.Rule{validation.Required, validation.Match(specialPattern)},
	},
}

// ValidateEmail checks value against a conservative local@domain.tld shape.
func ValidateEmail(value string) Result {
	err := validation.Validate(strings.TrimSpace(value), validation.Required, validation.Match(emailPattern))
	if err != nil {
		return result([]Error{{Field: FieldEmail, Message: "please enter a valid email address", Code: common.CodeInvalidEmail}})
	}
	return result(nil)
}

// ValidatePassword evaluates every strength rule and reports one error per
// violated rule.
func ValidatePassword(value string) Result {
	return validatePasswordField(FieldPassword, value)
}

func validatePasswordField(field, value string) Result {
	var errs []Error
	for _, r := range passwordRules {
		if err := validation.Validate(value, r.checks...); err != nil {
			errs = append(errs, Error{Field: field, Message: r.message, Code: r.code})
		}
	}
	return result(errs)
}

// ValidateNewPassword is ValidatePassword reported against the newPassword
// field.
func ValidateNewPassword(value string) Result {
	return validatePasswordField(FieldNewPassword, value)
}

// ValidatePasswordMatch checks that a confirmation equals the password.
func ValidatePasswordMatch(password, confirm string) Result {
	if password != confirm {
		return result([]Error{{Field: FieldConfirmPassword, Message: "passwords do not match", Code: common.CodePasswordMismatch}})
	}
	return result(nil)
}

// ValidateRequired fails when value is blank.
func ValidateRequired(field, value string) Result {
	if err := validation.Validate(strings.TrimSpace(value), validation.Required); err != nil {
		return result([]Error{{Field: field, Message: field + " is required", Code: common.CodeRequired}})
	}
	return result(nil)
}

// PasswordScore estimates password entropy on a 0..4 scale. It is purely
// informational and never affects ValidatePassword.
func PasswordScore(password string, userInputs ...string) int {
	if password == "" {
		return 0
	}
	return zxcvbn.PasswordStrength(password, userInputs).Score
}
