// Package models defines the client-side identity and session data models.
package models

import "time"

// Role is the authorization role of a user.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleUser      Role = "user"
	RoleCreator   Role = "creator"
	RoleModerator Role = "moderator"
)

// Plan is the billing plan of a user.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// UserStatus is the lifecycle status of an account.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusPending   UserStatus = "pending"
	UserStatusInactive  UserStatus = "inactive"
)

// User is the identity, authorization and billing snapshot returned by the
// authentication service. It is replaced wholesale on every login, refresh
// and profile fetch.
type User struct {
	ID     string     `json:"id"`
	Email  string     `json:"email"`
	Name   string     `json:"name"`
	Role   Role       `json:"role"`
	Plan   Plan       `json:"plan"`
	Status UserStatus `json:"status"`
	// Phone is optional.
	Phone string `json:"phone,omitempty"`

	Security     Security     `json:"security"`
	Verification Verification `json:"verification"`
	Billing      Billing      `json:"billing"`
}

// Security carries account protection flags and counters.
type Security struct {
	TwoFactorEnabled    bool       `json:"twoFactorEnabled"`
	LastPasswordChange  *time.Time `json:"lastPasswordChange,omitempty"`
	FailedLoginAttempts int        `json:"failedLoginAttempts"`
	// LockedUntil is set while the account is locked.
	LockedUntil *time.Time `json:"lockedUntil,omitempty"`
}

type Verification struct {
	EmailVerified bool `json:"emailVerified"`
	PhoneVerified bool `json:"phoneVerified"`
}

type Billing struct {
	Plan            Plan       `json:"plan"`
	NextBillingDate *time.Time `json:"nextBillingDate,omitempty"`
	Invoices        []Invoice  `json:"invoices,omitempty"`
}

type Invoice struct {
	ID       string    `json:"id"`
	Amount   float64   `json:"amount"`
	Currency string    `json:"currency"`
	Status   string    `json:"status"`
	IssuedAt time.Time `json:"issuedAt"`
}

// Clone returns a deep copy. Nil-safe.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Security.LastPasswordChange = cloneTime(u.Security.LastPasswordChange)
	c.Security.LockedUntil = cloneTime(u.Security.LockedUntil)
	c.Billing.NextBillingDate = cloneTime(u.Billing.NextBillingDate)
	if u.Billing.Invoices != nil {
		c.Billing.Invoices = append([]Invoice(nil), u.Billing.Invoices...)
	}
	return &c
}

// IsLocked reports whether the account lock is still in force at now.
func (u *User) IsLocked(now time.Time) bool {
	return u != nil && u.Security.LockedUntil != nil && now.Before(*u.Security.LockedUntil)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
