// Package state holds the authentication snapshot and the pure reducer that
// moves it between statuses. Nothing here performs I/O.
package state

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/client/models"
	"github.com/dmitrijs2005/authkeeper/internal/common"
)

type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusAuthenticated
	StatusUnauthenticated
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusError:
		return "error"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// AuthState is the externally observed snapshot. IsAuthenticated always
// equals User != nil, and StatusError always comes with a non-nil Error.
type AuthState struct {
	User            *models.User
	Status          Status
	Error           *common.Error
	SessionExpiry   *time.Time
	IsAuthenticated bool
	IsLoading       bool
}

// Initial is the state before the stored session has been looked at.
func Initial() AuthState {
	return AuthState{Status: StatusIdle, IsLoading: true}
}

// Clone returns a copy sharing no pointers with s.
func (s AuthState) Clone() AuthState {
	c := s
	c.User = s.User.Clone()
	if s.Error != nil {
		c.Error = s.Error.WithMessage(s.Error.Message)
	}
	if s.SessionExpiry != nil {
		t := *s.SessionExpiry
		c.SessionExpiry = &t
	}
	return c
}

// Action is one of the types declared below.
type Action interface {
	action()
}

// Started marks the beginning of an operation.
type Started struct{}

// SessionEstablished carries the identity produced by login, register,
// refresh or initialization.
type SessionEstablished struct {
	User      *models.User
	ExpiresAt time.Time
}

// UserUpdated replaces the user of the current session.
type UserUpdated struct {
	User *models.User
}

// Completed ends an operation that produces no new identity.
type Completed struct{}

// Failed ends an operation with an error. ClearSession drops the user too.
type Failed struct {
	Err          *common.Error
	ClearSession bool
}

// LoggedOut resets to the initial state, not loading.
type LoggedOut struct{}

// ErrorCleared drops a pending error.
type ErrorCleared struct{}

func (Started) action()            {}
func (SessionEstablished) action() {}
func (UserUpdated) action()        {}
func (Completed) action()          {}
func (Failed) action()             {}
func (LoggedOut) action()          {}
func (ErrorCleared) action()       {}

// settled is the status a state rests in once nothing is loading and no
// error is pending.
func settled(s AuthState) Status {
	if s.User != nil {
		return StatusAuthenticated
	}
	return StatusUnauthenticated
}

// Reduce returns the state following a. It panics on an action type it does
// not know.
func Reduce(s AuthState, a Action) AuthState {
	switch a := a.(type) {
	case Started:
		s.IsLoading = true
		s.Error = nil
		s.Status = StatusLoading
		return s

	case SessionEstablished:
		if a.User == nil {
			panic("state: SessionEstablished without user")
		}
		exp := a.ExpiresAt
		return AuthState{
			User:            a.User.Clone(),
			Status:          StatusAuthenticated,
			SessionExpiry:   &exp,
			IsAuthenticated: true,
		}

	case UserUpdated:
		if a.User != nil {
			s.User = a.User.Clone()
			s.IsAuthenticated = true
		}
		s.IsLoading = false
		s.Error = nil
		s.Status = settled(s)
		return s

	case Completed:
		s.IsLoading = false
		s.Error = nil
		s.Status = settled(s)
		return s

	case Failed:
		err := a.Err
		if err == nil {
			err = common.NewError("", "unknown error")
		}
		s.Error = err
		s.Status = StatusError
		s.IsLoading = false
		if a.ClearSession {
			s.User = nil
			s.SessionExpiry = nil
			s.IsAuthenticated = false
		}
		return s

	case LoggedOut:
		out := Initial()
		out.IsLoading = false
		out.Status = StatusUnauthenticated
		return out

	case ErrorCleared:
		if s.Error == nil {
			return s
		}
		s.Error = nil
		if !s.IsLoading {
			s.Status = settled(s)
		}
		return s
	}
	panic(fmt.Sprintf("state: unknown action %T", a))
}
