package services

import (
	"errors"

	"github.com/dmitrijs2005/authkeeper/internal/common"
)

var (
	// ErrSessionSuperseded reports a login, register or refresh result that
	// arrived after the session it belonged to was logged out or replaced.
	// The result has been discarded.
	ErrSessionSuperseded = errors.New("session superseded")

	// ErrNotAuthenticated is returned by operations that need a stored token.
	ErrNotAuthenticated = common.ErrInvalidToken.WithMessage("not signed in")

	errIncompleteResult = common.ErrNetwork.WithMessage("authentication response without user or token")
)

// storageError reports a local secret store failure. It carries no
// boundary code; the underlying text is kept under Details["cause"].
func storageError(err error) error {
	return common.NewError("", "local credential storage failed").WithDetail("cause", err.Error())
}

// normalize funnels every failure into a *common.Error. Transport errors
// become NETWORK_ERROR and keep their text only under Details["cause"].
func normalize(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrSessionSuperseded) {
		return err
	}
	if e, ok := common.AsError(err); ok {
		return e
	}
	return common.ErrNetwork.WithDetail("cause", err.Error())
}
