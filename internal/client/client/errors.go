package client

import (
	"errors"

	"github.com/dmitrijs2005/authkeeper/internal/common"
)

var (
	ErrUnavailable       = common.ErrNetwork.WithMessage("server unavailable")
	ErrMalformedResponse = errors.New("malformed response")
)
