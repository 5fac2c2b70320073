package auth

import (
	"github.com/dmitrijs2005/authkeeper/internal/common"
)

// ReasonKey is the Details key holding the underlying boundary code.
const ReasonKey = "reason"

// toAuthError converts err into the structured error published in the state.
// Validation errors keep their own code and field; everything else is
// reported under the operation code with the cause code as reason.
func toAuthError(op common.Code, err error) *common.Error {
	e, ok := common.AsError(err)
	if !ok {
		return common.NewError(op, err.Error())
	}
	if common.IsValidationCode(e.Code) {
		return e.WithField(e.Field)
	}

	out := common.NewError(op, e.Message)
	out.Field = e.Field
	for k, v := range e.Details {
		out = out.WithDetail(k, v)
	}
	if e.Code != "" {
		out = out.WithDetail(ReasonKey, string(e.Code))
	}
	return out
}
