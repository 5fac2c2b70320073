// Package validation holds the pure input checks run before any call to the
// authentication service: email shape, password strength, confirmation match
// and required fields.
//
// Every check returns a Result listing all violated rules rather than only the
// first one, so callers can render a full checklist. Result.Err converts a
// failed result into a *common.Error carrying the first violation's code and
// field.
package validation
