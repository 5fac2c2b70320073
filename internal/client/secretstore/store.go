// Package secretstore is the persistent key/value secret store the token
// stores and the session cache are written to.
//
// Two implementations are provided: Sealed encrypts every value at rest on
// top of the local metadata table, Memory keeps values in process.
package secretstore

import (
	"context"
	"errors"
)

var (
	ErrCorrupted       = errors.New("secret store value cannot be decrypted")
	ErrWrongPassphrase = errors.New("secret store passphrase does not match")
)

// Store is a byte-valued key/value store. Get returns (nil, nil) for an
// absent key; Delete of an absent key is not an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// SetMany writes all pairs or none.
	SetMany(ctx context.Context, values map[string][]byte) error
	Delete(ctx context.Context, keys ...string) error
}
