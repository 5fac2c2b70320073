// Package tokenstore scopes the secret store down to a single bearer token
// slot.
package tokenstore

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/client/secretstore"
)

const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
)

type Store struct {
	secrets secretstore.Store
	key     string
}

func New(secrets secretstore.Store, key string) *Store {
	return &Store{secrets: secrets, key: key}
}

// Access and Refresh are the two slots of the single supported account.
func Access(secrets secretstore.Store) *Store  { return New(secrets, AccessTokenKey) }
func Refresh(secrets secretstore.Store) *Store { return New(secrets, RefreshTokenKey) }

func (s *Store) Key() string { return s.key }

// Get returns "" when no token is stored.
func (s *Store) Get(ctx context.Context) (string, error) {
	v, err := s.secrets.Get(ctx, s.key)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", s.key, err)
	}
	return string(v), nil
}

func (s *Store) Set(ctx context.Context, token string) error {
	if err := s.secrets.Set(ctx, s.key, []byte(token)); err != nil {
		return fmt.Errorf("write %s: %w", s.key, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context) error {
	if err := s.secrets.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("remove %s: %w", s.key, err)
	}
	return nil
}
