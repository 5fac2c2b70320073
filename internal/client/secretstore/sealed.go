package secretstore

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
)

const (
	SaltKey     = "secretstore.salt"
	VerifierKey = "secretstore.verifier"
)

// Repository is the plain storage Sealed writes ciphertext to.
// metadata.SQLiteRepository satisfies it.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetMany(ctx context.Context, values map[string][]byte) error
	Delete(ctx context.Context, keys ...string) error
}

var _ Store = (*Sealed)(nil)

type Sealed struct {
	repo Repository
	key  []byte
}

// NewSealed derives the sealing key from passphrase and the salt stored in
// repo. On first use a new salt and a key verifier are written; afterwards a
// different passphrase is rejected with ErrWrongPassphrase.
func NewSealed(ctx context.Context, repo Repository, passphrase []byte) (*Sealed, error) {
	salt, err := repo.Get(ctx, SaltKey)
	if err != nil {
		return nil, err
	}

	if salt == nil {
		salt = cryptox.NewSalt()
		key := cryptox.DeriveKey(passphrase, salt)
		if err := repo.SetMany(ctx, map[string][]byte{
			SaltKey:     salt,
			VerifierKey: cryptox.MakeVerifier(key),
		}); err != nil {
			return nil, fmt.Errorf("initialize secret store: %w", err)
		}
		return &Sealed{repo: repo, key: key}, nil
	}

	key := cryptox.DeriveKey(passphrase, salt)

	verifier, err := repo.Get(ctx, VerifierKey)
	if err != nil {
		return nil, err
	}
	if !cryptox.CheckVerifier(key, verifier) {
		return nil, ErrWrongPassphrase
	}

	return &Sealed{repo: repo, key: key}, nil
}

func (s *Sealed) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := s.repo.Get(ctx, key)
	if err != nil || sealed == nil {
		return nil, err
	}

	plain, err := cryptox.Open(s.key, sealed, []byte(key))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorrupted, key)
	}
	return plain, nil
}

func (s *Sealed) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := cryptox.Seal(s.key, value, []byte(key))
	if err != nil {
		return err
	}
	return s.repo.Set(ctx, key, sealed)
}

func (s *Sealed) SetMany(ctx context.Context, values map[string][]byte) error {
	out := make(map[string][]byte, len(values))
	for k, v := range values {
		sealed, err := cryptox.Seal(s.key, v, []byte(k))
		if err != nil {
			return err
		}
		out[k] = sealed
	}
	return s.repo.SetMany(ctx, out)
}

func (s *Sealed) Delete(ctx context.Context, keys ...string) error {
	return s.repo.Delete(ctx, keys...)
}
