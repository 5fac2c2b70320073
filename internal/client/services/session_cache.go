package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/client/models"
	"github.com/dmitrijs2005/authkeeper/internal/client/secretstore"
)

const (
	sessionUserKey    = "session_user"
	sessionExpiresKey = "session_expires_at"
)

// sessionCache persists the user and expiry pair so a restarted client can
// resume without a network call. Both keys are written and removed together.
type sessionCache struct {
	secrets secretstore.Store
}

func (c *sessionCache) Save(ctx context.Context, s models.Session) error {
	user, err := json.Marshal(s.User)
	if err != nil {
		return fmt.Errorf("encode cached user: %w", err)
	}
	return c.secrets.SetMany(ctx, map[string][]byte{
		sessionUserKey:    user,
		sessionExpiresKey: []byte(s.ExpiresAt.UTC().Format(time.RFC3339Nano)),
	})
}

// Load returns nil when either half of the pair is missing.
func (c *sessionCache) Load(ctx context.Context) (*models.Session, error) {
	rawUser, err := c.secrets.Get(ctx, sessionUserKey)
	if err != nil {
		return nil, err
	}
	rawExp, err := c.secrets.Get(ctx, sessionExpiresKey)
	if err != nil {
		return nil, err
	}
	if rawUser == nil || rawExp == nil {
		return nil, nil
	}

	var u models.User
	if err := json.Unmarshal(rawUser, &u); err != nil {
		return nil, fmt.Errorf("decode cached user: %w", err)
	}
	exp, err := time.Parse(time.RFC3339Nano, string(rawExp))
	if err != nil {
		return nil, fmt.Errorf("decode cached expiry: %w", err)
	}
	return &models.Session{User: &u, ExpiresAt: exp}, nil
}

func (c *sessionCache) Clear(ctx context.Context) error {
	return c.secrets.Delete(ctx, sessionUserKey, sessionExpiresKey)
}
