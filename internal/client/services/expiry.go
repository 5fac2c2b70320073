package services

import (
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/client/models"
	"github.com/golang-jwt/jwt/v5"
)

// MaxSessionLifetime caps the lifetime a service may report. Larger values
// would overflow time.Duration and put the expiry in the past.
const MaxSessionLifetime = 10 * 365 * 24 * time.Hour

// expiresAt resolves the session end: the reported lifetime, else the exp
// claim of the access token, else the default lifetime. The token signature
// is not checked; the service remains the authority on validity.
func (s *AuthService) expiresAt(res *models.AuthResult) time.Time {
	now := s.now()
	if res.ExpiresIn > 0 {
		if res.ExpiresIn > int64(MaxSessionLifetime/time.Second) {
			return now.Add(MaxSessionLifetime)
		}
		return now.Add(time.Duration(res.ExpiresIn) * time.Second)
	}
	if exp, ok := tokenExpiry(res.Token); ok {
		return exp
	}
	return now.Add(s.ttl)
}

func tokenExpiry(token string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
