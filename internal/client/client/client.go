package client

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/client/models"
)

// Client is the network boundary of the authentication service.
type Client interface {
	Close() error
	Ping(ctx context.Context) error

	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResult, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResult, error)
	Logout(ctx context.Context) error
	Refresh(ctx context.Context, refreshToken string) (*models.AuthResult, error)

	GetProfile(ctx context.Context) (*models.User, error)
	UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (*models.User, error)
	UpdatePassword(ctx context.Context, upd models.PasswordUpdate) error

	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req models.PasswordReset) error
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email string) error
}
