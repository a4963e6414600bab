// Package auth handles accounts and login. Failed password checks feed the
// credential lockout counter; a successful login clears it and issues a
// signed session token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"rollcall/internal/lockout"
	"rollcall/pkg/domain"
	domainerrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/requestcontext"
	"rollcall/pkg/secrets"
	"rollcall/pkg/sentinel"
)

// ErrLocked is returned while a credential lockout window is active.
var ErrLocked = domainerrors.New(domainerrors.CodeLocked, "account temporarily locked")

// errBadCredentials deliberately does not distinguish unknown email from
// wrong password.
var errBadCredentials = domainerrors.New(domainerrors.CodeUnauthorized, "invalid credentials")

// Lockouts is the slice of the lockout service login needs.
type Lockouts interface {
	IsLocked(ctx context.Context, userID domain.UserID) (lockout.Status, error)
	RecordFailure(ctx context.Context, userID domain.UserID, category lockout.Category) (lockout.Status, error)
	ResetCredential(ctx context.Context, userID domain.UserID) error
}

type Service struct {
	users    UserStore
	lockouts Lockouts
	issuer   *TokenIssuer
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(users UserStore, lockouts Lockouts, issuer *TokenIssuer, opts ...Option) (*Service, error) {
	if users == nil || issuer == nil {
		return nil, fmt.Errorf("user store and token issuer are required")
	}
	svc := &Service{users: users, lockouts: lockouts, issuer: issuer, logger: slog.Default()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreateUser registers an account with a bcrypt-hashed password.
func (s *Service) CreateUser(ctx context.Context, email, name, password string, role Role) (User, error) {
	hash, err := secrets.Hash(password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	u := User{
		ID:           domain.NewUserID(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    requestcontext.Now(ctx),
	}
	if err := s.users.Create(ctx, u); err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Login checks the password and returns a signed session token. While the
// credential lockout window is active every attempt fails with ErrLocked,
// correct password or not.
func (s *Service) Login(ctx context.Context, email, password string) (string, User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, sentinel.ErrNotFound) {
		return "", User{}, errBadCredentials
	}
	if err != nil {
		return "", User{}, fmt.Errorf("load user: %w", err)
	}

	if s.lockouts != nil {
		status, err := s.lockouts.IsLocked(ctx, user.ID)
		if err != nil {
			return "", User{}, fmt.Errorf("check lockout: %w", err)
		}
		if status.Locked {
			return "", User{}, ErrLocked
		}
	}

	if err := secrets.Verify(password, user.PasswordHash); err != nil {
		if s.lockouts != nil {
			if status, lerr := s.lockouts.RecordFailure(ctx, user.ID, lockout.CategoryCredential); lerr != nil {
				s.logger.ErrorContext(ctx, "record credential failure", "user_id", user.ID, "error", lerr)
			} else if status.Locked {
				return "", User{}, ErrLocked
			}
		}
		return "", User{}, errBadCredentials
	}

	if s.lockouts != nil {
		if err := s.lockouts.ResetCredential(ctx, user.ID); err != nil {
			s.logger.WarnContext(ctx, "reset credential counter", "user_id", user.ID, "error", err)
		}
	}

	token, err := s.issuer.Issue(user.ID, requestcontext.Now(ctx))
	if err != nil {
		return "", User{}, err
	}

	s.logger.InfoContext(ctx, "login succeeded", "user_id", user.ID, "role", user.Role)
	return token, user, nil
}
