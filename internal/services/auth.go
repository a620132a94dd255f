package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/apnisec/apiserver/internal/apperr"
	"github.com/apnisec/apiserver/internal/auth"
	"github.com/apnisec/apiserver/internal/notify"
	"github.com/apnisec/apiserver/internal/store"
	"github.com/apnisec/apiserver/types"
)

const minPasswordLength = 6

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, email, passwordHash string) (types.User, error)
}

// Notifier dispatches a notification event without blocking the
// caller. Delivery is best effort.
type Notifier interface {
	Dispatch(ev notify.Event)
}

// AuthService encapsulates registration, login, and current-user
// lookup.
type AuthService struct {
	users    UserRepository
	notifier Notifier
	secret   []byte
	tokenTTL time.Duration
}

func NewAuthService(users UserRepository, notifier Notifier, jwtSecret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		users:    users,
		notifier: notifier,
		secret:   []byte(jwtSecret),
		tokenTTL: tokenTTL,
	}
}

// Register creates an account and returns the stored user plus a fresh
// token. The welcome notification is fire-and-forget.
func (s *AuthService) Register(ctx context.Context, email, password string) (types.User, string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return types.User{}, "", apperr.Validation("Email and password are required")
	}
	if len(password) < minPasswordLength {
		return types.User{}, "", apperr.Validation("Password must be at least 6 characters long")
	}

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return types.User{}, "", apperr.Validation("User with this email already exists")
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, "", err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return types.User{}, "", err
	}

	user, err := s.users.Create(ctx, email, hash)
	if err != nil {
		return types.User{}, "", err
	}

	token, err := auth.IssueToken(user.ID, user.Email, s.secret, s.tokenTTL)
	if err != nil {
		return types.User{}, "", err
	}

	s.notifier.Dispatch(notify.Event{Kind: notify.KindWelcome, To: user.Email})

	return user, token, nil
}

// Login verifies credentials and returns the user plus a fresh token.
// A missing user and a wrong password produce the same fault, so the
// response cannot be used as an account-existence oracle.
func (s *AuthService) Login(ctx context.Context, email, password string) (types.User, string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return types.User{}, "", apperr.Validation("Email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, "", apperr.Authentication("Invalid email or password")
		}
		return types.User{}, "", err
	}

	if !auth.VerifyPassword(password, user.PasswordHash) {
		return types.User{}, "", apperr.Authentication("Invalid email or password")
	}

	token, err := auth.IssueToken(user.ID, user.Email, s.secret, s.tokenTTL)
	if err != nil {
		return types.User{}, "", err
	}

	return user, token, nil
}

// CurrentUser returns the authenticated user's account record.
func (s *AuthService) CurrentUser(ctx context.Context, userID int) (types.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, apperr.Authentication("User not found")
		}
		return types.User{}, err
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
