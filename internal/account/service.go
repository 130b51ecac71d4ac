// Package account implements registration, login and password reset.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/your-org/emotune/internal/auth"
	"github.com/your-org/emotune/internal/models"
	"github.com/your-org/emotune/internal/storage"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
	ErrStorage            = errors.New("account storage failure")
)

// Store persists accounts. GetAccountByUsername returns nil, nil for unknown users.
type Store interface {
	CreateAccount(ctx context.Context, username, passwordHash string) (*models.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*models.Account, error)
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
}

type Hasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

type Service struct {
	store  Store
	hasher Hasher
	tokens *auth.ResetTokenStore
	now    func() time.Time
}

func NewService(store Store, hasher Hasher, tokens *auth.ResetTokenStore) *Service {
	return &Service{store: store, hasher: hasher, tokens: tokens, now: time.Now}
}

func (s *Service) Register(ctx context.Context, username, password string) (*models.Account, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}

	existing, err := s.store.GetAccountByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("%w: lookup account: %w", ErrStorage, err)
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}

	acc, err := s.store.CreateAccount(ctx, username, hash)
	if err != nil {
		// Lost a race with a concurrent registration for the same name.
		if errors.Is(err, storage.ErrUsernameTaken) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("%w: create account: %w", ErrStorage, err)
	}

	slog.Info("account registered", "account_id", acc.ID)
	return acc, nil
}

func (s *Service) Login(ctx context.Context, username, password string) (*models.Account, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}

	acc, err := s.store.GetAccountByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("%w: lookup account: %w", ErrStorage, err)
	}
	if acc == nil || !s.hasher.Verify(acc.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return acc, nil
}

// RequestReset issues a reset token. For unknown usernames it reports found=false
// and no error; callers must not reveal the difference beyond the missing token.
func (s *Service) RequestReset(ctx context.Context, username string) (token string, found bool, err error) {
	if username == "" {
		return "", false, ErrInvalidInput
	}

	acc, err := s.store.GetAccountByUsername(ctx, username)
	if err != nil {
		return "", false, fmt.Errorf("%w: lookup account: %w", ErrStorage, err)
	}
	if acc == nil {
		return "", false, nil
	}

	return s.tokens.Create(acc.ID), true, nil
}

// ResetPassword redeems token and replaces the account's password. Once the new
// password is accepted the token is spent, even when the update fails.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" || newPassword == "" {
		return ErrInvalidInput
	}

	// A rejected password must leave the token usable.
	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}

	accountID, err := s.tokens.Consume(token, s.now())
	if err != nil {
		return ErrInvalidResetToken
	}

	if err := s.store.UpdatePasswordHash(ctx, accountID, hash); err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("%w: update password: %w", ErrStorage, err)
	}

	slog.Info("password reset", "account_id", accountID)
	return nil
}

func (s *Service) hash(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}
