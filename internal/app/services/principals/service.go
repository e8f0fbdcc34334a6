// Package principals implements registration, login, and account removal.
package principals

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/CalcStack/calc_service/internal/app/auth"
	"github.com/CalcStack/calc_service/internal/app/domain/principal"
	"github.com/CalcStack/calc_service/internal/app/storage"
	apperrors "github.com/CalcStack/calc_service/internal/errors"
	"github.com/CalcStack/calc_service/pkg/logger"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 50
	minPasswordLen = 8
	// bcrypt truncates input beyond 72 bytes, so longer passwords are
	// rejected instead of silently shortened.
	maxPasswordLen = 72
)

// Token is the credential bundle returned by Login.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Service manages principal lifecycle and credential exchange.
type Service struct {
	store  storage.PrincipalStore
	tokens *auth.TokenService
	log    *logger.Logger
}

// New constructs the principals service.
func New(store storage.PrincipalStore, tokens *auth.TokenService, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("principals")
	}
	return &Service{store: store, tokens: tokens, log: log}
}

// Register validates the submitted identity, hashes the password, and
// persists the principal. Duplicate usernames or emails fail with a conflict.
func (s *Service) Register(ctx context.Context, username, email, password string) (principal.Principal, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if err := validateRegistration(username, email, password); err != nil {
		return principal.Principal{}, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return principal.Principal{}, apperrors.Internal("hash password", err)
	}

	created, err := s.store.CreatePrincipal(ctx, principal.Principal{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return principal.Principal{}, apperrors.Conflict("username or email already registered")
		}
		return principal.Principal{}, apperrors.Internal("create principal", err)
	}

	s.log.WithField("principal_id", created.ID).Info("principal registered")
	return created, nil
}

// Login exchanges a username/password pair for a bearer token. Unknown
// usernames and wrong passwords produce the same uniform error.
func (s *Service) Login(ctx context.Context, username, password string) (Token, error) {
	p, err := s.store.GetPrincipalByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Token{}, apperrors.Unauthorized("invalid credentials")
		}
		return Token{}, apperrors.Internal("lookup principal", err)
	}

	if !auth.VerifyPassword(password, p.PasswordHash) {
		return Token{}, apperrors.Unauthorized("invalid credentials")
	}

	access, err := s.tokens.Issue(p.Username)
	if err != nil {
		return Token{}, apperrors.Internal("issue token", err)
	}

	s.log.WithField("principal_id", p.ID).Info("principal logged in")
	return Token{AccessToken: access, TokenType: "bearer"}, nil
}

// Get returns the principal with the given id.
func (s *Service) Get(ctx context.Context, id string) (principal.Principal, error) {
	p, err := s.store.GetPrincipal(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return principal.Principal{}, apperrors.NotFound("principal not found")
		}
		return principal.Principal{}, apperrors.Internal("get principal", err)
	}
	return p, nil
}

// Delete removes the principal and, through the store's cascade, every
// calculation record it owns.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeletePrincipal(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.NotFound("principal not found")
		}
		return apperrors.Internal("delete principal", err)
	}
	s.log.WithField("principal_id", id).Info("principal deleted")
	return nil
}

func validateRegistration(username, email, password string) error {
	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return apperrors.Validation("username must be between 3 and 50 characters")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return apperrors.Validation("email is not a valid address")
	}
	if len(password) < minPasswordLen {
		return apperrors.Validation("password must be at least 8 characters")
	}
	if len(password) > maxPasswordLen {
		return apperrors.Validation("password must be at most 72 characters")
	}
	return nil
}
