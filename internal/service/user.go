package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/placeshare/placeshare/internal/metrics"
	"github.com/placeshare/placeshare/internal/model"
	"github.com/placeshare/placeshare/internal/validation"
)

// PasswordHasher hashes and verifies user passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID, email string) (string, error)
}

// UserService handles accounts: signup, login and the user directory.
type UserService struct {
	store   Store
	hasher  PasswordHasher
	tokens  TokenIssuer
	metrics metrics.Recorder
	logger  *slog.Logger
	now     func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(store Store, hasher PasswordHasher, tokens TokenIssuer, recorder metrics.Recorder, logger *slog.Logger) *UserService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		store:   store,
		hasher:  hasher,
		tokens:  tokens,
		metrics: recorder,
		logger:  logger.With("component", "service.user"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// AuthResult is returned by Signup and Login.
type AuthResult struct {
	UserID string
	Email  string
	Token  string
}

// SignupInput defines input for creating an account.
type SignupInput struct {
	Name     string `form:"name" validate:"required"`
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"min=6"`
	Image    string `form:"image" validate:"required"`
}

// Signup creates an account with an empty place set and issues a token.
func (s *UserService) Signup(ctx context.Context, input SignupInput) (*AuthResult, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = normalizeEmail(input.Email)
	if err := validation.Struct(&input); err != nil {
		return nil, err
	}

	if _, err := s.store.GetUserByEmail(ctx, input.Email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(translateStoreError(err), ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up email: %w", err)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           generateID(),
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Image:        input.Image,
		Places:       []string{},
		CreatedAt:    s.now(),
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if err := translateStoreError(err); errors.Is(err, ErrEmailExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.metrics.IncSignup()
	s.logger.Info("user signed up", "user_id", user.ID)

	return &AuthResult{UserID: user.ID, Email: user.Email, Token: token}, nil
}

// LoginInput defines input for logging in.
type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login verifies credentials and issues a token.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	input.Email = normalizeEmail(input.Email)
	if err := validation.Struct(&input); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(translateStoreError(err), ErrUserNotFound) {
			s.rejectLogin("unknown email")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	ok, err := s.hasher.Verify(input.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		s.rejectLogin("wrong password")
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &AuthResult{UserID: user.ID, Email: user.Email, Token: token}, nil
}

func (s *UserService) rejectLogin(reason string) {
	s.metrics.IncAuthFailure(metrics.ReasonCredentials)
	s.logger.Warn("login rejected", "reason", reason)
}

// ListUsers returns every user. An empty directory is not an error.
func (s *UserService) ListUsers(ctx context.Context) ([]*model.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}
