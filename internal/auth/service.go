package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"api_pos/internal/database"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service registers users, checks credentials and verifies bearer tokens.
type Service struct {
	store      *database.Store
	tokens     *Tokens
	bcryptCost int
	logger     *zap.Logger
}

// NewService creates a new Service.
func NewService(store *database.Store, tokens *Tokens, bcryptCost int, logger *zap.Logger) *Service {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &Service{store: store, tokens: tokens, bcryptCost: bcryptCost, logger: logger}
}

// Register creates a cashier account and signs it in. Elevated roles are
// never granted through self-registration.
func (s *Service) Register(ctx context.Context, email, password, name string) (*Session, error) {
	user, err := s.CreateUser(ctx, email, password, name, RoleCashier)
	if err != nil {
		return nil, err
	}
	return s.session(*user)
}

// CreateUser stores a new user with the given role.
func (s *Service) CreateUser(ctx context.Context, email, password, name string, role Role) (*User, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", ErrInvalidUser)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidUser)
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidUser, role)
	}

	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &User{Email: email, PasswordHash: hash, Name: name, Role: role}
	err = s.store.WithTx(ctx, func(tx *gorm.DB) error {
		return NewRepository(tx).Create(ctx, user)
	})
	if err != nil {
		if !errors.Is(err, ErrUserExists) {
			s.logger.Error("registration failed", zap.String("email", email), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("user created", zap.Uint("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// Login checks the credentials and returns a fresh token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := NewRepository(s.store.DB(ctx)).FindByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		s.logger.Error("login lookup failed", zap.Error(err))
		return nil, err
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		s.logger.Error("password verification failed", zap.Uint("user_id", user.ID), zap.Error(err))
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return s.session(*user)
}

// Authorize verifies a bearer token and returns the principal it names.
func (s *Service) Authorize(token string) (Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, ErrUnauthorized
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		s.logger.Debug("token rejected", zap.Error(err))
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims.Principal(), nil
}

// User returns the stored account behind a principal.
func (s *Service) User(ctx context.Context, id uint) (*User, error) {
	return NewRepository(s.store.DB(ctx)).Get(ctx, id)
}

func (s *Service) session(user User) (*Session, error) {
	token, err := s.tokens.Mint(user)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: user}, nil
}
