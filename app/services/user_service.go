package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"postvote/app/auth"
	"postvote/app/models"
	"postvote/app/repositories"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt only reads the first 72 bytes of a password.
const passwordRules = "required,min=8,max=72"

// UserService handles signup, login and token refresh.
type UserService struct {
	store   repositories.Store
	tokens  *auth.TokenIssuer
	timeout time.Duration
	logger  *slog.Logger
	cost    int
}

func NewUserService(store repositories.Store, tokens *auth.TokenIssuer, timeout time.Duration, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &UserService{
		store:   store,
		tokens:  tokens,
		timeout: timeout,
		logger:  logger,
		cost:    bcrypt.DefaultCost,
	}
}

// SetCost sets the bcrypt cost used for new password hashes.
func (s *UserService) SetCost(cost int) {
	s.cost = cost
}

// Signup creates an account and returns its first token pair. Every field
// problem, including a taken username or email, is reported at once.
func (s *UserService) Signup(ctx context.Context, username, email, password string) (*models.User, auth.TokenPair, error) {
	user := &models.User{
		Username: strings.TrimSpace(username),
		Email:    strings.ToLower(strings.TrimSpace(email)),
	}

	verr := &ValidationError{}
	if err := user.Validate(); err != nil {
		problems := models.FieldProblems(err)
		if problems == nil {
			return nil, auth.TokenPair{}, err
		}
		verr.Merge(problems)
	}
	if err := models.ValidateVar(password, passwordRules); err != nil {
		for _, problems := range models.FieldProblems(err) {
			for _, p := range problems {
				verr.Add("password", p)
			}
		}
	}
	if err := verr.Err(); err != nil {
		return nil, auth.TokenPair{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, auth.TokenPair{}, invalid("password", "ensure this field has no more than 72 bytes")
	}
	if err != nil {
		return nil, auth.TokenPair{}, fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	user.CreatedAt = time.Now().UTC()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err = s.store.Atomic(ctx, func(r repositories.Repos) error {
		taken := &ValidationError{}
		exists, err := r.Users.ExistsUsername(user.Username)
		if err != nil {
			return err
		}
		if exists {
			taken.Add("username", "a user with that username already exists")
		}
		exists, err = r.Users.ExistsEmail(user.Email)
		if err != nil {
			return err
		}
		if exists {
			taken.Add("email", "a user with that email already exists")
		}
		if err := taken.Err(); err != nil {
			return err
		}
		return r.Users.Create(user)
	})
	if errors.Is(err, repositories.ErrConflict) {
		err = invalid("username", "a user with that username already exists")
	}
	if err != nil {
		return nil, auth.TokenPair{}, s.fail("signup", err)
	}

	pair, err := s.tokens.Issue(user.Identity())
	if err != nil {
		return nil, auth.TokenPair{}, err
	}

	s.logger.Info("user signed up", "user_id", user.ID, "username", user.Username)
	return user, pair, nil
}

// Login exchanges a username and password for a token pair.
func (s *UserService) Login(ctx context.Context, username, password string) (auth.TokenPair, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var user *models.User
	err := s.store.View(ctx, func(r repositories.Repos) error {
		var err error
		user, err = r.Users.GetByUsername(strings.TrimSpace(username))
		return err
	})
	if errors.Is(err, repositories.ErrNotFound) {
		return auth.TokenPair{}, ErrUnauthorized
	}
	if err != nil {
		return auth.TokenPair{}, s.fail("login", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("failed login", "username", user.Username)
		return auth.TokenPair{}, ErrUnauthorized
	}
	return s.tokens.Issue(user.Identity())
}

// Refresh exchanges a valid refresh token for a new pair, provided the
// account still exists.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	identity, err := s.tokens.Verify(refreshToken, auth.Refresh)
	if err != nil {
		return auth.TokenPair{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var user *models.User
	err = s.store.View(ctx, func(r repositories.Repos) error {
		var err error
		user, err = r.Users.GetByID(identity.ID)
		return err
	})
	if errors.Is(err, repositories.ErrNotFound) {
		return auth.TokenPair{}, ErrUnauthorized
	}
	if err != nil {
		return auth.TokenPair{}, s.fail("refresh", err)
	}
	return s.tokens.Issue(user.Identity())
}

func (s *UserService) fail(what string, err error) error {
	err = fromStore(err)
	if errors.Is(err, ErrStoreUnavailable) {
		s.logger.Error("store failure", "op", what, "error", err)
	}
	return fmt.Errorf("%s: %w", what, err)
}
