package user

import (
	"context"
	"errors"
	"fmt"
	"todo_tracker/internal/apperror"
	"todo_tracker/internal/auth"
	"todo_tracker/internal/observability"
	"todo_tracker/internal/utils"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// TokenIssuer is the subset of *auth.Issuer the service needs.
type TokenIssuer interface {
	GenerateTokenPair(username string) (*auth.TokenPair, error)
	ValidateTokenOfType(tokenString string, tokenType auth.TokenType) (*auth.Claims, error)
}

type UserService struct {
	repo   UserRepositoryInterface
	db     utils.TxRunner
	tokens TokenIssuer
}

type UserServiceInterface interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, username, password string) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthResult, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

func NewUserService(repo UserRepositoryInterface, db utils.TxRunner, tokens TokenIssuer) UserServiceInterface {
	return &UserService{
		repo:   repo,
		db:     db,
		tokens: tokens,
	}
}

// Register creates an account and returns a token for it. The username is
// checked before the email so the reported conflict is deterministic.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (result *AuthResult, err error) {
	defer func() { observability.RecordAuthAttempt("register", outcome(err)) }()

	hashedPassword, err := auth.GeneratePasswordHash(in.Password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, apperror.NewValidationError("password", "must be at most 72 bytes")
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		Username: in.Username,
		Email:    in.Email,
		Password: hashedPassword,
		Fullname: in.Fullname,
	}

	err = s.db.WithTransaction(ctx, func(tx utils.DBTX) error {
		taken, err := s.repo.ExistsByUsername(ctx, tx, in.Username)
		if err != nil {
			return err
		}
		if taken {
			return apperror.WithMessage(apperror.ErrDuplicateUser, "username already exists")
		}

		taken, err = s.repo.ExistsByEmail(ctx, tx, in.Email)
		if err != nil {
			return err
		}
		if taken {
			return apperror.WithMessage(apperror.ErrDuplicateUser, "email already exists")
		}

		_, err = s.repo.Create(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
	}).Info("Registered new user")

	return s.issue(user)
}

// Login verifies the credentials and issues a fresh token. Unknown users and
// wrong passwords fail identically.
func (s *UserService) Login(ctx context.Context, username, password string) (result *AuthResult, err error) {
	defer func() { observability.RecordAuthAttempt("login", outcome(err)) }()

	if err := s.authenticate(ctx, username, password); err != nil {
		return nil, err
	}

	user, err := s.repo.GetByUsername(ctx, s.db.Conn(), username)
	if err != nil {
		return nil, err
	}

	logrus.WithField("username", user.Username).Info("User authenticated")
	return s.issue(user)
}

func (s *UserService) authenticate(ctx context.Context, username, password string) error {
	user, err := s.repo.GetByUsername(ctx, s.db.Conn(), username)
	if err != nil {
		if errors.Is(err, apperror.ErrUserNotFound) {
			_ = auth.CompareDummyHash(password)
			return apperror.ErrAuthenticationFailed
		}
		return err
	}

	if err := auth.ComparePasswordHash([]byte(user.Password), password); err != nil {
		return apperror.ErrAuthenticationFailed
	}
	return nil
}

// Refresh rotates a token pair from a valid refresh token.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (result *AuthResult, err error) {
	defer func() { observability.RecordAuthAttempt("refresh", outcome(err)) }()

	claims, err := s.tokens.ValidateTokenOfType(refreshToken, auth.RefreshToken)
	if err != nil {
		return nil, apperror.WithMessage(apperror.ErrAuthenticationFailed, "invalid refresh token")
	}

	user, err := s.repo.GetByUsername(ctx, s.db.Conn(), claims.Username)
	if err != nil {
		return nil, err
	}

	return s.issue(user)
}

func (s *UserService) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.repo.GetByUsername(ctx, s.db.Conn(), username)
}

func (s *UserService) issue(user *User) (*AuthResult, error) {
	tokens, err := s.tokens.GenerateTokenPair(user.Username)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &AuthResult{
		Token:        tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
		UserID:       user.ID,
		Username:     user.Username,
	}, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case apperror.IsDomain(err):
		return "rejected"
	default:
		return "error"
	}
}
