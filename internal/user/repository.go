package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"todo_tracker/internal/apperror"
	"todo_tracker/internal/utils"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
)

const uniqueViolation = "23505"

type UserRepository struct{}

type UserRepositoryInterface interface {
	Create(ctx context.Context, db utils.DBTX, user *User) (int64, error)
	GetByUsername(ctx context.Context, db utils.DBTX, username string) (*User, error)
	ExistsByUsername(ctx context.Context, db utils.DBTX, username string) (bool, error)
	ExistsByEmail(ctx context.Context, db utils.DBTX, email string) (bool, error)
}

func NewUserRepository() UserRepositoryInterface {
	return &UserRepository{}
}

// Create inserts a user. A unique-constraint violation is reported as
// apperror.ErrDuplicateUser since the constraint is the final guard against
// concurrent registrations.
func (r *UserRepository) Create(ctx context.Context, db utils.DBTX, user *User) (int64, error) {
	query := `
		INSERT INTO users (
			username, email, password, fullname, created_at
		)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at
	`

	err := db.QueryRowContext(
		ctx,
		query,
		user.Username,
		user.Email,
		user.Password,
		user.Fullname,
	).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			logrus.WithFields(logrus.Fields{
				"username":   user.Username,
				"constraint": pgErr.ConstraintName,
			}).Warn("Duplicate user rejected by unique constraint")
			return 0, apperror.WithMessage(apperror.ErrDuplicateUser, duplicateMessage(pgErr.ConstraintName))
		}
		logrus.WithError(err).Error("Failed to create user")
		return 0, fmt.Errorf("insert user: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
	}).Info("User created successfully")

	return user.ID, nil
}

func duplicateMessage(constraint string) string {
	if constraint == "users_email_key" {
		return "email already exists"
	}
	return "username already exists"
}

func (r *UserRepository) GetByUsername(ctx context.Context, db utils.DBTX, username string) (*User, error) {
	query := `
		SELECT id, username, email, password, fullname, created_at
		FROM users
		WHERE username = $1
	`

	user, err := scanUser(db.QueryRowContext(ctx, query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logrus.WithField("username", username).Debug("User not found")
			return nil, apperror.ErrUserNotFound
		}
		logrus.WithError(err).Error("Failed to get user by username")
		return nil, fmt.Errorf("get user by username: %w", err)
	}

	return user, nil
}

func (r *UserRepository) ExistsByUsername(ctx context.Context, db utils.DBTX, username string) (bool, error) {
	return exists(ctx, db, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username)
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, db utils.DBTX, email string) (bool, error) {
	return exists(ctx, db, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email)
}

func exists(ctx context.Context, db utils.DBTX, query string, arg string) (bool, error) {
	var found bool
	if err := db.QueryRowContext(ctx, query, arg).Scan(&found); err != nil {
		return false, fmt.Errorf("check user existence: %w", err)
	}
	return found, nil
}

func scanUser(row *sql.Row) (*User, error) {
	user := &User{}
	var fullname sql.NullString
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Password,
		&fullname,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if fullname.Valid {
		user.Fullname = &fullname.String
	}
	return user, nil
}
