package user

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
	"todo_tracker/internal/apperror"
	"todo_tracker/internal/auth"
	"todo_tracker/internal/config"
	"todo_tracker/internal/testutil"
	"todo_tracker/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryUserRepository is an in-memory UserRepositoryInterface that enforces
// the same unique constraints as the users table.
type memoryUserRepository struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*User

	// lookups counts GetByUsername calls; vanishAfter makes the user disappear
	// once that many lookups have happened.
	lookups     int
	vanishAfter int
}

func newMemoryUserRepository() *memoryUserRepository {
	return &memoryUserRepository{users: map[int64]*User{}}
}

func (r *memoryUserRepository) Create(_ context.Context, _ utils.DBTX, user *User) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == user.Username {
			return 0, apperror.WithMessage(apperror.ErrDuplicateUser, "username already exists")
		}
		if u.Email == user.Email {
			return 0, apperror.WithMessage(apperror.ErrDuplicateUser, "email already exists")
		}
	}

	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now()
	stored := *user
	r.users[user.ID] = &stored
	return user.ID, nil
}

// byID reads a stored user back for assertions.
func (r *memoryUserRepository) byID(id int64) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, apperror.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *memoryUserRepository) GetByUsername(_ context.Context, _ utils.DBTX, username string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lookups++
	if r.vanishAfter > 0 && r.lookups > r.vanishAfter {
		return nil, apperror.ErrUserNotFound
	}
	for _, u := range r.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.ErrUserNotFound
}

func (r *memoryUserRepository) ExistsByUsername(_ context.Context, _ utils.DBTX, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryUserRepository) ExistsByEmail(_ context.Context, _ utils.DBTX, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func newTestService(t *testing.T) (UserServiceInterface, *memoryUserRepository, *auth.Issuer) {
	t.Helper()
	repo := newMemoryUserRepository()
	issuer := auth.NewIssuer(config.JWTConfig{
		Secret:     "user-service-test-secret",
		Issuer:     "todo-tracker-test",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: time.Hour,
	})
	return NewUserService(repo, &testutil.TxRunner{}, issuer), repo, issuer
}

func strPtr(s string) *string { return &s }

func TestRegister_Success(t *testing.T) {
	svc, repo, issuer := newTestService(t)

	result, err := svc.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password123",
		Fullname: strPtr("Alice Liddell"),
	})
	require.NoError(t, err)

	assert.Equal(t, "alice", result.Username)
	assert.NotZero(t, result.UserID)
	assert.NotEmpty(t, result.Token)
	assert.NotEmpty(t, result.RefreshToken)

	claims, err := issuer.ValidateToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, auth.AccessToken, claims.Type)

	stored, err := repo.byID(result.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", *stored.Fullname)
}

func TestRegister_PasswordIsHashed(t *testing.T) {
	svc, repo, _ := newTestService(t)

	result, err := svc.Register(context.Background(), RegisterInput{
		Username: "bob", Email: "bob@example.com", Password: "plaintext-secret",
	})
	require.NoError(t, err)

	stored, err := repo.byID(result.UserID)
	require.NoError(t, err)
	assert.NotEqual(t, "plaintext-secret", stored.Password)
	assert.NotContains(t, stored.Password, "plaintext-secret")
	assert.NoError(t, auth.ComparePasswordHash([]byte(stored.Password), "plaintext-secret"))
}

func TestRegister_PasswordTooLongForBcrypt(t *testing.T) {
	svc, repo, _ := newTestService(t)

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "erin", Email: "erin@example.com", Password: strings.Repeat("é", 40),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrValidationFailed)
	assert.Equal(t, http.StatusBadRequest, apperror.StatusCode(err))
	assert.Empty(t, repo.users)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "carol", Email: "carol@example.com", Password: "password123"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Username: "carol", Email: "other@example.com", Password: "different1"})
	assert.ErrorIs(t, err, apperror.ErrDuplicateUser)
	assert.Equal(t, "username already exists", err.Error())
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "dave", Email: "shared@example.com", Password: "password123"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Username: "erin", Email: "shared@example.com", Password: "password123"})
	assert.ErrorIs(t, err, apperror.ErrDuplicateUser)
	assert.Equal(t, "email already exists", err.Error())
}

func TestRegister_UsernameCheckedBeforeEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "frank", Email: "frank@example.com", Password: "password123"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Username: "frank", Email: "frank@example.com", Password: "password123"})
	require.ErrorIs(t, err, apperror.ErrDuplicateUser)
	assert.Equal(t, "username already exists", err.Error())
}

func TestRegister_ConstraintViolationIsDuplicate(t *testing.T) {
	repo := newMemoryUserRepository()
	racing := &racingRepository{memoryUserRepository: repo}
	issuer := auth.NewIssuer(config.JWTConfig{Secret: "s", AccessTTL: time.Minute, RefreshTTL: time.Minute})
	svc := NewUserService(racing, &testutil.TxRunner{}, issuer)

	_, err := repo.Create(context.Background(), nil, &User{Username: "gina", Email: "gina@example.com", Password: "x"})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterInput{Username: "gina", Email: "gina2@example.com", Password: "password123"})
	assert.ErrorIs(t, err, apperror.ErrDuplicateUser)
}

// racingRepository reports that nothing exists, as if a concurrent
// registration committed between the checks and the insert.
type racingRepository struct {
	*memoryUserRepository
}

func (r *racingRepository) ExistsByUsername(context.Context, utils.DBTX, string) (bool, error) {
	return false, nil
}

func (r *racingRepository) ExistsByEmail(context.Context, utils.DBTX, string) (bool, error) {
	return false, nil
}

func TestRegister_RepositoryFailureRollsBack(t *testing.T) {
	repo := &failingRepository{memoryUserRepository: newMemoryUserRepository()}
	runner := &testutil.TxRunner{}
	issuer := auth.NewIssuer(config.JWTConfig{Secret: "s", AccessTTL: time.Minute, RefreshTTL: time.Minute})
	svc := NewUserService(repo, runner, issuer)

	_, err := svc.Register(context.Background(), RegisterInput{Username: "hank", Email: "hank@example.com", Password: "password123"})
	require.Error(t, err)
	assert.False(t, apperror.IsDomain(err))
	assert.Equal(t, 1, runner.RolledBack)
}

type failingRepository struct {
	*memoryUserRepository
}

func (r *failingRepository) Create(context.Context, utils.DBTX, *User) (int64, error) {
	return 0, errors.New("connection reset by peer")
}

func TestLogin_Success(t *testing.T) {
	svc, _, issuer := newTestService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, RegisterInput{Username: "ivy", Email: "ivy@example.com", Password: "password123"})
	require.NoError(t, err)

	result, err := svc.Login(ctx, "ivy", "password123")
	require.NoError(t, err)

	assert.Equal(t, registered.UserID, result.UserID)
	assert.Equal(t, "ivy", result.Username)

	claims, err := issuer.ValidateToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "ivy", claims.Username)

	// The token from registration stays valid after a new login.
	_, err = issuer.ValidateToken(registered.Token)
	assert.NoError(t, err)
}

func TestLogin_WrongPasswordAndUnknownUserFailTheSameWay(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "jack", Email: "jack@example.com", Password: "password123"})
	require.NoError(t, err)

	_, wrongPassword := svc.Login(ctx, "jack", "not-the-password")
	_, unknownUser := svc.Login(ctx, "nobody", "password123")

	assert.ErrorIs(t, wrongPassword, apperror.ErrAuthenticationFailed)
	assert.ErrorIs(t, unknownUser, apperror.ErrAuthenticationFailed)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
}

func TestLogin_UserVanishesAfterVerification(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "kate", Email: "kate@example.com", Password: "password123"})
	require.NoError(t, err)

	repo.lookups = 0
	repo.vanishAfter = 1

	_, err = svc.Login(ctx, "kate", "password123")
	assert.ErrorIs(t, err, apperror.ErrUserNotFound)
}

func TestRefresh(t *testing.T) {
	svc, _, issuer := newTestService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, RegisterInput{Username: "liam", Email: "liam@example.com", Password: "password123"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, registered.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, registered.UserID, refreshed.UserID)

	claims, err := issuer.ValidateToken(refreshed.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.AccessToken, claims.Type)

	_, err = svc.Refresh(ctx, registered.Token)
	assert.ErrorIs(t, err, apperror.ErrAuthenticationFailed)

	_, err = svc.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, apperror.ErrAuthenticationFailed)
}

func TestRefresh_DeletedUser(t *testing.T) {
	svc, repo, issuer := newTestService(t)

	pair, err := issuer.GenerateTokenPair("ghost")
	require.NoError(t, err)
	require.Empty(t, repo.users)

	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, apperror.ErrUserNotFound)
}

func TestGetUserByUsername_NeverExposesPasswordInJSON(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "mia", Email: "mia@example.com", Password: "password123"})
	require.NoError(t, err)

	u, err := svc.GetUserByUsername(ctx, "mia")
	require.NoError(t, err)

	body, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "password")
	assert.NotContains(t, string(body), u.Password)
}
