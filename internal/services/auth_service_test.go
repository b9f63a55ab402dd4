package services

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"catalog-service/internal/models"
	"catalog-service/internal/repository"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uint64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func newTestAuthService(repo *MockUserRepository) *AuthService {
	logger := logrus.New()
	logger.SetOutput(testWriter{})
	return NewAuthService(repo, "test-secret", time.Hour, logger)
}

func testUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	return &models.User{
		ID:           7,
		UUID:         "user-uuid",
		Email:        "seller@example.com",
		PasswordHash: string(hash),
		Role:         models.RoleSeller,
		Active:       true,
	}
}

func TestLoginIssuesToken(t *testing.T) {
	repo := &MockUserRepository{}
	user := testUser(t, "hunter2")
	repo.On("GetByEmail", mock.Anything, "seller@example.com").Return(user, nil)

	svc := newTestAuthService(repo)
	resp, err := svc.Login(context.Background(), &LoginRequest{
		Email:    "seller@example.com",
		Password: "hunter2",
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(7), resp.UserID)
	assert.Equal(t, models.RoleSeller, resp.Role)

	claims, err := svc.ParseToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), claims.UserID)
	assert.Equal(t, models.RoleSeller, claims.Role)
	assert.Equal(t, "user-uuid", claims.Subject)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := &MockUserRepository{}
	repo.On("GetByEmail", mock.Anything, "seller@example.com").Return(testUser(t, "hunter2"), nil)

	svc := newTestAuthService(repo)
	_, err := svc.Login(context.Background(), &LoginRequest{
		Email:    "seller@example.com",
		Password: "wrong",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownEmail(t *testing.T) {
	repo := &MockUserRepository{}
	repo.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, repository.ErrNotFound)

	svc := newTestAuthService(repo)
	_, err := svc.Login(context.Background(), &LoginRequest{
		Email:    "ghost@example.com",
		Password: "hunter2",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginInactiveAccount(t *testing.T) {
	repo := &MockUserRepository{}
	user := testUser(t, "hunter2")
	user.Active = false
	repo.On("GetByEmail", mock.Anything, "seller@example.com").Return(user, nil)

	svc := newTestAuthService(repo)
	_, err := svc.Login(context.Background(), &LoginRequest{
		Email:    "seller@example.com",
		Password: "hunter2",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestParseTokenRejectsForeignSignature(t *testing.T) {
	repo := &MockUserRepository{}
	repo.On("GetByEmail", mock.Anything, "seller@example.com").Return(testUser(t, "hunter2"), nil)

	issuer := newTestAuthService(repo)
	resp, err := issuer.Login(context.Background(), &LoginRequest{
		Email:    "seller@example.com",
		Password: "hunter2",
	})
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(testWriter{})
	verifier := NewAuthService(repo, "other-secret", time.Hour, logger)

	_, err = verifier.ParseToken(resp.AccessToken)
	assert.Error(t, err)
}
