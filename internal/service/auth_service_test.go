package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/studyconnect/studyconnect-api/internal/models"
	appErrors "github.com/studyconnect/studyconnect-api/pkg/errors"
)

type mockAuthRepo struct {
	byEmail map[string]*models.User
	byID    map[string]*models.User
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{byEmail: map[string]*models.User{}, byID: map[string]*models.User{}}
}

func (m *mockAuthRepo) add(user *models.User) {
	m.byEmail[user.Email] = user
	m.byID[user.ID] = user
}

func (m *mockAuthRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if user, ok := m.byEmail[email]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	if user, ok := m.byID[id]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(_ context.Context, user *models.User) error {
	user.ID = "generated-id"
	m.add(user)
	return nil
}

func newAuthFixture() (*AuthService, *mockAuthRepo) {
	repo := newMockAuthRepo()
	svc := NewAuthService(repo, nil, nil, AuthConfig{Secret: "test-secret", TokenExpiry: time.Hour, Issuer: "studyconnect"})
	return svc, repo
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestRegisterIssuesValidToken(t *testing.T) {
	svc, repo := newAuthFixture()

	resp, err := svc.Register(context.Background(), models.RegisterRequest{
		FullName: "Sam Student",
		Email:    "sam@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, models.RoleStudent, resp.User.Role)

	stored := repo.byEmail["sam@example.com"]
	require.NotNil(t, stored)
	assert.True(t, stored.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret123")))

	claims, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "generated-id", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
	assert.Equal(t, "studyconnect", claims.Issuer)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, repo := newAuthFixture()
	repo.add(&models.User{ID: "u1", Email: "taken@example.com", Active: true})

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		FullName: "Someone Else",
		Email:    "taken@example.com",
		Password: "secret123",
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, "email already registered", appErr.Message)
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	svc, _ := newAuthFixture()

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		FullName: "Wannabe Admin",
		Email:    "admin@example.com",
		Password: "secret123",
		Role:     models.RoleAdmin,
	})
	require.Error(t, err)
	appErr, ok := err.(*appErrors.Error)
	require.True(t, ok)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestLogin(t *testing.T) {
	svc, repo := newAuthFixture()
	repo.add(&models.User{
		ID:           "u1",
		Email:        "sam@example.com",
		PasswordHash: hashed(t, "secret123"),
		FullName:     "Sam Student",
		Role:         models.RoleStudent,
		Active:       true,
	})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "sam@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "u1", resp.User.ID)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "sam@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, "invalid email or password", err.(*appErrors.Error).Message)

	// Unknown accounts get the same message as a bad password.
	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "secret123"})
	require.Error(t, err)
	assert.Equal(t, "invalid email or password", err.(*appErrors.Error).Message)
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	svc, repo := newAuthFixture()
	repo.add(&models.User{
		ID:           "u1",
		Email:        "gone@example.com",
		PasswordHash: hashed(t, "secret123"),
		Active:       false,
	})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "gone@example.com", Password: "secret123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, err.(*appErrors.Error).Code)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc, _ := newAuthFixture()
	other := NewAuthService(newMockAuthRepo(), nil, nil, AuthConfig{Secret: "another-secret", TokenExpiry: time.Hour})

	resp, err := other.Register(context.Background(), models.RegisterRequest{
		FullName: "Sam Student",
		Email:    "sam@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	_, err = svc.ValidateToken(resp.Token)
	require.Error(t, err)

	_, err = svc.ValidateToken("not.a.token")
	require.Error(t, err)
}
