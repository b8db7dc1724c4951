package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/college-eapproval-api/internal/models"
	appErrors "github.com/noah-isme/college-eapproval-api/pkg/errors"
)

type authRepoStub struct {
	users   map[string]*models.User
	revoked []string
	tokens  []*models.RefreshToken
}

func (m *authRepoStub) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if user, ok := m.users[username]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func (m *authRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *authRepoStub) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.tokens = append(m.tokens, token)
	return nil
}

func (m *authRepoStub) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revoked = append(m.revoked, userID)
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *authRepoStub) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &authRepoStub{users: map[string]*models.User{
		"student1": {ID: "stu-1", Username: "student1", PasswordHash: string(hash), Role: models.RoleStudent},
	}}
	svc := NewAuthService(repo, nil, nil, nil, AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "college-eapproval-api",
	})
	return svc, repo
}

func TestAuthServiceLoginAndValidate(t *testing.T) {
	svc, repo := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "student1", Password: "password123"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, models.RoleStudent, resp.User.Role)
	require.Len(t, repo.tokens, 1)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "stu-1", claims.UserID)
	require.Equal(t, models.RoleStudent, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "student1", Password: "wrong"})
	requireCode(t, err, appErrors.ErrInvalidCredentials.Code)

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "ghost", Password: "password123"})
	requireCode(t, err, appErrors.ErrInvalidCredentials.Code)
}

func TestAuthServiceValidateRejectsForgedToken(t *testing.T) {
	svc, _ := newAuthFixture(t)

	other := NewAuthService(nil, nil, nil, nil, AuthConfig{
		AccessTokenSecret: "another-secret",
		AccessTokenExpiry: 15 * time.Minute,
	})
	forged, _, err := other.generateAccessToken(&models.User{ID: "stu-1", Username: "student1", Role: models.RoleStudent})
	require.NoError(t, err)

	_, err = svc.ValidateToken(forged)
	requireCode(t, err, appErrors.ErrUnauthorized.Code)
}

func TestAuthServiceLogoutRevokesTokens(t *testing.T) {
	svc, repo := newAuthFixture(t)

	require.NoError(t, svc.Logout(context.Background(), "stu-1"))
	require.Equal(t, []string{"stu-1"}, repo.revoked)
}
