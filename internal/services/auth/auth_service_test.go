package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/onegreenvn/crm-campaign-backend/internal/apperror"
	"github.com/onegreenvn/crm-campaign-backend/internal/config"
	"github.com/onegreenvn/crm-campaign-backend/internal/models"
)

type memoryUsers struct {
	users map[string]*models.User
}

func (m *memoryUsers) Create(_ context.Context, u *models.User) error {
	u.ID = uuid.NewString()
	u.Email = models.NormalizeEmail(u.Email)
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memoryUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memoryUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username || u.Email == models.NormalizeEmail(username) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryUsers) Update(_ context.Context, u *models.User) error {
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memoryUsers) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	m.users[id].LastLoginAt = &at
	return nil
}

func (m *memoryUsers) IncrementTokenVersion(_ context.Context, id string) error {
	m.users[id].TokenVersion++
	return nil
}

func (m *memoryUsers) CredentialsTaken(_ context.Context, username, email string) (bool, error) {
	for _, u := range m.users {
		if u.Username == username || u.Email == models.NormalizeEmail(email) {
			return true, nil
		}
	}
	return false, nil
}

type memoryTokens struct {
	mu     sync.Mutex
	tokens map[string]*models.RefreshToken
}

func (m *memoryTokens) Create(_ context.Context, t *models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.tokens[t.Token] = &cp
	return nil
}

func (m *memoryTokens) GetByToken(_ context.Context, token string) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[token]
	if !ok || t.IsRevoked {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memoryTokens) RevokeToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[token]; ok {
		t.IsRevoked = true
	}
	return nil
}

func (m *memoryTokens) RevokeAllUserTokens(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.UserID == userID {
			t.IsRevoked = true
		}
	}
	return nil
}

func (m *memoryTokens) CleanupTokens(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, t := range m.tokens {
		if t.IsRevoked || t.ExpiresAt.Before(now) {
			delete(m.tokens, k)
			n++
		}
	}
	return n, nil
}

var testAuthConfig = config.AuthConfig{
	JWTSecret:       "test-secret",
	AccessTokenTTL:  15 * time.Minute,
	RefreshTokenTTL: 24 * time.Hour,
}

func newTestAuthService() (*AuthService, *memoryUsers, *memoryTokens) {
	users := &memoryUsers{users: map[string]*models.User{}}
	tokens := &memoryTokens{tokens: map[string]*models.RefreshToken{}}
	return NewAuthService(users, tokens, testAuthConfig), users, tokens
}

func register(t *testing.T, svc *AuthService) *models.AuthResponse {
	t.Helper()
	resp, err := svc.Register(context.Background(), &models.RegisterRequest{
		Username: "alice",
		Email:    "Alice@Example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	return resp
}

func TestRegisterAndLogin(t *testing.T) {
	svc, users, _ := newTestAuthService()
	ctx := context.Background()

	resp := register(t, svc)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(900), resp.ExpiresIn)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.NotEqual(t, "secret123", users.users[resp.User.ID].PasswordHash)

	_, err := svc.Register(ctx, &models.RegisterRequest{Username: "alice", Email: "other@example.com", Password: "secret123"})
	var conflict *apperror.ConflictError
	assert.ErrorAs(t, err, &conflict)

	_, err = svc.Register(ctx, &models.RegisterRequest{Username: "al", Email: "nope", Password: "123"})
	assert.Len(t, apperror.Violations(err), 3)

	login, err := svc.Login(ctx, &models.LoginRequest{Username: "alice@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotNil(t, users.users[login.User.ID].LastLoginAt)

	_, err = svc.Login(ctx, &models.LoginRequest{Username: "alice", Password: "wrong"})
	assert.Equal(t, 401, apperror.HTTPStatus(err))

	_, err = svc.Login(ctx, &models.LoginRequest{Username: "bob", Password: "secret123"})
	assert.Equal(t, 401, apperror.HTTPStatus(err))
}

func TestValidateToken(t *testing.T) {
	svc, users, _ := newTestAuthService()
	ctx := context.Background()
	resp := register(t, svc)

	info, err := svc.ValidateToken(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, info.UserID)
	assert.Equal(t, "alice", info.Username)

	t.Run("foreign signature", func(t *testing.T) {
		claims := &models.JWTClaims{UserID: resp.User.ID, RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
		require.NoError(t, err)
		_, err = svc.ValidateToken(ctx, forged)
		assert.Equal(t, 401, apperror.HTTPStatus(err))
	})

	t.Run("expired", func(t *testing.T) {
		short := NewAuthService(users, &memoryTokens{tokens: map[string]*models.RefreshToken{}}, config.AuthConfig{
			JWTSecret: testAuthConfig.JWTSecret, AccessTokenTTL: -time.Minute, RefreshTokenTTL: time.Hour,
		})
		expired, err := short.generateAccessToken(users.users[resp.User.ID])
		require.NoError(t, err)
		_, err = svc.ValidateToken(ctx, expired)
		assert.Error(t, err)
	})

	t.Run("logout everywhere bumps the token version", func(t *testing.T) {
		require.NoError(t, svc.Logout(ctx, "", resp.User.ID))
		_, err := svc.ValidateToken(ctx, resp.AccessToken)
		var u *apperror.UnauthorizedError
		require.ErrorAs(t, err, &u)
		assert.Equal(t, "token version mismatch", u.Message)
	})
}

func TestRefreshTokenRotation(t *testing.T) {
	svc, _, tokens := newTestAuthService()
	ctx := context.Background()
	resp := register(t, svc)

	rotated, err := svc.RefreshToken(ctx, resp.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, resp.RefreshToken, rotated.RefreshToken)

	_, err = svc.RefreshToken(ctx, resp.RefreshToken)
	assert.Equal(t, 401, apperror.HTTPStatus(err))

	tokens.tokens[rotated.RefreshToken].ExpiresAt = time.Now().Add(-time.Second)
	_, err = svc.RefreshToken(ctx, rotated.RefreshToken)
	var u *apperror.UnauthorizedError
	require.ErrorAs(t, err, &u)
	assert.Equal(t, "refresh token expired", u.Message)
	assert.True(t, tokens.tokens[rotated.RefreshToken].IsRevoked)
}

func TestChangePassword(t *testing.T) {
	svc, _, tokens := newTestAuthService()
	ctx := context.Background()
	resp := register(t, svc)

	err := svc.ChangePassword(ctx, resp.User.ID, "wrong", "newsecret")
	assert.Equal(t, 401, apperror.HTTPStatus(err))

	err = svc.ChangePassword(ctx, resp.User.ID, "secret123", "123")
	assert.Equal(t, 400, apperror.HTTPStatus(err))

	require.NoError(t, svc.ChangePassword(ctx, resp.User.ID, "secret123", "newsecret"))
	assert.True(t, tokens.tokens[resp.RefreshToken].IsRevoked)

	_, err = svc.ValidateToken(ctx, resp.AccessToken)
	assert.Error(t, err)
	_, err = svc.Login(ctx, &models.LoginRequest{Username: "alice", Password: "newsecret"})
	assert.NoError(t, err)
}

func TestTokenCleanupService(t *testing.T) {
	tokens := &memoryTokens{tokens: map[string]*models.RefreshToken{
		"live":    {Token: "live", ExpiresAt: time.Now().Add(time.Hour)},
		"expired": {Token: "expired", ExpiresAt: time.Now().Add(-time.Hour)},
		"revoked": {Token: "revoked", ExpiresAt: time.Now().Add(time.Hour), IsRevoked: true},
	}}

	cleanup := NewTokenCleanupService(tokens, time.Hour)
	cleanup.Start()
	require.Eventually(t, func() bool {
		tokens.mu.Lock()
		defer tokens.mu.Unlock()
		return len(tokens.tokens) == 1
	}, time.Second, 10*time.Millisecond)
	cleanup.Stop()

	_, ok := tokens.tokens["live"]
	assert.True(t, ok)
}
