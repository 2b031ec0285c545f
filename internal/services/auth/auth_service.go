package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/onegreenvn/crm-campaign-backend/internal/apperror"
	"github.com/onegreenvn/crm-campaign-backend/internal/config"
	"github.com/onegreenvn/crm-campaign-backend/internal/models"
	"github.com/onegreenvn/crm-campaign-backend/internal/utils"
)

const tokenIssuer = "crm-campaign-backend"

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
	IncrementTokenVersion(ctx context.Context, userID string) error
	CredentialsTaken(ctx context.Context, username, email string) (bool, error)
}

type RefreshTokenStore interface {
	Create(ctx context.Context, refreshToken *models.RefreshToken) error
	GetByToken(ctx context.Context, token string) (*models.RefreshToken, error)
	RevokeToken(ctx context.Context, token string) error
	RevokeAllUserTokens(ctx context.Context, userID string) error
}

// AuthService issues and validates operator tokens
type AuthService struct {
	userRepo         UserStore
	refreshTokenRepo RefreshTokenStore
	jwtSecret        []byte
	accessTokenTTL   time.Duration
	refreshTokenTTL  time.Duration
}

func NewAuthService(userRepo UserStore, refreshTokenRepo RefreshTokenStore, cfg config.AuthConfig) *AuthService {
	logrus.Infof("Access token TTL: %s, refresh token TTL: %s", cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	return &AuthService{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		jwtSecret:        []byte(cfg.JWTSecret),
		accessTokenTTL:   cfg.AccessTokenTTL,
		refreshTokenTTL:  cfg.RefreshTokenTTL,
	}
}

// Register registers a new operator
func (s *AuthService) Register(ctx context.Context, req *models.RegisterRequest) (*models.AuthResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if violations := utils.ValidateStruct(req); len(violations) > 0 {
		return nil, apperror.Validation("Validation failed", violations...)
	}

	taken, err := s.userRepo.CredentialsTaken(ctx, req.Username, req.Email)
	if err != nil {
		return nil, apperror.Internal("check credentials", err)
	}
	if taken {
		return nil, apperror.Conflict("Username or email already exists")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.Internal("hash password", err)
	}

	user := &models.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.Conflict("Username or email already exists")
		}
		return nil, apperror.Internal("create user", err)
	}

	logrus.Infof("Operator %s registered", user.Username)
	return s.generateAuthResponse(ctx, user)
}

// Login authenticates an operator by username or email
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Unauthorized("invalid credentials")
		}
		return nil, apperror.Internal("get user", err)
	}

	if !user.IsActive {
		return nil, apperror.Unauthorized("account is deactivated")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperror.Unauthorized("invalid credentials")
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		logrus.Warnf("Failed to update last login for %s: %v", user.ID, err)
	}

	return s.generateAuthResponse(ctx, user)
}

// RefreshToken rotates a refresh token into a new token pair
func (s *AuthService) RefreshToken(ctx context.Context, refreshTokenStr string) (*models.AuthResponse, error) {
	refreshToken, err := s.refreshTokenRepo.GetByToken(ctx, refreshTokenStr)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Unauthorized("invalid refresh token")
		}
		return nil, apperror.Internal("get refresh token", err)
	}

	if refreshToken.ExpiresAt.Before(time.Now()) {
		s.refreshTokenRepo.RevokeToken(ctx, refreshTokenStr)
		return nil, apperror.Unauthorized("refresh token expired")
	}

	user, err := s.userRepo.GetByID(ctx, refreshToken.UserID)
	if err != nil {
		return nil, apperror.Unauthorized("user not found")
	}
	if !user.IsActive {
		return nil, apperror.Unauthorized("account is deactivated")
	}

	if err := s.refreshTokenRepo.RevokeToken(ctx, refreshTokenStr); err != nil {
		return nil, apperror.Internal("revoke refresh token", err)
	}

	return s.generateAuthResponse(ctx, user)
}

// Logout revokes one refresh token, or every session of the user when none is given
func (s *AuthService) Logout(ctx context.Context, refreshTokenStr string, userID string) error {
	if refreshTokenStr != "" {
		if err := s.refreshTokenRepo.RevokeToken(ctx, refreshTokenStr); err != nil {
			return apperror.Internal("revoke refresh token", err)
		}
		return nil
	}
	if err := s.userRepo.IncrementTokenVersion(ctx, userID); err != nil {
		return apperror.Internal("increment token version", err)
	}
	if err := s.refreshTokenRepo.RevokeAllUserTokens(ctx, userID); err != nil {
		return apperror.Internal("revoke all refresh tokens", err)
	}
	return nil
}

// ValidateToken validates and parses a JWT access token
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*models.TokenInfo, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, apperror.Unauthorized("invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, apperror.Unauthorized("invalid token claims")
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperror.Unauthorized("user not found")
	}
	if !user.IsActive {
		return nil, apperror.Unauthorized("account is deactivated")
	}
	if claims.TokenVersion != user.TokenVersion {
		return nil, apperror.Unauthorized("token version mismatch")
	}

	return &models.TokenInfo{
		UserID:       claims.UserID,
		Username:     claims.Username,
		TokenVersion: claims.TokenVersion,
		ExpiresAt:    claims.ExpiresAt.Time,
	}, nil
}

// GetProfile returns the operator's account
func (s *AuthService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("User", userID)
		}
		return nil, apperror.Internal("get user", err)
	}
	return user, nil
}

// ChangePassword changes the operator's password and ends every other session
func (s *AuthService) ChangePassword(ctx context.Context, userID string, currentPassword, newPassword string) error {
	if v := utils.ValidateStruct(models.ChangePasswordRequest{CurrentPassword: currentPassword, NewPassword: newPassword}); len(v) > 0 {
		return apperror.Validation("Validation failed", v...)
	}

	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return apperror.Unauthorized("current password is incorrect")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return apperror.Internal("hash password", err)
	}

	user.PasswordHash = string(hashedPassword)
	user.TokenVersion++
	if err := s.userRepo.Update(ctx, user); err != nil {
		return apperror.Internal("update user", err)
	}
	if err := s.refreshTokenRepo.RevokeAllUserTokens(ctx, userID); err != nil {
		logrus.Warnf("Failed to revoke refresh tokens of %s: %v", userID, err)
	}
	return nil
}

// generateAuthResponse generates access and refresh tokens for a user
func (s *AuthService) generateAuthResponse(ctx context.Context, user *models.User) (*models.AuthResponse, error) {
	accessToken, err := s.generateAccessToken(user)
	if err != nil {
		return nil, apperror.Internal("generate access token", err)
	}

	refreshToken, err := s.generateRefreshToken(ctx, user)
	if err != nil {
		return nil, apperror.Internal("generate refresh token", err)
	}

	return &models.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTokenTTL.Seconds()),
		User:         *user,
	}, nil
}

// generateAccessToken generates a JWT access token
func (s *AuthService) generateAccessToken(user *models.User) (string, error) {
	now := time.Now()
	claims := &models.JWTClaims{
		UserID:       user.ID,
		Username:     user.Username,
		TokenVersion: user.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// generateRefreshToken generates a refresh token and stores it in the database
func (s *AuthService) generateRefreshToken(ctx context.Context, user *models.User) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	token := hex.EncodeToString(tokenBytes)

	refreshToken := &models.RefreshToken{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(s.refreshTokenTTL),
	}
	if err := s.refreshTokenRepo.Create(ctx, refreshToken); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}
	return token, nil
}
