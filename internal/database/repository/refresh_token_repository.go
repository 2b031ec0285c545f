package repository

import (
	"context"
	"time"

	"github.com/onegreenvn/crm-campaign-backend/internal/models"

	"gorm.io/gorm"
)

type RefreshTokenRepository struct {
	db *gorm.DB
}

func NewRefreshTokenRepository(db *gorm.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// Create creates a new refresh token
func (r *RefreshTokenRepository) Create(ctx context.Context, refreshToken *models.RefreshToken) error {
	return r.db.WithContext(ctx).Create(refreshToken).Error
}

// GetByToken retrieves a live refresh token by token string
func (r *RefreshTokenRepository) GetByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var refreshToken models.RefreshToken
	err := r.db.WithContext(ctx).Where("token = ? AND is_revoked = ?", token, false).First(&refreshToken).Error
	if err != nil {
		return nil, err
	}
	return &refreshToken, nil
}

// RevokeToken revokes a specific refresh token
func (r *RefreshTokenRepository) RevokeToken(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).Model(&models.RefreshToken{}).Where("token = ?", token).Update("is_revoked", true).Error
}

// RevokeAllUserTokens revokes all refresh tokens for a user
func (r *RefreshTokenRepository) RevokeAllUserTokens(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Model(&models.RefreshToken{}).Where("user_id = ?", userID).Update("is_revoked", true).Error
}

// CleanupTokens deletes expired and revoked tokens and returns how many were removed
func (r *RefreshTokenRepository) CleanupTokens(ctx context.Context, now time.Time) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("expires_at < ?", now).Delete(&models.RefreshToken{})
		if result.Error != nil {
			return result.Error
		}
		deleted += result.RowsAffected

		result = tx.Where("is_revoked = ?", true).Delete(&models.RefreshToken{})
		if result.Error != nil {
			return result.Error
		}
		deleted += result.RowsAffected
		return nil
	})
	return deleted, err
}
