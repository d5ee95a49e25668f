// internal/services/auth_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Makeis02/landingmaj-sub003/internal/config"
	"github.com/Makeis02/landingmaj-sub003/internal/models"
	"github.com/Makeis02/landingmaj-sub003/internal/utils"
)

// AuthService authenticates storefront administrators.
type AuthService struct {
	db  *gorm.DB
	jwt config.JWTConfig
	log *logrus.Entry
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Admin       *models.AdminUser `json:"admin"`
	AccessToken string            `json:"access_token"`
	TokenType   string            `json:"token_type"`
	ExpiresIn   int               `json:"expires_in"` // in seconds
}

func NewAuthService(db *gorm.DB, jwt config.JWTConfig) *AuthService {
	return &AuthService{
		db:  db,
		jwt: jwt,
		log: logrus.WithField("component", "auth"),
	}
}

func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	var admin models.AdminUser
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).Take(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	if err := admin.CheckPassword(req.Password); err != nil {
		s.log.WithField("admin_id", admin.ID).Warn("Admin login failed")
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&admin).UpdateColumn("last_login_at", now).Error; err != nil {
		s.log.WithError(err).WithField("admin_id", admin.ID).Warn("Failed to record last login")
	}
	admin.LastLoginAt = &now

	accessToken, err := utils.GenerateJWT(admin.ID, admin.Email, s.jwt.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	return &AuthResponse{
		Admin:       &admin,
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   s.jwt.AccessTokenTTL * 3600,
	}, nil
}

func (s *AuthService) GetAdmin(ctx context.Context, id uuid.UUID) (*models.AdminUser, error) {
	var admin models.AdminUser
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &admin, nil
}
