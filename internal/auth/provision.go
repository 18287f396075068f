package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/zulandar/graderqueue/internal/models"
	"gorm.io/gorm"
)

// PlatformOpts holds parameters for registering a platform.
type PlatformOpts struct {
	Name          string
	PublicKeyPEM  string
	RestrictPaths []string
	ForceTag      string // tag name, empty for none
}

// RegisterPlatform validates the platform key and stores a new platform.
func RegisterPlatform(ctx context.Context, db *gorm.DB, opts PlatformOpts) (*models.Platform, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("auth: platform name is required")
	}
	if _, err := jwt.ParseRSAPublicKeyFromPEM([]byte(opts.PublicKeyPEM)); err != nil {
		return nil, fmt.Errorf("auth: platform %q public key: %w", opts.Name, err)
	}

	p := models.Platform{
		Name:          opts.Name,
		PublicKey:     opts.PublicKeyPEM,
		RestrictPaths: strings.Join(opts.RestrictPaths, ","),
	}
	if opts.ForceTag != "" {
		var tag models.Tag
		if err := db.WithContext(ctx).Where("name = ?", opts.ForceTag).First(&tag).Error; err != nil {
			return nil, fmt.Errorf("auth: force tag %q: %w", opts.ForceTag, err)
		}
		p.ForceTagID = &tag.ID
	}
	if err := db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, fmt.Errorf("auth: create platform %q: %w", opts.Name, err)
	}
	return &p, nil
}

// ListPlatforms returns all platforms ordered by id.
func ListPlatforms(ctx context.Context, db *gorm.DB) ([]models.Platform, error) {
	var platforms []models.Platform
	if err := db.WithContext(ctx).Order("id").Find(&platforms).Error; err != nil {
		return nil, fmt.Errorf("auth: list platforms: %w", err)
	}
	return platforms, nil
}

// IssueToken stores a random interface token valid for ttl.
func IssueToken(ctx context.Context, db *gorm.DB, ttl time.Duration) (*models.InterfaceToken, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("auth: token ttl must be positive, got %v", ttl)
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("auth: generate token: %w", err)
	}
	tok := models.InterfaceToken{
		Token:          hex.EncodeToString(b),
		ExpirationTime: time.Now().Add(ttl),
	}
	if err := db.WithContext(ctx).Create(&tok).Error; err != nil {
		return nil, fmt.Errorf("auth: store token: %w", err)
	}
	return &tok, nil
}
