package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/kursadbilgin/pair-notify/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenResolver resolves a user id to the current push token.
// It returns domain.ErrTokenAbsent when the user has none.
type TokenResolver interface {
	LookupToken(ctx context.Context, uid string) (string, error)
}

type GormTokenRepo struct {
	db *gorm.DB
}

func NewGormTokenRepo(db *gorm.DB) *GormTokenRepo {
	return &GormTokenRepo{db: db}
}

func (r *GormTokenRepo) LookupToken(ctx context.Context, uid string) (string, error) {
	if strings.TrimSpace(uid) == "" {
		return "", domain.ErrTokenAbsent
	}

	var model UserModel
	err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", domain.ErrTokenAbsent
	}
	if err != nil {
		return "", err
	}

	if model.FCMToken == nil || strings.TrimSpace(*model.FCMToken) == "" {
		return "", domain.ErrTokenAbsent
	}
	return *model.FCMToken, nil
}

// SetToken registers or replaces the push token of a user. An empty token clears it.
func (r *GormTokenRepo) SetToken(ctx context.Context, uid string, token string) error {
	if strings.TrimSpace(uid) == "" {
		return domain.ErrValidation
	}

	model := UserModel{UID: uid}
	if trimmed := strings.TrimSpace(token); trimmed != "" {
		model.FCMToken = &trimmed
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uid"}},
			DoUpdates: clause.AssignmentColumns([]string{"fcm_token", "updated_at"}),
		}).
		Create(&model).Error
}
