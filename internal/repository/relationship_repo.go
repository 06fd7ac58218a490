package repository

import (
	"context"

	"github.com/kursadbilgin/pair-notify/internal/domain"
	"gorm.io/gorm"
)

type RelationshipRepository interface {
	ListAll(ctx context.Context) ([]domain.Relationship, error)
}

type GormRelationshipRepo struct {
	db *gorm.DB
}

func NewGormRelationshipRepo(db *gorm.DB) *GormRelationshipRepo {
	return &GormRelationshipRepo{db: db}
}

func (r *GormRelationshipRepo) ListAll(ctx context.Context) ([]domain.Relationship, error) {
	var models []RelationshipModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	relationships := make([]domain.Relationship, 0, len(models))
	for i := range models {
		relationships = append(relationships, *relationshipModelToDomain(&models[i]))
	}
	return relationships, nil
}
