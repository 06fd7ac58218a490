package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/pair-notify/internal/repository"
	"gorm.io/gorm"
)

func createRelationshipsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_relationships",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.RelationshipModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.RelationshipModel{})
		},
	}
}
