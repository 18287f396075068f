package db

import (
	"fmt"

	"github.com/zulandar/graderqueue/internal/config"
	"github.com/zulandar/graderqueue/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns every GORM model owned by the grader queue schema.
func AllModels() []interface{} {
	return []interface{}{
		&models.Platform{},
		&models.InterfaceToken{},
		&models.QueueEntry{},
		&models.JobType{},
		&models.DoneEntry{},
		&models.Tag{},
		&models.ServerType{},
		&models.TypeTag{},
		&models.Server{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedCatalog upserts server types, tags and the tag assignments from
// configuration. Existing assignments are kept; seeding only adds.
func SeedCatalog(db *gorm.DB, catalog config.CatalogConfig) error {
	if len(catalog.ServerTypes) == 0 {
		return nil
	}
	return db.Transaction(func(tx *gorm.DB) error {
		for _, stc := range catalog.ServerTypes {
			st := models.ServerType{Name: stc.Name}
			if err := tx.Where(models.ServerType{Name: stc.Name}).FirstOrCreate(&st).Error; err != nil {
				return fmt.Errorf("db: seed server type %q: %w", stc.Name, err)
			}
			for _, name := range stc.Tags {
				tag := models.Tag{Name: name}
				if err := tx.Where(models.Tag{Name: name}).FirstOrCreate(&tag).Error; err != nil {
					return fmt.Errorf("db: seed tag %q: %w", name, err)
				}
				link := models.TypeTag{TypeID: st.ID, TagID: tag.ID}
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
					return fmt.Errorf("db: link tag %q to server type %q: %w", name, stc.Name, err)
				}
			}
		}
		return nil
	})
}
