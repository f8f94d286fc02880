package database

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/adventkit/adventkit/internal/calendar"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillLibraryTitles = "2026-07-02_backfill_library_titles"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillLibraryTitles, apply: backfillLibraryTitles},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("library migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Early builds stored library rows without a denormalized title column; list
// views now rely on it, so recover the title from the embedded snapshot.
func backfillLibraryTitles(db *gorm.DB) error {
	var items []calendar.LibraryItem
	if err := db.Where("title = ''").Find(&items).Error; err != nil {
		return err
	}
	for _, item := range items {
		var snapshot calendar.Calendar
		if err := json.Unmarshal([]byte(item.CalendarJSON), &snapshot); err != nil {
			continue
		}
		if snapshot.Title == "" {
			continue
		}
		if err := db.Model(&calendar.LibraryItem{}).
			Where("id = ?", item.ID).
			Update("title", snapshot.Title).Error; err != nil {
			return err
		}
	}
	return nil
}
