package migration_1

import (
	"database/sql"
	"fmt"

	"gorm.io/gorm"
)

// RewardRecord gains the format component of the combined score. Records
// written before it was stored keep a NULL format score.
type RewardRecord struct {
	FormatScore sql.NullFloat64
}

func Migration(db *gorm.DB) error {
	if err := db.Migrator().AddColumn(&RewardRecord{}, "FormatScore"); err != nil {
		return fmt.Errorf("error adding FormatScore column: %w", err)
	}
	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropColumn(&RewardRecord{}, "FormatScore"); err != nil {
		return fmt.Errorf("error dropping FormatScore column: %w", err)
	}
	return nil
}
