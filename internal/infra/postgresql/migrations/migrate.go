package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/mkarlsson/invoice-relay/internal/repository"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		createBatchesTable(),
		createBatchItemsTable(),
	})
	return m.Migrate()
}

func createBatchesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_batches",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.BatchModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_batches_started_at ON batches (started_at)`,
				`CREATE INDEX IF NOT EXISTS idx_batches_municipality_started ON batches (municipality, started_at)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.BatchModel{})
		},
	}
}

func createBatchItemsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_batch_items",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ItemModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_batch_items_status ON batch_items (status)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ItemModel{})
		},
	}
}
