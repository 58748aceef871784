package migrations

import (
	"context"

	"github.com/cozy-creator/bg-remover/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		for _, table := range models.Tables() {
			if _, err := db.NewCreateTable().Model(table).IfNotExists().Exec(ctx); err != nil {
				return err
			}
		}

		_, err := db.NewCreateIndex().
			Model((*models.ProcessedImage)(nil)).
			Index("processed_images_created_at_idx").
			Column("created_at").
			IfNotExists().
			Exec(ctx)
		return err
	}, func(ctx context.Context, db *bun.DB) error {
		tables := models.Tables()
		for i := len(tables) - 1; i >= 0; i-- {
			if _, err := db.NewDropTable().Model(tables[i]).IfExists().Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}
