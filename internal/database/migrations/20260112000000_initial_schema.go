package migrations

import (
	"context"
	"fmt"

	"github.com/robalyx/chatguard/internal/database/types"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*types.Message)(nil),
			(*types.DetectionResult)(nil),
			(*types.ImageTrainingSample)(nil),
			(*types.AuditRecord)(nil),
			(*types.ChatBan)(nil),
			(*types.Report)(nil),
			(*types.TrustedUser)(nil),
		}

		for _, model := range models {
			_, err := db.NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to create table %T: %w", model, err)
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*types.TrustedUser)(nil),
			(*types.Report)(nil),
			(*types.ChatBan)(nil),
			(*types.AuditRecord)(nil),
			(*types.ImageTrainingSample)(nil),
			(*types.DetectionResult)(nil),
			(*types.Message)(nil),
		}

		for _, model := range models {
			_, err := db.NewDropTable().
				Model(model).
				IfExists().
				Cascade().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to drop table %T: %w", model, err)
			}
		}

		return nil
	})
}
