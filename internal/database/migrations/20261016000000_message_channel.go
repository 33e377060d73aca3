package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		// Deletion falls back to the stored channel for messages not seen since startup
		_, err := db.ExecContext(ctx, `
			ALTER TABLE messages ADD COLUMN IF NOT EXISTS channel_id bigint;
		`)
		if err != nil {
			return fmt.Errorf("failed to add message channel: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.ExecContext(ctx, `
			ALTER TABLE messages DROP COLUMN IF EXISTS channel_id;
		`)
		if err != nil {
			return fmt.Errorf("failed to drop message channel: %w", err)
		}

		return nil
	})
}
