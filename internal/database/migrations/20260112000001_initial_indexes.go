package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.ExecContext(ctx, `
			-- Dedup candidate lookups scan the newest training samples per verdict
			CREATE INDEX IF NOT EXISTS idx_detection_results_training
			ON detection_results (verdict, detected_at DESC)
			WHERE used_for_training = true;

			CREATE INDEX IF NOT EXISTS idx_detection_results_message
			ON detection_results (chat_id, message_id, edit_version DESC);

			CREATE INDEX IF NOT EXISTS idx_detection_results_user
			ON detection_results (user_id, detected_at DESC);

			CREATE INDEX IF NOT EXISTS idx_audit_records_user
			ON audit_records (user_id, created_at DESC);

			CREATE INDEX IF NOT EXISTS idx_audit_records_event
			ON audit_records (event_id);

			CREATE INDEX IF NOT EXISTS idx_chat_bans_expires
			ON chat_bans (expires_at)
			WHERE expires_at IS NOT NULL;

			CREATE INDEX IF NOT EXISTS idx_reports_pending
			ON reports (created_at)
			WHERE status = 0;

			CREATE INDEX IF NOT EXISTS idx_image_training_samples_message
			ON image_training_samples (chat_id, message_id);
		`)
		if err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.ExecContext(ctx, `
			DROP INDEX IF EXISTS idx_detection_results_training;
			DROP INDEX IF EXISTS idx_detection_results_message;
			DROP INDEX IF EXISTS idx_detection_results_user;
			DROP INDEX IF EXISTS idx_audit_records_user;
			DROP INDEX IF EXISTS idx_audit_records_event;
			DROP INDEX IF EXISTS idx_chat_bans_expires;
			DROP INDEX IF EXISTS idx_reports_pending;
			DROP INDEX IF EXISTS idx_image_training_samples_message;
		`)
		if err != nil {
			return fmt.Errorf("failed to drop indexes: %w", err)
		}

		return nil
	})
}
