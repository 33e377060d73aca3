package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/robalyx/chatguard/internal/database/types/enum"
)

// Report is a message waiting for a human moderator's decision.
type Report struct {
	ID              uuid.UUID         `bun:",pk,type:uuid"` // Unique identifier
	MessageID       int64             `bun:",notnull"`      // Reported message
	ChatID          int64             `bun:",notnull"`      // Chat the message was sent in
	UserID          int64             `bun:",notnull"`      // Author of the message
	NetConfidence   float64           `bun:",notnull"`      // Confidence that triggered the report
	DetectionMethod string            `bun:",type:text"`    // Summary of participating detectors
	Status          enum.ReportStatus `bun:",notnull"`      // Review status
	CreatedAt       time.Time         `bun:",notnull"`      // When the report was created
	ReviewedBy      string            `bun:",nullzero"`     // Who reviewed the report
	ReviewedAt      time.Time         `bun:",nullzero"`     // When the report was reviewed
}
