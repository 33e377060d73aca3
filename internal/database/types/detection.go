package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/robalyx/chatguard/internal/database/types/enum"
)

// DetectionResult is the persisted outcome of checking one message version.
// Records are never updated; re-scans of edited messages insert a new row
// with a higher EditVersion.
type DetectionResult struct {
	ID              uuid.UUID      `bun:",pk,type:uuid"`        // Unique identifier
	MessageID       int64          `bun:",notnull"`             // Message that was checked
	ChatID          int64          `bun:",notnull"`             // Chat the message was sent in
	UserID          int64          `bun:",notnull"`             // Author of the message
	DetectedAt      time.Time      `bun:",notnull"`             // When the detection ran
	NetConfidence   float64        `bun:",notnull"`             // Signed weighted confidence
	MaxConfidence   float64        `bun:",notnull"`             // Highest single spam confidence
	Verdict         enum.Verdict   `bun:",notnull"`             // Spam or clean
	DetectionMethod string         `bun:",type:text,notnull"`   // Summary of participating detectors
	UsedForTraining bool           `bun:",notnull"`             // Kept as a training example
	Actor           Actor          `bun:"embed:actor_"`         // Who produced the record
	EditVersion     int            `bun:",notnull"`             // Re-scan counter for edits
	Fingerprint     int64          `bun:",notnull"`             // SimHash of the normalized text
	Checks          []*CheckResult `bun:",type:jsonb,nullzero"` // Per-detector breakdown
}

// ImageTrainingSample is a labeled image kept for training image classifiers.
type ImageTrainingSample struct {
	ID        uuid.UUID    `bun:",pk,type:uuid"`      // Unique identifier
	MessageID int64        `bun:",notnull"`           // Message the image came from
	ChatID    int64        `bun:",notnull"`           // Chat the message was sent in
	ImageURL  string       `bun:",type:text,notnull"` // Where the image can be fetched
	Verdict   enum.Verdict `bun:",notnull"`           // Label of the sample
	Actor     Actor        `bun:"embed:actor_"`       // Who labeled the sample
	CreatedAt time.Time    `bun:",notnull"`           // When the sample was created
}
