package types

import (
	"math"
	"time"

	"github.com/robalyx/chatguard/internal/database/types/enum"
)

// Attachment references an image or file sent with a message.
type Attachment struct {
	URL         string `json:"url"`         // Where the attachment can be fetched
	ContentType string `json:"contentType"` // MIME type reported by the platform
	FileName    string `json:"fileName"`    // Original file name
}

// IsImage returns true if the attachment is an image.
func (a *Attachment) IsImage() bool {
	return a != nil && len(a.ContentType) >= 6 && a.ContentType[:6] == "image/"
}

// ContentCheckRequest is the immutable input for a single content check.
type ContentCheckRequest struct {
	MessageID            int64             // Message being checked
	ChatID               int64             // Chat the message was sent in
	UserID               int64             // User who sent the message
	Text                 string            // Message text
	Attachment           *Attachment       // Optional image or file
	IsReplyToChannelPost bool              // Message replies to a channel post
	Metadata             map[string]string // Additional platform context
}

// HasText returns true if the request carries non-blank text.
func (r *ContentCheckRequest) HasText() bool {
	for _, c := range r.Text {
		if c != ' ' && c != '\n' && c != '\t' && c != '\r' {
			return true
		}
	}
	return false
}

// HasAttachment returns true if the request carries an attachment.
func (r *ContentCheckRequest) HasAttachment() bool {
	return r.Attachment != nil
}

// CheckResult is the output of a single detector.
type CheckResult struct {
	Detector   string        `json:"detector"`   // Name of the detector
	Confidence float64       `json:"confidence"` // Confidence between 0 and 100
	Verdict    enum.Verdict  `json:"verdict"`    // Spam or clean
	IsCritical bool          `json:"isCritical"` // Whether the detector is critical in this chat
	Reason     string        `json:"reason"`     // Free-text explanation
	Weight     float64       `json:"weight"`     // Configured weight of the detector
	Failed     bool          `json:"failed"`     // Detector errored or timed out
	Duration   time.Duration `json:"duration"`   // How long the detector took
}

// Violation is a spam verdict from a critical detector.
type Violation struct {
	Detector   string  `json:"detector"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// AggregateResult combines all detector results for a request.
type AggregateResult struct {
	NetConfidence float64        // Signed weighted average of non-critical detectors
	MaxConfidence float64        // Highest non-critical spam confidence
	Results       []*CheckResult // Every dispatched detector's result
	Violations    []Violation    // Spam verdicts from critical detectors
	Skipped       bool           // Checks were skipped entirely
	SkipReason    string         // Why checks were skipped
}

// HasViolations returns true if any critical detector flagged the content.
func (a *AggregateResult) HasViolations() bool {
	return len(a.Violations) > 0
}

// Verdict returns spam for a positive net confidence and clean otherwise.
func (a *AggregateResult) Verdict() enum.Verdict {
	if a.NetConfidence > 0 {
		return enum.VerdictSpam
	}
	return enum.VerdictClean
}

// Result returns the result for the named detector, if it ran.
func (a *AggregateResult) Result(detector string) (*CheckResult, bool) {
	for _, r := range a.Results {
		if r.Detector == detector {
			return r, true
		}
	}
	return nil, false
}

// ClampConfidence bounds a detector confidence to [0, 100].
// NaN is treated as zero.
func ClampConfidence(c float64) float64 {
	if math.IsNaN(c) {
		return 0
	}
	return math.Max(0, math.Min(100, c))
}
