package enum

// Tier is the action class derived from an aggregate detection result.
type Tier int

const (
	// TierPass takes no action.
	TierPass Tier = iota
	// TierReview creates a pending report for a human moderator.
	TierReview
	// TierAutoBan deletes the message and bans the user from every managed chat.
	TierAutoBan
	// TierDeleteAndNotify deletes the message and alerts chat administrators.
	TierDeleteAndNotify
)

// String returns the name of the tier.
func (t Tier) String() string {
	switch t {
	case TierPass:
		return "Pass"
	case TierReview:
		return "Review"
	case TierAutoBan:
		return "AutoBan"
	case TierDeleteAndNotify:
		return "DeleteAndNotify"
	default:
		return "Unknown"
	}
}

// ReportStatus tracks the lifecycle of a pending review report.
type ReportStatus int

const (
	// ReportStatusPending is waiting for a moderator.
	ReportStatusPending ReportStatus = iota
	// ReportStatusConfirmed was confirmed as spam by a moderator.
	ReportStatusConfirmed
	// ReportStatusDismissed was dismissed by a moderator.
	ReportStatusDismissed
)

// String returns the name of the report status.
func (s ReportStatus) String() string {
	switch s {
	case ReportStatusPending:
		return "Pending"
	case ReportStatusConfirmed:
		return "Confirmed"
	case ReportStatusDismissed:
		return "Dismissed"
	default:
		return "Unknown"
	}
}
