package enum

import "strings"

// ActionType represents a moderation action that flows through the handler pipeline.
type ActionType int

const (
	// ActionTypeDelete removes a single message.
	ActionTypeDelete ActionType = iota
	// ActionTypeWarn issues a warning to a user.
	ActionTypeWarn
	// ActionTypeTempBan bans a user from every managed chat until an expiry.
	ActionTypeTempBan
	// ActionTypeBan permanently bans a user from every managed chat.
	ActionTypeBan
	// ActionTypeMarkAsSpamAndBan deletes the message, labels it as spam and bans the user.
	ActionTypeMarkAsSpamAndBan
	// ActionTypeResetWarnings clears a user's warning counter.
	ActionTypeResetWarnings
)

// String returns the name of the action type.
func (a ActionType) String() string {
	switch a {
	case ActionTypeDelete:
		return "Delete"
	case ActionTypeWarn:
		return "Warn"
	case ActionTypeTempBan:
		return "TempBan"
	case ActionTypeBan:
		return "Ban"
	case ActionTypeMarkAsSpamAndBan:
		return "MarkAsSpamAndBan"
	case ActionTypeResetWarnings:
		return "ResetWarnings"
	default:
		return "Unknown"
	}
}

// AllActionTypes returns every action type in declaration order.
func AllActionTypes() []ActionType {
	return []ActionType{
		ActionTypeDelete,
		ActionTypeWarn,
		ActionTypeTempBan,
		ActionTypeBan,
		ActionTypeMarkAsSpamAndBan,
		ActionTypeResetWarnings,
	}
}

// ParseActionType returns the action type with the given name, ignoring case.
func ParseActionType(name string) (ActionType, bool) {
	for _, a := range AllActionTypes() {
		if strings.EqualFold(a.String(), name) {
			return a, true
		}
	}
	return 0, false
}

// IsBan returns true if the action removes the user from managed chats.
func (a ActionType) IsBan() bool {
	switch a {
	case ActionTypeTempBan, ActionTypeBan, ActionTypeMarkAsSpamAndBan:
		return true
	default:
		return false
	}
}

// FollowUp is the escalation a pipeline handler may request after a pass.
type FollowUp int

const (
	// FollowUpNone requests no further action.
	FollowUpNone FollowUp = iota
	// FollowUpBan requests a ban of the event's user.
	FollowUpBan
)

// String returns the name of the follow-up.
func (f FollowUp) String() string {
	switch f {
	case FollowUpNone:
		return "None"
	case FollowUpBan:
		return "Ban"
	default:
		return "Unknown"
	}
}

// ActionType maps the follow-up to the action it triggers.
// The second return value is false for FollowUpNone.
func (f FollowUp) ActionType() (ActionType, bool) {
	switch f {
	case FollowUpBan:
		return ActionTypeBan, true
	case FollowUpNone:
		return 0, false
	default:
		return 0, false
	}
}
