package enum

// Verdict is a detector's classification of a piece of content.
type Verdict int

const (
	// VerdictClean indicates the content looks legitimate.
	VerdictClean Verdict = iota
	// VerdictSpam indicates the content looks like spam or abuse.
	VerdictSpam
)

// String returns the name of the verdict.
func (v Verdict) String() string {
	switch v {
	case VerdictClean:
		return "Clean"
	case VerdictSpam:
		return "Spam"
	default:
		return "Unknown"
	}
}

// Sign returns +1 for spam and -1 for clean.
func (v Verdict) Sign() float64 {
	if v == VerdictSpam {
		return 1
	}
	return -1
}

// ContentKind describes which part of a message a detector inspects.
type ContentKind int

const (
	// ContentKindText detectors need message text.
	ContentKindText ContentKind = iota
	// ContentKindAttachment detectors need an image or file attachment.
	ContentKindAttachment
	// ContentKindAny detectors run for every message.
	ContentKindAny
)

// String returns the name of the content kind.
func (c ContentKind) String() string {
	switch c {
	case ContentKindText:
		return "Text"
	case ContentKindAttachment:
		return "Attachment"
	case ContentKindAny:
		return "Any"
	default:
		return "Unknown"
	}
}
