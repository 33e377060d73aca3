package types

import "time"

// Message is the stored copy of an inbound chat message.
type Message struct {
	ChatID        int64     `bun:",pk"`        // Chat the message was sent in
	MessageID     int64     `bun:",pk"`        // Platform message ID
	ChannelID     int64     `bun:",nullzero"`  // Channel within the chat, if the platform has them
	UserID        int64     `bun:",notnull"`   // Author of the message
	Text          string    `bun:",type:text"` // Message text
	AttachmentURL string    `bun:",nullzero"`  // Optional attachment location
	ContentType   string    `bun:",nullzero"`  // MIME type of the attachment
	IsReply       bool      `bun:",notnull"`   // Replies to a channel post
	SentAt        time.Time `bun:",notnull"`   // When the message was sent
	EditVersion   int       `bun:",notnull"`   // Number of observed edits
	UpdatedAt     time.Time `bun:",notnull"`   // When the row was last written
}

// Attachment returns the message attachment, or nil if there is none.
func (m *Message) Attachment() *Attachment {
	if m.AttachmentURL == "" {
		return nil
	}
	return &Attachment{URL: m.AttachmentURL, ContentType: m.ContentType}
}

// CheckRequest builds the content check request for this message.
func (m *Message) CheckRequest() *ContentCheckRequest {
	return &ContentCheckRequest{
		MessageID:            m.MessageID,
		ChatID:               m.ChatID,
		UserID:               m.UserID,
		Text:                 m.Text,
		Attachment:           m.Attachment(),
		IsReplyToChannelPost: m.IsReply,
	}
}
