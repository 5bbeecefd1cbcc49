package chatlog

// Message is one exported chat message. A nil Content marks a non-text
// attachment (photo, sticker, voice note).
type Message struct {
	SenderName  string  `json:"sender_name"`
	TimestampMs int64   `json:"timestamp_ms"`
	Content     *string `json:"content,omitempty"`
}

// Text returns the message body and whether the message carries text.
func (m Message) Text() (string, bool) {
	if m.Content == nil {
		return "", false
	}

	return *m.Content, true
}

// IsAttachment reports whether the message has no text content.
func (m Message) IsAttachment() bool {
	return m.Content == nil
}

// Participant is a conversation member as listed in the export header.
type Participant struct {
	Name string `json:"name"`
}

// Shard is one message_N.json fragment of a conversation export.
type Shard struct {
	Title        string        `json:"title"`
	Participants []Participant `json:"participants"`
	Messages     []Message     `json:"messages"`
}

// ConversationSummary identifies a conversation in listings.
type ConversationSummary struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Participants []Participant `json:"participants"`
}

// Conversation is a fully merged and time-ordered conversation.
type Conversation struct {
	ConversationSummary
	Messages []Message `json:"-"`
}
