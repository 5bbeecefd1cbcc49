package analytics

import "chatlens/pkg/chatlog"

func text(sender string, ts int64, content string) chatlog.Message {
	return chatlog.Message{SenderName: sender, TimestampMs: ts, Content: &content}
}

func attachment(sender string, ts int64) chatlog.Message {
	return chatlog.Message{SenderName: sender, TimestampMs: ts}
}

// scenarioMessages is a short three-message exchange with one long pause.
func scenarioMessages() []chatlog.Message {
	return []chatlog.Message{
		text("A", 0, "hi"),
		text("B", 1000, "hi there"),
		text("A", 90_000_000, "bye"),
	}
}
