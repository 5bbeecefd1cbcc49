package analytics

import "chatlens/pkg/chatlog"

// Summary holds message totals for a conversation.
type Summary struct {
	TotalMessages       int              `json:"total_messages"`
	MessagesBySender    map[string]int   `json:"messages_by_sender"`
	Attachments         int              `json:"attachments"`
	AttachmentsBySender map[string]int   `json:"attachments_by_sender"`
	Oldest              *chatlog.Message `json:"oldest"`
	Latest              *chatlog.Message `json:"latest"`
	OverallAvgPerDay    float64          `json:"overall_avg_per_day"`
}

// Summarize counts messages and attachments per sender. The per-day average
// divides by the conversation span and falls back to the raw total when the
// span is one day or shorter.
func Summarize(messages []chatlog.Message) Summary {
	summary := Summary{
		TotalMessages:       len(messages),
		MessagesBySender:    make(map[string]int),
		AttachmentsBySender: make(map[string]int),
	}

	for _, msg := range messages {
		summary.MessagesBySender[msg.SenderName]++
		if msg.IsAttachment() {
			summary.Attachments++
			summary.AttachmentsBySender[msg.SenderName]++
		}
	}

	if len(messages) == 0 {
		return summary
	}

	summary.Oldest = &messages[0]
	summary.Latest = &messages[len(messages)-1]

	spanDays := float64(summary.Latest.TimestampMs-summary.Oldest.TimestampMs) / float64(MsPerDay)
	if spanDays > 1 {
		summary.OverallAvgPerDay = float64(len(messages)) / spanDays
	} else {
		summary.OverallAvgPerDay = float64(len(messages))
	}

	return summary
}
