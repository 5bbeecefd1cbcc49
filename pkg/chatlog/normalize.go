package chatlog

import (
	"cmp"
	"slices"
	"strings"
)

// Normalize merges the messages of every shard into one sequence sorted by
// timestamp. The sort is stable: messages with equal timestamps keep their
// shard order and their order within a shard.
func Normalize(shards []Shard) []Message {
	total := 0
	for _, shard := range shards {
		total += len(shard.Messages)
	}

	merged := make([]Message, 0, total)
	for _, shard := range shards {
		merged = append(merged, shard.Messages...)
	}

	slices.SortStableFunc(merged, func(a Message, b Message) int {
		return cmp.Compare(a.TimestampMs, b.TimestampMs)
	})

	return merged
}

// Assemble builds a conversation from its shards. Title and participants come
// from the first shard that declares them.
func Assemble(id string, shards []Shard) Conversation {
	conv := Conversation{
		ConversationSummary: ConversationSummary{ID: id, Participants: []Participant{}},
		Messages:            Normalize(shards),
	}

	for _, shard := range shards {
		if conv.Title == "" && strings.TrimSpace(shard.Title) != "" {
			conv.Title = shard.Title
		}
		if len(conv.Participants) == 0 && len(shard.Participants) > 0 {
			conv.Participants = slices.Clone(shard.Participants)
		}
	}
	if conv.Title == "" {
		conv.Title = id
	}

	return conv
}

// Timestamps extracts the timestamp of every message, preserving order.
func Timestamps(messages []Message) []int64 {
	timestamps := make([]int64, len(messages))
	for i, msg := range messages {
		timestamps[i] = msg.TimestampMs
	}

	return timestamps
}
