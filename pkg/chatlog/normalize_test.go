package chatlog

import (
	"math/rand"
	"reflect"
	"slices"
	"strconv"
	"testing"
)

func TestNormalizeSortsAcrossUnsortedShards(t *testing.T) {
	shards := []Shard{
		{Messages: []Message{msg("a", 30), msg("b", 10)}},
		{Messages: []Message{msg("c", 20), msg("d", 5)}},
	}

	got := senders(Normalize(shards))
	want := []string{"d", "b", "c", "a"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Normalize order = %v, want %v", got, want)
	}
}

func TestNormalizeIsStableOnEqualTimestamps(t *testing.T) {
	shards := []Shard{
		{Messages: []Message{msg("s1-first", 100), msg("s1-second", 100), msg("s1-early", 50)}},
		{Messages: []Message{msg("s2-first", 100), msg("s2-early", 50)}},
	}

	got := senders(Normalize(shards))
	want := []string{"s1-early", "s2-early", "s1-first", "s1-second", "s2-first"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Normalize order = %v, want %v", got, want)
	}
}

func TestNormalizeRandomInputIsSortedPermutation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 50; round++ {
		var shards []Shard
		var all []Message
		for s := 0; s < 1+rng.Intn(4); s++ {
			var shard Shard
			for i := 0; i < rng.Intn(40); i++ {
				m := msg("m"+strconv.Itoa(len(all)), int64(rng.Intn(20)))
				shard.Messages = append(shard.Messages, m)
				all = append(all, m)
			}
			shards = append(shards, shard)
		}

		got := Normalize(shards)
		if len(got) != len(all) {
			t.Fatalf("round %d: len = %d, want %d", round, len(got), len(all))
		}

		position := make(map[string]int, len(all))
		for i, m := range all {
			position[m.SenderName] = i
		}
		for i := 1; i < len(got); i++ {
			prev, cur := got[i-1], got[i]
			if prev.TimestampMs > cur.TimestampMs {
				t.Fatalf("round %d: not sorted at %d", round, i)
			}
			if prev.TimestampMs == cur.TimestampMs && position[prev.SenderName] > position[cur.SenderName] {
				t.Fatalf("round %d: tie at %d lost input order", round, i)
			}
		}
	}
}

func TestNormalizeDoesNotMutateShards(t *testing.T) {
	shards := []Shard{{Messages: []Message{msg("late", 2), msg("early", 1)}}}

	_ = Normalize(shards)

	if shards[0].Messages[0].SenderName != "late" {
		t.Fatalf("source shard was reordered: %v", senders(shards[0].Messages))
	}
}

func TestAssembleUsesFirstDeclaredTitleAndParticipants(t *testing.T) {
	shards := []Shard{
		{Messages: []Message{msg("a", 2)}},
		{Title: "Trip", Participants: []Participant{{Name: "Ana"}}, Messages: []Message{msg("b", 1)}},
		{Title: "Ignored", Participants: []Participant{{Name: "Zed"}}},
	}

	conv := Assemble("trip_123", shards)
	if conv.ID != "trip_123" || conv.Title != "Trip" {
		t.Fatalf("conversation = %+v", conv.ConversationSummary)
	}
	if len(conv.Participants) != 1 || conv.Participants[0].Name != "Ana" {
		t.Fatalf("participants = %+v", conv.Participants)
	}
	if !slices.Equal(senders(conv.Messages), []string{"b", "a"}) {
		t.Fatalf("messages = %v", senders(conv.Messages))
	}
}

func TestAssembleFallsBackToID(t *testing.T) {
	conv := Assemble("untitled_1", nil)
	if conv.Title != "untitled_1" {
		t.Fatalf("title = %q, want id fallback", conv.Title)
	}
	if len(conv.Messages) != 0 {
		t.Fatalf("messages = %d, want 0", len(conv.Messages))
	}
}

func msg(sender string, ts int64) Message {
	return Message{SenderName: sender, TimestampMs: ts}
}

func senders(messages []Message) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.SenderName)
	}

	return out
}
