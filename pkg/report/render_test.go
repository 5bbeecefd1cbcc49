package report

import (
	"strings"
	"testing"

	"chatlens/pkg/analytics"
	"chatlens/pkg/chatlog"
)

func scenarioConversation() chatlog.Conversation {
	hi, there, bye := "hi", "hi there", "bye"
	return chatlog.Conversation{
		ConversationSummary: chatlog.ConversationSummary{
			ID:           "trip_1",
			Title:        "Trip",
			Participants: []chatlog.Participant{{Name: "Ana"}, {Name: "Ben"}},
		},
		Messages: []chatlog.Message{
			{SenderName: "Ana", TimestampMs: 0, Content: &hi},
			{SenderName: "Ben", TimestampMs: 1000, Content: &there},
			{SenderName: "Ana", TimestampMs: 90_000_000, Content: &bye},
		},
	}
}

func analyze(t *testing.T, conv chatlog.Conversation) *analytics.Result {
	t.Helper()

	engine := analytics.NewEngine(nil, analytics.Options{}, nil)
	result, err := engine.AnalyzeConversation(t.Context(), conv)
	if err != nil {
		t.Fatalf("AnalyzeConversation: %v", err)
	}
	return result
}

func TestAnalysisReport(t *testing.T) {
	out := Analysis(analyze(t, scenarioConversation()))

	for _, want := range []string{
		"Trip",
		"Ana, Ben",
		"Messages: 3",
		"Range: 1970-01-01 00:00:00 to 1970-01-02 01:00:00",
		"2 messages in 1 day(s)",
		"Longest: 1d 59m59s (Ben at 1970-01-01 00:00:01, then Ana)",
		"Shortest: 1s",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}

func TestAnalysisReportSingleMessage(t *testing.T) {
	conv := scenarioConversation()
	conv.Messages = conv.Messages[:1]

	out := Analysis(analyze(t, conv))
	if !strings.Contains(out, "Single message: 1970-01-01 00:00:00") {
		t.Fatalf("expected single message window:\n%s", out)
	}
	if !strings.Contains(out, "no samples") {
		t.Fatalf("expected empty latency sections:\n%s", out)
	}
}

func TestFrequenciesTable(t *testing.T) {
	out := Frequencies("Top words", []analytics.Frequency{{Term: "hi", Count: 2}, {Term: "bye", Count: 1}})
	if !strings.Contains(out, "Top words") || !strings.Contains(out, "hi") || !strings.Contains(out, "bye") {
		t.Fatalf("unexpected table:\n%s", out)
	}
	if strings.Index(out, "hi") > strings.Index(out, "bye") {
		t.Fatalf("ranking order lost:\n%s", out)
	}

	if empty := Frequencies("Top emojis", nil); !strings.Contains(empty, "nothing to rank") {
		t.Fatalf("unexpected empty table:\n%s", empty)
	}
}

func TestConversationsTable(t *testing.T) {
	out := Conversations("code1", []chatlog.ConversationSummary{scenarioConversation().ConversationSummary})
	if !strings.Contains(out, "trip_1") || !strings.Contains(out, "Ana, Ben") {
		t.Fatalf("unexpected listing:\n%s", out)
	}
}

func TestElapsed(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{ms: 250, want: "250ms"},
		{ms: 1000, want: "1s"},
		{ms: 61_500, want: "1m2s"},
		{ms: 89_999_000, want: "1d 59m59s"},
		{ms: 2 * analytics.MsPerDay, want: "2d 0s"},
	}

	for _, tt := range tests {
		if got := Elapsed(tt.ms); got != tt.want {
			t.Fatalf("Elapsed(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}
