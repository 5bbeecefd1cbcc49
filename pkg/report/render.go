package report

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"chatlens/pkg/analytics"
	"chatlens/pkg/chatlog"
)

const timestampLayout = "2006-01-02 15:04:05"

// Conversations renders a conversation listing as a table.
func Conversations(code string, conversations []chatlog.ConversationSummary) string {
	th := defaultTheme()

	rows := make([][]string, 0, len(conversations))
	for _, conv := range conversations {
		rows = append(rows, []string{conv.ID, conv.Title, participantNames(conv.Participants)})
	}

	header := th.header.Render(fmt.Sprintf("Conversations for %s", code))
	if len(rows) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, header, th.muted.Render("no conversations"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, renderTable(th, []string{"ID", "Title", "Participants"}, rows))
}

// Analysis renders a full statistics report.
func Analysis(result *analytics.Result) string {
	th := defaultTheme()
	parts := []string{
		th.header.Render(result.Conversation.Title),
		th.headerMeta.Render(participantNames(result.Conversation.Participants)),
	}

	parts = append(parts, th.section.Render("Totals"), field(th, "Messages", strconv.Itoa(result.TotalMessages)),
		field(th, "Attachments", strconv.Itoa(result.Attachments)),
		field(th, "Average per day", strconv.FormatFloat(result.OverallAvgPerDay, 'f', 2, 64)),
	)
	if result.Oldest != nil && result.Latest != nil {
		parts = append(parts, field(th, "Range", fmt.Sprintf("%s to %s", Timestamp(result.Oldest.TimestampMs), Timestamp(result.Latest.TimestampMs))))
	}
	if len(result.MessagesBySender) > 0 {
		parts = append(parts, renderTable(th, []string{"Sender", "Messages", "Attachments"}, senderRows(result.Summary)))
	}

	parts = append(parts, th.section.Render("Busiest stretch"), densityLine(th, result.MaxDensity))

	parts = append(parts, th.section.Render("Gaps between messages"))
	parts = append(parts, latencyLines(th, result.Gaps)...)
	parts = append(parts, th.section.Render("Response times"))
	parts = append(parts, latencyLines(th, result.Responses)...)

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// Frequencies renders a ranked term table.
func Frequencies(title string, frequencies []analytics.Frequency) string {
	th := defaultTheme()
	header := th.section.Render(title)
	if len(frequencies) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, header, th.muted.Render("nothing to rank"))
	}

	rows := make([][]string, 0, len(frequencies))
	for i, freq := range frequencies {
		rows = append(rows, []string{strconv.Itoa(i + 1), freq.Term, strconv.Itoa(freq.Count)})
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, renderTable(th, []string{"#", "Term", "Count"}, rows))
}

// ParticipantWindow renders one participant window line.
func ParticipantWindow(window analytics.ParticipantWindowResult, mode analytics.WindowMode) string {
	th := defaultTheme()
	label := "Most active"
	if mode == analytics.LeastActive {
		label = "Least active"
	}

	return field(th, fmt.Sprintf("%s %d-day window for %s", label, window.Days, window.Participant),
		fmt.Sprintf("%d messages, %s to %s", window.Count, Timestamp(window.StartMs), Timestamp(window.EndMs)))
}

// Timestamp formats epoch milliseconds as UTC.
func Timestamp(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(timestampLayout)
}

// Elapsed formats a millisecond span with day granularity for long gaps.
func Elapsed(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	if d < time.Second {
		return fmt.Sprintf("%dms", ms)
	}

	days := d / (24 * time.Hour)
	rest := (d % (24 * time.Hour)).Round(time.Second)
	if days == 0 {
		return rest.String()
	}
	return fmt.Sprintf("%dd %s", days, rest)
}

func densityLine(th theme, window analytics.Window) string {
	if window.Count == 0 {
		return th.muted.Render("no messages")
	}
	if window.StartMs == window.EndMs {
		return field(th, "Single message", Timestamp(window.StartMs))
	}

	perDay := float64(window.Count) / float64(window.Days)
	return field(th, fmt.Sprintf("%d messages in %d day(s)", window.Count, window.Days),
		fmt.Sprintf("%s to %s (%.1f/day)", Timestamp(window.StartMs), Timestamp(window.EndMs), perDay))
}

func latencyLines(th theme, stats analytics.LatencyStats) []string {
	if stats.Count == 0 {
		return []string{th.muted.Render("no samples")}
	}

	lines := []string{
		field(th, "Samples", strconv.Itoa(stats.Count)),
		field(th, "Average", Elapsed(int64(stats.Avg))),
		field(th, "Longest", extremeText(stats.Max)),
	}
	if shortest, ok := stats.Min.Get(); ok {
		lines = append(lines, field(th, "Shortest", extremeText(shortest)))
	} else {
		lines = append(lines, field(th, "Shortest", "undefined"))
	}

	return lines
}

func extremeText(extreme analytics.Extreme) string {
	if extreme.First == nil || extreme.Second == nil {
		return Elapsed(extreme.TimeMs)
	}

	return fmt.Sprintf("%s (%s at %s, then %s)", Elapsed(extreme.TimeMs),
		extreme.First.SenderName, Timestamp(extreme.First.TimestampMs), extreme.Second.SenderName)
}

func senderRows(summary analytics.Summary) [][]string {
	senders := make([]string, 0, len(summary.MessagesBySender))
	for sender := range summary.MessagesBySender {
		senders = append(senders, sender)
	}
	slices.SortFunc(senders, func(a string, b string) int {
		if c := cmp.Compare(summary.MessagesBySender[b], summary.MessagesBySender[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	rows := make([][]string, 0, len(senders))
	for _, sender := range senders {
		rows = append(rows, []string{
			sender,
			strconv.Itoa(summary.MessagesBySender[sender]),
			strconv.Itoa(summary.AttachmentsBySender[sender]),
		})
	}
	return rows
}

func renderTable(th theme, headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(th.tableEdge).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row int, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return th.tableHead
			}
			return th.tableCell
		}).
		String()
}

func field(th theme, label string, value string) string {
	return th.label.Render(label+": ") + th.value.Render(value)
}

func participantNames(participants []chatlog.Participant) string {
	names := make([]string, 0, len(participants))
	for _, participant := range participants {
		names = append(names, participant.Name)
	}
	if len(names) == 0 {
		return "no participants listed"
	}
	return strings.Join(names, ", ")
}
