package analytics

import (
	"slices"

	"chatlens/pkg/chatlog"
)

const (
	// MsPerDay is the length of one density window day.
	MsPerDay int64 = 86_400_000

	DefaultMaxWindowDays = 30
)

// Window is a half-open time interval [StartMs, EndMs) and the number of
// messages it contains.
type Window struct {
	StartMs int64 `json:"start_ms"`
	EndMs   int64 `json:"end_ms"`
	Count   int   `json:"count"`
	Days    int   `json:"days"`
}

// HighestDensityWindow finds the window of the given length in days holding
// the most messages. timestamps must be sorted ascending. The earliest start
// wins ties. An empty input yields the zero window.
func HighestDensityWindow(timestamps []int64, days int) Window {
	if len(timestamps) == 0 || days < 1 {
		return Window{Days: days}
	}

	windowMs := int64(days) * MsPerDay
	bestStart := 0
	maxCount := 0

	end := 0
	for start := range timestamps {
		limit := timestamps[start] + windowMs
		for end < len(timestamps) && timestamps[end] < limit {
			end++
		}
		if count := end - start; count > maxCount {
			maxCount = count
			bestStart = start
		}
	}

	startMs := timestamps[bestStart]
	return Window{
		StartMs: startMs,
		EndMs:   startMs + windowMs,
		Count:   maxCount,
		Days:    days,
	}
}

// DensityWindow searches window lengths 1..maxWindowDays and returns the
// window with the greatest count per day. The first length reaching a ratio
// wins; later lengths must be strictly denser to replace it.
func DensityWindow(messages []chatlog.Message, maxWindowDays int) Window {
	if maxWindowDays < 1 {
		maxWindowDays = DefaultMaxWindowDays
	}

	timestamps := chatlog.Timestamps(messages)
	if !slices.IsSorted(timestamps) {
		slices.Sort(timestamps)
	}

	if len(timestamps) == 1 {
		return Window{StartMs: timestamps[0], EndMs: timestamps[0], Count: 1, Days: 1}
	}

	best := Window{Days: 1}
	for days := 1; days <= maxWindowDays; days++ {
		candidate := HighestDensityWindow(timestamps, days)
		// count/days > best.Count/best.Days without floating point.
		if candidate.Count*best.Days > best.Count*days {
			best = candidate
		}
	}

	return best
}

// WindowMode selects whether ParticipantWindow looks for the busiest or the
// quietest stretch for a participant.
type WindowMode int

const (
	MostActive WindowMode = iota
	LeastActive
)

// ParseWindowMode maps "max"/"min" style input to a WindowMode.
func ParseWindowMode(input string) (WindowMode, bool) {
	switch input {
	case "", "max", "most", "most_active":
		return MostActive, true
	case "min", "least", "least_active":
		return LeastActive, true
	default:
		return MostActive, false
	}
}

// ParticipantWindowResult locates a participant's extreme window. EndMs is the
// timestamp of the last message inside the window, not the window bound.
type ParticipantWindowResult struct {
	Participant string `json:"participant"`
	StartMs     int64  `json:"start_ms"`
	EndMs       int64  `json:"end_ms"`
	Count       int    `json:"count"`
	Days        int    `json:"days"`
}

// ParticipantWindow finds, among windows of the given length that start at a
// message and fit before the last message, the one with the most (or fewest)
// messages from participant. Fewer than two messages yields the zero result.
// In most-active mode a participant with no messages in any window yields a
// zero-width window at the first message.
func ParticipantWindow(messages []chatlog.Message, days int, participant string, mode WindowMode) ParticipantWindowResult {
	result := ParticipantWindowResult{Participant: participant, Days: days}
	n := len(messages)
	if n <= 1 || days < 1 {
		return result
	}

	windowMs := int64(days) * MsPerDay
	lastMs := messages[n-1].TimestampMs

	// prefix[i] counts participant messages in messages[:i].
	prefix := make([]int, n+1)
	for i, msg := range messages {
		prefix[i+1] = prefix[i]
		if msg.SenderName == participant {
			prefix[i+1]++
		}
	}

	// A participant absent from every window leaves the most-active search
	// at the first message with a zero count.
	bestStart, bestEnd := 0, 0
	bestCount := 0
	if mode == LeastActive {
		bestCount = -1
	}
	end := 0
	for start := 0; start < n; start++ {
		startMs := messages[start].TimestampMs
		if startMs > lastMs-windowMs {
			break
		}

		if end < start {
			end = start
		}
		for end < n && messages[end].TimestampMs < startMs+windowMs {
			end++
		}

		count := prefix[end] - prefix[start]
		better := count > bestCount
		if mode == LeastActive {
			better = bestCount < 0 || count < bestCount
		}
		if !better {
			continue
		}

		bestCount = count
		bestStart = start
		bestEnd = max(start, end-1)
		if mode == LeastActive && count == 0 {
			break
		}
	}

	result.StartMs = messages[bestStart].TimestampMs
	result.EndMs = messages[bestEnd].TimestampMs
	result.Count = max(bestCount, 0)
	return result
}
