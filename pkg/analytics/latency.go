package analytics

import (
	"encoding/json"

	"chatlens/pkg/chatlog"
)

// undefinedJSON is how a missing minimum is serialized.
const undefinedJSON = `"undefined"`

// Extreme is one latency sample together with the message pair bounding it.
type Extreme struct {
	TimeMs int64            `json:"time"`
	First  *chatlog.Message `json:"msg1"`
	Second *chatlog.Message `json:"msg2"`
}

// OptionalExtreme is an Extreme that may be undefined. The zero value is
// undefined.
type OptionalExtreme struct {
	value   Extreme
	defined bool
}

// DefinedExtreme wraps a known sample.
func DefinedExtreme(value Extreme) OptionalExtreme {
	return OptionalExtreme{value: value, defined: true}
}

// Get returns the sample and whether it exists.
func (o OptionalExtreme) Get() (Extreme, bool) {
	return o.value, o.defined
}

// IsDefined reports whether a sample exists.
func (o OptionalExtreme) IsDefined() bool {
	return o.defined
}

func (o OptionalExtreme) MarshalJSON() ([]byte, error) {
	if !o.defined {
		return []byte(undefinedJSON), nil
	}

	return json.Marshal(o.value)
}

func (o *OptionalExtreme) UnmarshalJSON(data []byte) error {
	if string(data) == undefinedJSON || string(data) == "null" {
		*o = OptionalExtreme{}
		return nil
	}

	var value Extreme
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*o = DefinedExtreme(value)
	return nil
}

// LatencyStats summarizes a series of elapsed-time samples.
type LatencyStats struct {
	Count int             `json:"count"`
	Avg   float64         `json:"avg"`
	Max   Extreme         `json:"max"`
	Min   OptionalExtreme `json:"min"`
}

type latencyAccumulator struct {
	sum   int64
	count int
	max   Extreme
	min   Extreme
	seen  bool
}

func (a *latencyAccumulator) observe(first *chatlog.Message, second *chatlog.Message) {
	elapsed := second.TimestampMs - first.TimestampMs
	a.sum += elapsed
	a.count++

	if elapsed > a.max.TimeMs {
		a.max = Extreme{TimeMs: elapsed, First: first, Second: second}
	}
	if !a.seen || elapsed < a.min.TimeMs {
		a.min = Extreme{TimeMs: elapsed, First: first, Second: second}
		a.seen = true
	}
}

func (a *latencyAccumulator) stats() LatencyStats {
	stats := LatencyStats{Count: a.count, Max: a.max}
	if a.count > 0 {
		stats.Avg = float64(a.sum) / float64(a.count)
	}
	if a.seen {
		stats.Min = DefinedExtreme(a.min)
	}

	return stats
}

// GapStats measures the time between every pair of consecutive messages,
// regardless of sender. messages must be sorted by timestamp.
func GapStats(messages []chatlog.Message) LatencyStats {
	var acc latencyAccumulator
	for i := 1; i < len(messages); i++ {
		acc.observe(&messages[i-1], &messages[i])
	}

	return acc.stats()
}

// ResponseStats measures turn-taking latency. The anchor starts at the first
// message and only moves when a different sender speaks; that elapsed time is
// one response sample. Follow-ups from the anchor's sender are ignored.
func ResponseStats(messages []chatlog.Message) LatencyStats {
	var acc latencyAccumulator
	if len(messages) == 0 {
		return acc.stats()
	}

	anchor := &messages[0]
	for i := 1; i < len(messages); i++ {
		current := &messages[i]
		if current.SenderName == anchor.SenderName {
			continue
		}
		acc.observe(anchor, current)
		anchor = current
	}

	return acc.stats()
}
