package analytics

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/forPelevin/gomoji"

	"chatlens/pkg/chatlog"
)

// DefaultTopN is the size of token and emoji rankings.
const DefaultTopN = 10

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {}, "at": {},
	"to": {}, "for": {}, "of": {}, "with": {}, "by": {}, "from": {}, "as": {}, "is": {}, "was": {},
	"are": {}, "were": {}, "be": {}, "been": {}, "being": {}, "have": {}, "has": {}, "had": {},
	"do": {}, "does": {}, "did": {}, "will": {}, "would": {}, "could": {}, "should": {}, "may": {},
	"might": {}, "can": {}, "i": {}, "you": {}, "he": {}, "she": {}, "it": {}, "we": {}, "they": {},
	"them": {}, "their": {}, "this": {}, "that": {}, "these": {}, "those": {}, "my": {}, "your": {},
	"his": {}, "her": {}, "its": {}, "our": {}, "attachment": {},
}

// IsStopWord reports whether token is excluded from token rankings.
func IsStopWord(token string) bool {
	_, ok := stopWords[token]
	return ok
}

// Frequency is one ranked term. It serializes as a [term, count] pair.
type Frequency struct {
	Term  string
	Count int
}

func (f Frequency) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{f.Term, f.Count})
}

func (f *Frequency) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("frequency pair has %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &f.Term); err != nil {
		return err
	}

	return json.Unmarshal(pair[1], &f.Count)
}

// counter tallies terms and remembers first-encounter order for ties.
type counter struct {
	index   map[string]int
	entries []Frequency
}

func newCounter() *counter {
	return &counter{index: make(map[string]int)}
}

func (c *counter) add(term string) {
	if i, ok := c.index[term]; ok {
		c.entries[i].Count++
		return
	}

	c.index[term] = len(c.entries)
	c.entries = append(c.entries, Frequency{Term: term, Count: 1})
}

// top returns the n highest counts; equal counts keep first-encounter order.
// A negative n returns every entry.
func (c *counter) top(n int) []Frequency {
	ranked := slices.Clone(c.entries)
	slices.SortStableFunc(ranked, func(a Frequency, b Frequency) int {
		return cmp.Compare(b.Count, a.Count)
	})
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	if ranked == nil {
		ranked = []Frequency{}
	}

	return ranked
}

// Tokenize lowercases content, splits it on whitespace and strips every rune
// that is neither a letter nor a number. Empty tokens, single-rune tokens and
// stop words are dropped.
func Tokenize(content string) []string {
	fields := strings.Fields(strings.ToLower(content))
	tokens := make([]string, 0, len(fields))

	var b strings.Builder
	for _, field := range fields {
		b.Reset()
		for _, r := range field {
			if unicode.IsLetter(r) || unicode.IsNumber(r) {
				b.WriteRune(r)
			}
		}

		token := b.String()
		if utf8.RuneCountInString(token) <= 1 || IsStopWord(token) {
			continue
		}
		tokens = append(tokens, token)
	}

	return tokens
}

// TokenFrequencies ranks the topN most used tokens across all text messages.
// Attachment-only messages contribute nothing.
func TokenFrequencies(messages []chatlog.Message, topN int) []Frequency {
	counts := newCounter()
	for _, msg := range messages {
		content, ok := msg.Text()
		if !ok {
			continue
		}
		for _, token := range Tokenize(content) {
			counts.add(token)
		}
	}

	return counts.top(topN)
}

var emojiRunes = sync.OnceValue(func() map[rune]struct{} {
	set := make(map[rune]struct{})
	for _, emoji := range gomoji.AllEmojis() {
		runes := []rune(strings.TrimSuffix(emoji.Character, "\uFE0F"))
		if len(runes) == 1 {
			set[runes[0]] = struct{}{}
		}
	}
	// Skin-tone modifiers only appear inside sequences in the emoji list but
	// count as components on their own.
	for r := rune(0x1F3FB); r <= 0x1F3FF; r++ {
		set[r] = struct{}{}
	}

	return set
})

// IsEmoji reports whether r is a single-code-point emoji.
func IsEmoji(r rune) bool {
	_, ok := emojiRunes()[r]
	return ok
}

// EmojiFrequencies ranks the topN most used emoji code points. Multi-rune
// sequences (flags, skin tones, ZWJ families) count per component rune.
func EmojiFrequencies(messages []chatlog.Message, topN int) []Frequency {
	counts := newCounter()
	for _, msg := range messages {
		content, ok := msg.Text()
		if !ok {
			continue
		}
		for _, r := range content {
			if IsEmoji(r) {
				counts.add(string(r))
			}
		}
	}

	return counts.top(topN)
}

// SubstringCount sums the case-insensitive, non-overlapping occurrences of
// needle in each message. Matches never span two messages.
func SubstringCount(messages []chatlog.Message, needle string) (int, error) {
	if needle == "" {
		return 0, chatlog.NewError(chatlog.ErrorInvalidArgument, "target string required")
	}

	lowered := strings.ToLower(needle)
	total := 0
	for _, msg := range messages {
		content, ok := msg.Text()
		if !ok {
			continue
		}
		total += strings.Count(strings.ToLower(content), lowered)
	}

	return total, nil
}
