package chatlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

type rawShard struct {
	Title        *string       `json:"title"`
	Participants []Participant `json:"participants"`
	Messages     *[]rawMessage `json:"messages"`
}

type rawMessage struct {
	SenderName  *string `json:"sender_name"`
	TimestampMs *int64  `json:"timestamp_ms"`
	Content     *string `json:"content"`
}

// DecodeShard parses one shard document. Documents that are not UTF-8, not
// JSON objects, lack a messages array or contain messages without a sender
// or timestamp fail with a malformed_input error.
func DecodeShard(data []byte) (Shard, error) {
	if !utf8.Valid(data) {
		return Shard{}, NewError(ErrorMalformedInput, "shard is not valid utf-8")
	}

	var raw rawShard
	if err := json.Unmarshal(data, &raw); err != nil {
		return Shard{}, Errorf(ErrorMalformedInput, "shard is not valid json: %v", err)
	}
	if raw.Messages == nil {
		return Shard{}, NewError(ErrorMalformedInput, "shard has no messages field")
	}

	shard := Shard{
		Participants: make([]Participant, 0, len(raw.Participants)),
		Messages:     make([]Message, 0, len(*raw.Messages)),
	}
	if raw.Title != nil {
		shard.Title = repairText(*raw.Title)
	}
	for _, participant := range raw.Participants {
		shard.Participants = append(shard.Participants, Participant{Name: repairText(participant.Name)})
	}

	for i, item := range *raw.Messages {
		if item.SenderName == nil {
			return Shard{}, Errorf(ErrorMalformedInput, "message %d has no sender_name", i)
		}
		if item.TimestampMs == nil {
			return Shard{}, Errorf(ErrorMalformedInput, "message %d has no timestamp_ms", i)
		}

		msg := Message{
			SenderName:  repairText(*item.SenderName),
			TimestampMs: *item.TimestampMs,
		}
		if item.Content != nil {
			content := repairText(*item.Content)
			msg.Content = &content
		}
		shard.Messages = append(shard.Messages, msg)
	}

	return shard, nil
}

// DecodeHeader parses only the title and participants of a shard. Listings
// use it so a conversation with bad messages is still shown and fails only
// when analyzed.
func DecodeHeader(data []byte) (Shard, error) {
	if !utf8.Valid(data) {
		return Shard{}, NewError(ErrorMalformedInput, "shard is not valid utf-8")
	}

	var raw struct {
		Title        string        `json:"title"`
		Participants []Participant `json:"participants"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Shard{}, Errorf(ErrorMalformedInput, "shard is not valid json: %v", err)
	}

	shard := Shard{
		Title:        repairText(raw.Title),
		Participants: make([]Participant, 0, len(raw.Participants)),
	}
	for _, participant := range raw.Participants {
		shard.Participants = append(shard.Participants, Participant{Name: repairText(participant.Name)})
	}

	return shard, nil
}

// DecodeShards decodes every document, stopping at the first malformed one.
// Errors name the 1-based shard position.
func DecodeShards(docs [][]byte) ([]Shard, error) {
	shards := make([]Shard, 0, len(docs))
	for i, doc := range docs {
		shard, err := DecodeShard(doc)
		if err != nil {
			var categorized *Error
			if errors.As(err, &categorized) {
				return nil, Errorf(categorized.Category, "shard %d: %s", i+1, categorized.Detail)
			}
			return nil, fmt.Errorf("shard %d: %w", i+1, err)
		}
		shards = append(shards, shard)
	}

	return shards, nil
}

// repairText undoes the export quirk where UTF-8 bytes are escaped one by one
// as \u00XX code points. Only strings made entirely of runes <= U+00FF whose
// bytes form valid multi-byte UTF-8 are rewritten.
func repairText(s string) string {
	multiByte := false
	for _, r := range s {
		if r > 0xFF {
			return s
		}
		if r >= 0x80 {
			multiByte = true
		}
	}
	if !multiByte {
		return s
	}

	raw := make([]byte, 0, len(s))
	for _, r := range s {
		raw = append(raw, byte(r))
	}
	if !utf8.Valid(raw) {
		return s
	}

	return string(raw)
}
