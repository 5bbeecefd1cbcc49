package archive

import (
	"cmp"
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"chatlens/pkg/chatlog"
)

const (
	inboxDirName = "inbox"
	shardPattern = "message_*.json"
)

// Store is a read-only view over extracted archives laid out as
// <root>/<access_code>/inbox/<conversation_id>/message_N.json.
type Store struct {
	guard *Guard
	log   *slog.Logger
}

// NewStore creates a store reading below the guard's root.
func NewStore(guard *Guard, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}

	return &Store{guard: guard, log: log.With("component", "archive.store")}
}

// Root returns the data root the store reads from.
func (s *Store) Root() string {
	return s.guard.Root()
}

// ListConversations returns the conversations of one access code sorted by
// case-insensitive title. Shared conversations (symlinks) whose target can no
// longer be read are skipped.
func (s *Store) ListConversations(ctx context.Context, code string) ([]chatlog.ConversationSummary, error) {
	inbox, err := s.guard.ResolvePath(code, inboxDirName)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(inbox)
	if err != nil {
		return nil, chatlog.StorageError(err, "list inbox")
	}

	summaries := make([]chatlog.ConversationSummary, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		shared := entry.Type()&fs.ModeSymlink != 0
		if !entry.IsDir() && !shared {
			continue
		}

		summary, ok, err := s.readSummary(code, entry.Name())
		if err != nil {
			if shared {
				s.log.Warn("Skipping unreadable shared conversation", "path", s.guard.RelPath(filepath.Join(inbox, entry.Name())), "error", err)
				continue
			}
			return nil, err
		}
		if ok {
			summaries = append(summaries, summary)
		}
	}

	slices.SortStableFunc(summaries, func(a chatlog.ConversationSummary, b chatlog.ConversationSummary) int {
		if c := cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	return summaries, nil
}

func (s *Store) readSummary(code string, id string) (chatlog.ConversationSummary, bool, error) {
	dir, err := s.guard.ResolvePath(code, inboxDirName, id)
	if err != nil {
		return chatlog.ConversationSummary{}, false, err
	}

	info, err := os.Stat(dir)
	if err != nil {
		return chatlog.ConversationSummary{}, false, chatlog.StorageError(err, "stat conversation")
	}
	if !info.IsDir() {
		return chatlog.ConversationSummary{}, false, nil
	}

	files, err := shardFiles(dir)
	if err != nil {
		return chatlog.ConversationSummary{}, false, err
	}
	if len(files) == 0 {
		return chatlog.ConversationSummary{}, false, nil
	}

	data, err := os.ReadFile(files[0])
	if err != nil {
		return chatlog.ConversationSummary{}, false, chatlog.StorageError(err, filepath.Base(files[0]))
	}

	shard, err := chatlog.DecodeHeader(data)
	if err != nil {
		return chatlog.ConversationSummary{}, false, err
	}

	conv := chatlog.Assemble(id, []chatlog.Shard{shard})
	return conv.ConversationSummary, true, nil
}

// LoadShards reads every shard of a conversation in shard-number order. A
// shard that disappears between listing and reading fails the whole load.
func (s *Store) LoadShards(ctx context.Context, code string, conversationID string) ([][]byte, error) {
	dir, err := s.guard.ResolvePath(code, inboxDirName, conversationID)
	if err != nil {
		return nil, err
	}

	files, err := shardFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, chatlog.Errorf(chatlog.ErrorStorageUnavailable, "conversation %s has no message shards", conversationID)
	}

	docs := make([][]byte, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := os.ReadFile(file)
		if err != nil {
			return nil, chatlog.StorageError(err, filepath.Base(file))
		}
		docs = append(docs, data)
	}

	s.log.Debug("Loaded conversation shards", "path", s.guard.RelPath(dir), "shards", len(docs))
	return docs, nil
}

// LoadConversation reads, decodes and normalizes one conversation.
func (s *Store) LoadConversation(ctx context.Context, code string, conversationID string) (chatlog.Conversation, error) {
	docs, err := s.LoadShards(ctx, code, conversationID)
	if err != nil {
		return chatlog.Conversation{}, err
	}

	shards, err := chatlog.DecodeShards(docs)
	if err != nil {
		return chatlog.Conversation{}, err
	}

	return chatlog.Assemble(conversationID, shards), nil
}

// shardFiles lists message_N.json files ordered by N, so message_10 follows
// message_9.
func shardFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, shardPattern))
	if err != nil {
		return nil, chatlog.StorageError(err, "list shards")
	}

	slices.SortFunc(files, func(a string, b string) int {
		na, okA := shardNumber(a)
		nb, okB := shardNumber(b)
		switch {
		case okA && okB && na != nb:
			return cmp.Compare(na, nb)
		case okA != okB:
			if okA {
				return -1
			}
			return 1
		}
		return cmp.Compare(a, b)
	})

	return files, nil
}

func shardNumber(path string) (int, bool) {
	name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), "message_"), ".json")
	n, err := strconv.Atoi(name)
	if err != nil {
		return 0, false
	}

	return n, true
}
