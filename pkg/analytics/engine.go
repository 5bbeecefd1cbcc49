package analytics

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"chatlens/pkg/chatlog"
	"chatlens/pkg/metrics"
)

// DefaultWordPasscodeThreshold is the message count above which token
// frequencies need the compute passcode.
const DefaultWordPasscodeThreshold = 15000

// Loader supplies conversations to the engine.
type Loader interface {
	ListConversations(ctx context.Context, code string) ([]chatlog.ConversationSummary, error)
	LoadConversation(ctx context.Context, code string, conversationID string) (chatlog.Conversation, error)
}

// Options tunes analysis limits.
type Options struct {
	MaxWindowDays         int
	TopN                  int
	WordPasscodeThreshold int
	ComputePasscode       string
}

// Result is the full statistics report for one conversation. It is built per
// call and never cached.
type Result struct {
	Conversation chatlog.ConversationSummary `json:"conversation"`
	Summary
	MaxDensity Window       `json:"max_density"`
	Gaps       LatencyStats `json:"gaps"`
	Responses  LatencyStats `json:"responses"`
}

// Engine runs analyses against conversations supplied by a Loader. Every
// call re-reads and re-normalizes the log.
type Engine struct {
	loader Loader
	opts   Options
	log    *slog.Logger
}

// NewEngine creates an engine, filling unset options with defaults.
func NewEngine(loader Loader, opts Options, log *slog.Logger) *Engine {
	if opts.MaxWindowDays <= 0 {
		opts.MaxWindowDays = DefaultMaxWindowDays
	}
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	if opts.WordPasscodeThreshold <= 0 {
		opts.WordPasscodeThreshold = DefaultWordPasscodeThreshold
	}
	if log == nil {
		log = slog.Default()
	}

	return &Engine{loader: loader, opts: opts, log: log.With("component", "analytics.engine")}
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// Conversations lists the conversations available to an access code.
func (e *Engine) Conversations(ctx context.Context, code string) ([]chatlog.ConversationSummary, error) {
	return e.loader.ListConversations(ctx, code)
}

// Load reads and normalizes one conversation.
func (e *Engine) Load(ctx context.Context, code string, conversationID string) (chatlog.Conversation, error) {
	conv, err := e.loader.LoadConversation(ctx, code, conversationID)
	if err != nil {
		return chatlog.Conversation{}, fmt.Errorf("load conversation %s: %w", conversationID, err)
	}

	return conv, nil
}

// Analyze computes totals, the densest window and latency statistics.
func (e *Engine) Analyze(ctx context.Context, code string, conversationID string) (result *Result, err error) {
	started := time.Now()
	defer func() { observe("analyze", started, err) }()

	conv, err := e.Load(ctx, code, conversationID)
	if err != nil {
		return nil, err
	}

	result, err = e.AnalyzeConversation(ctx, conv)
	if err != nil {
		return nil, err
	}
	metrics.MessagesAnalyzed.Add(float64(result.TotalMessages))

	e.log.Debug("Conversation analyzed",
		"code", code,
		"conversation", conversationID,
		"messages", result.TotalMessages,
		"duration", time.Since(started),
	)
	return result, nil
}

// AnalyzeConversation runs the analyzers over an already loaded conversation.
// The analyzers share no state and run concurrently; cancellation is checked
// before each one starts.
func (e *Engine) AnalyzeConversation(ctx context.Context, conv chatlog.Conversation) (*Result, error) {
	result := &Result{Conversation: conv.ConversationSummary}
	messages := conv.Messages

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := groupCtx.Err(); err != nil {
			return err
		}
		result.Summary = Summarize(messages)
		return nil
	})
	group.Go(func() error {
		if err := groupCtx.Err(); err != nil {
			return err
		}
		result.MaxDensity = DensityWindow(messages, e.opts.MaxWindowDays)
		return nil
	})
	group.Go(func() error {
		if err := groupCtx.Err(); err != nil {
			return err
		}
		result.Gaps = GapStats(messages)
		result.Responses = ResponseStats(messages)
		return nil
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

// Words ranks tokens. Conversations above the passcode threshold require the
// configured compute passcode.
func (e *Engine) Words(ctx context.Context, code string, conversationID string, passcode string) (words []Frequency, err error) {
	defer func(started time.Time) { observe("words", started, err) }(time.Now())

	conv, err := e.Load(ctx, code, conversationID)
	if err != nil {
		return nil, err
	}
	if err := e.authorizeWordScan(len(conv.Messages), passcode); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return TokenFrequencies(conv.Messages, e.opts.TopN), nil
}

// Emojis ranks emoji code points.
func (e *Engine) Emojis(ctx context.Context, code string, conversationID string) (emojis []Frequency, err error) {
	defer func(started time.Time) { observe("emojis", started, err) }(time.Now())

	conv, err := e.Load(ctx, code, conversationID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return EmojiFrequencies(conv.Messages, e.opts.TopN), nil
}

// CountSubstring counts case-insensitive occurrences of needle.
func (e *Engine) CountSubstring(ctx context.Context, code string, conversationID string, needle string) (count int, err error) {
	defer func(started time.Time) { observe("count", started, err) }(time.Now())

	if needle == "" {
		return 0, chatlog.NewError(chatlog.ErrorInvalidArgument, "target string required")
	}

	conv, err := e.Load(ctx, code, conversationID)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	return SubstringCount(conv.Messages, needle)
}

// ParticipantWindow finds a participant's busiest or quietest window.
func (e *Engine) ParticipantWindow(ctx context.Context, code string, conversationID string, participant string, days int, mode WindowMode) (window ParticipantWindowResult, err error) {
	defer func(started time.Time) { observe("participant_window", started, err) }(time.Now())

	if participant == "" {
		return ParticipantWindowResult{}, chatlog.NewError(chatlog.ErrorInvalidArgument, "participant required")
	}
	if days < 1 || days > e.opts.MaxWindowDays {
		return ParticipantWindowResult{}, chatlog.Errorf(chatlog.ErrorInvalidArgument, "days must be between 1 and %d", e.opts.MaxWindowDays)
	}

	conv, err := e.Load(ctx, code, conversationID)
	if err != nil {
		return ParticipantWindowResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return ParticipantWindowResult{}, err
	}

	return ParticipantWindow(conv.Messages, days, participant, mode), nil
}

func (e *Engine) authorizeWordScan(messageCount int, passcode string) error {
	if messageCount <= e.opts.WordPasscodeThreshold {
		return nil
	}

	configured := e.opts.ComputePasscode
	if configured != "" && subtle.ConstantTimeCompare([]byte(passcode), []byte(configured)) == 1 {
		return nil
	}

	metrics.ResourceGuardRejections.Inc()
	e.log.Warn("Rejected token scan without passcode", "messages", messageCount, "threshold", e.opts.WordPasscodeThreshold)
	return chatlog.Errorf(chatlog.ErrorResourceGuard, "conversations above %d messages require the compute passcode", e.opts.WordPasscodeThreshold)
}

func observe(operation string, started time.Time, err error) {
	metrics.AnalysisDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	metrics.AnalysesTotal.WithLabelValues(operation, metrics.Outcome(chatlog.CategoryFromError(err))).Inc()
}
