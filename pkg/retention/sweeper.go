package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"chatlens/pkg/metrics"
)

const (
	KindUpload = "upload"
	KindChunk  = "chunk"
)

// Options configures what the sweeper removes and when.
type Options struct {
	DataRoot    string
	ChunkRoot   string
	MaxAge      time.Duration
	ChunkMaxAge time.Duration
	Schedule    string
}

// Report lists the directories removed by one sweep.
type Report struct {
	Uploads []string `json:"uploads"`
	Chunks  []string `json:"chunks"`
}

// Sweeper owns the lifecycle of extracted uploads: access-code directories
// under DataRoot and partial upload directories under ChunkRoot are deleted
// once their modification time is older than the configured age. Analyses
// running against a directory being removed observe a read failure.
type Sweeper struct {
	opts Options
	now  func() time.Time
	log  *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewSweeper validates the schedule and returns an idle sweeper.
func NewSweeper(opts Options, log *slog.Logger) (*Sweeper, error) {
	if opts.DataRoot == "" {
		return nil, errors.New("retention data root is required")
	}
	if opts.MaxAge <= 0 {
		return nil, fmt.Errorf("retention max age must be positive, got %s", opts.MaxAge)
	}
	if opts.Schedule != "" {
		if _, err := cron.ParseStandard(opts.Schedule); err != nil {
			return nil, fmt.Errorf("invalid retention schedule %q: %w", opts.Schedule, err)
		}
	}
	if log == nil {
		log = slog.Default()
	}

	return &Sweeper{
		opts: opts,
		now:  time.Now,
		log:  log.With("component", "retention.sweeper"),
	}, nil
}

// Sweep removes every expired directory once. Removal failures are logged,
// counted and joined into the returned error; the sweep continues past them.
func (s *Sweeper) Sweep(ctx context.Context) (Report, error) {
	var report Report
	var errs []error

	removed, err := s.sweepDir(ctx, s.opts.DataRoot, s.opts.MaxAge, KindUpload)
	report.Uploads = removed
	if err != nil {
		errs = append(errs, err)
	}

	if s.opts.ChunkRoot != "" && s.opts.ChunkMaxAge > 0 {
		removed, err := s.sweepDir(ctx, s.opts.ChunkRoot, s.opts.ChunkMaxAge, KindChunk)
		report.Chunks = removed
		if err != nil {
			errs = append(errs, err)
		}
	}

	if len(report.Uploads) > 0 || len(report.Chunks) > 0 {
		s.log.Info("Retention sweep removed directories", "uploads", len(report.Uploads), "chunks", len(report.Chunks))
	}
	return report, errors.Join(errs...)
}

func (s *Sweeper) sweepDir(ctx context.Context, root string, maxAge time.Duration, kind string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s root: %w", kind, err)
	}

	cutoff := s.now().Add(-maxAge)
	var removed []string
	var errs []error
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		// Symlinked entries are shares owned by another code and are left alone.
		if !entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			metrics.RetentionSweepErrors.Inc()
			s.log.Warn("Failed to remove expired directory", "kind", kind, "path", path, "error", err)
			errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
			continue
		}

		metrics.RetentionRemovals.WithLabelValues(kind).Inc()
		s.log.Debug("Removed expired directory", "kind", kind, "name", entry.Name(), "age", s.now().Sub(info.ModTime()).Round(time.Second))
		removed = append(removed, entry.Name())
	}

	return removed, errors.Join(errs...)
}

// Start schedules Sweep on the configured cron expression until ctx is done.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.opts.Schedule == "" {
		return errors.New("retention schedule is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return errors.New("retention sweeper already started")
	}

	c := cron.New()
	if _, err := c.AddFunc(s.opts.Schedule, func() {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("Retention sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule retention sweep: %w", err)
	}

	c.Start()
	s.cron = c
	s.log.Info("Retention sweeper started", "schedule", s.opts.Schedule, "max_age", s.opts.MaxAge, "chunk_max_age", s.opts.ChunkMaxAge)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.log.Info("Retention sweeper stopped")
}
