package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kirillkom/lovdata-assistant/internal/core/domain"
)

// Reindexer re-processes every archive kept in object storage.
type Reindexer interface {
	ProcessStored(ctx context.Context) (int, error)
}

type Options struct {
	// Schedule is a five-field cron spec or a descriptor such as "@daily". Empty disables the scheduler.
	Schedule string
	Timeout  time.Duration
	// OnRun receives the outcome of every run, including manual ones.
	OnRun func(processed int, duration time.Duration, err error)
}

// ReindexScheduler periodically rebuilds the index from stored archives.
// Runs never overlap: a tick that fires while a run is active is skipped.
type ReindexScheduler struct {
	reindexer Reindexer
	opts      Options
	cron      *cron.Cron

	mu      sync.Mutex
	running bool
}

func New(reindexer Reindexer, opts Options) *ReindexScheduler {
	if opts.Timeout <= 0 {
		opts.Timeout = 6 * time.Hour
	}
	return &ReindexScheduler{
		reindexer: reindexer,
		opts:      opts,
		cron:      cron.New(cron.WithChain(cron.Recover(cronLogger{}))),
	}
}

// Start registers the schedule and starts the cron loop. It returns false when
// no schedule is configured.
func (s *ReindexScheduler) Start() (bool, error) {
	schedule := strings.TrimSpace(s.opts.Schedule)
	if schedule == "" {
		return false, nil
	}
	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return false, domain.WrapError(domain.ErrConfiguration, "reindex schedule", fmt.Errorf("parse %q: %w", schedule, err))
	}
	s.cron.Start()
	slog.Info("reindex_scheduler_started", "schedule", schedule)
	return true, nil
}

// Stop halts the cron loop and waits for a running job to finish or ctx to expire.
func (s *ReindexScheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		slog.Warn("reindex_scheduler_stop_timeout")
	}
}

func (s *ReindexScheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)
	defer cancel()
	if _, err := s.RunOnce(ctx); errors.Is(err, errAlreadyRunning) {
		slog.Warn("reindex_skipped", "reason", "previous run still active")
	}
}

var errAlreadyRunning = errors.New("reindex already running")

// RunOnce performs a full re-index now unless one is already in progress.
func (s *ReindexScheduler) RunOnce(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return 0, errAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	started := time.Now()
	slog.Info("reindex_started")
	processed, err := s.reindexer.ProcessStored(ctx)
	duration := time.Since(started)
	if err != nil {
		slog.Error("reindex_failed", "processed", processed, "duration_ms", duration.Milliseconds(), "error", err)
	} else {
		slog.Info("reindex_completed", "processed", processed, "duration_ms", duration.Milliseconds())
	}
	if s.opts.OnRun != nil {
		s.opts.OnRun(processed, duration, err)
	}
	return processed, err
}

// cronLogger routes cron's internal messages to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron_"+strings.ReplaceAll(msg, " ", "_"), keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron_"+strings.ReplaceAll(msg, " ", "_"), append(keysAndValues, "error", err)...)
}
