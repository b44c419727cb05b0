// Package pipeline builds the vector index from a local dataset or from
// images fetched for a text query.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/utsushi/internal/models"
)

var (
	// ErrNothingIndexed is returned by a local build when no image could be indexed.
	ErrNothingIndexed = errors.New("no image could be indexed")
	// ErrSourceUnavailable wraps a candidate source failure.
	ErrSourceUnavailable = errors.New("candidate source unavailable")
	// ErrFetchUnavailable is returned when every candidate failed at the transport level.
	ErrFetchUnavailable = errors.New("image fetching unavailable")
)

// Recorder persists build reports.
type Recorder interface {
	RecordRun(ctx context.Context, report *models.BuildReport) error
}

// Option configures a LocalBuilder or RemoteBuilder.
type Option func(*options)

type options struct {
	logger     *zap.Logger
	recorder   Recorder
	indexPath  string
	extensions []string
	workers    int
	writeLock  sync.Locker
}

func defaultOptions() options {
	return options{
		logger:     zap.NewNop(),
		extensions: []string{".jpg", ".jpeg", ".png"},
		workers:    5,
		writeLock:  &sync.Mutex{},
	}
}

// WithLogger sets a logger for progress and per-item failures.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRecorder records every finished build.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithIndexPath saves the index to path after each successful build.
func WithIndexPath(path string) Option {
	return func(o *options) { o.indexPath = path }
}

// WithExtensions sets the file extensions a local build accepts (case-insensitive).
func WithExtensions(exts []string) Option {
	return func(o *options) {
		if len(exts) > 0 {
			o.extensions = exts
		}
	}
}

// WithWorkers sets the number of concurrent fetch workers of a remote build.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithWriteLock serialises index mutations with other writers sharing lock.
func WithWriteLock(lock sync.Locker) Option {
	return func(o *options) {
		if lock != nil {
			o.writeLock = lock
		}
	}
}

func newReport(mode models.BuildMode, source string) *models.BuildReport {
	return &models.BuildReport{
		RunID:     uuid.New().String(),
		Mode:      mode,
		Source:    source,
		StartedAt: time.Now().UTC(),
	}
}

// finish stamps the duration and hands the report to the recorder, if any.
// Recording failures are logged, not returned.
func finish(ctx context.Context, o *options, report *models.BuildReport) {
	report.Duration = time.Since(report.StartedAt)
	if o.recorder != nil {
		if err := o.recorder.RecordRun(ctx, report); err != nil {
			o.logger.Warn("Failed to record build", zap.String("run_id", report.RunID), zap.Error(err))
		}
	}
	o.logger.Info("Build finished",
		zap.String("run_id", report.RunID),
		zap.String("mode", string(report.Mode)),
		zap.String("status", string(report.Status)),
		zap.Int("candidates", report.Candidates),
		zap.Int("indexed", report.Indexed),
		zap.Int("failed", report.Failed),
		zap.Int("index_size", report.IndexSize),
		zap.Duration("duration", report.Duration),
	)
}
