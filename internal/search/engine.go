// Package search answers image similarity queries against the vector index.
package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/utsushi/internal/feature"
	"github.com/hyperjump/utsushi/internal/models"
	"github.com/hyperjump/utsushi/internal/pipeline"
	"github.com/hyperjump/utsushi/internal/storage"
	"github.com/hyperjump/utsushi/internal/vector"
)

// RemoteIndexer indexes remote images found for a text query.
type RemoteIndexer interface {
	Build(ctx context.Context, query string, maxResults int) (*models.BuildReport, error)
}

// RunLister lists recorded builds.
type RunLister interface {
	RecentRuns(ctx context.Context, limit int) ([]*models.RunSummary, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithWriteLock shares the lock that serialises index mutations with the builders.
func WithWriteLock(lock sync.Locker) Option {
	return func(e *Engine) {
		if lock != nil {
			e.writeLock = lock
		}
	}
}

// WithRemoteIndexer lets queries carrying text index remote candidates first.
// maxResults caps the candidates fetched per query.
func WithRemoteIndexer(r RemoteIndexer, maxResults int) Option {
	return func(e *Engine) {
		e.remote = r
		e.remoteMax = maxResults
	}
}

// WithIndexPath sets where Reset saves the emptied index and which files Status measures.
// metaPath may be empty to use the default metadata location.
func WithIndexPath(indexPath, metaPath string) Option {
	return func(e *Engine) {
		e.indexPath = indexPath
		e.metaPath = metaPath
	}
}

// WithLimits sets the default and maximum number of results per query.
func WithLimits(defaultK, maxK int) Option {
	return func(e *Engine) {
		if defaultK > 0 {
			e.defaultK = defaultK
		}
		if maxK > 0 {
			e.maxK = maxK
		}
	}
}

// WithRunLister adds recent builds to Status.
func WithRunLister(r RunLister) Option {
	return func(e *Engine) { e.runs = r }
}

// Engine runs image similarity search.
type Engine struct {
	index     vector.VectorIndex
	extractor feature.Extractor
	logger    *zap.Logger
	writeLock sync.Locker
	remote    RemoteIndexer
	remoteMax int
	runs      RunLister
	indexPath string
	metaPath  string
	defaultK  int
	maxK      int
}

// NewEngine creates a search engine over index, embedding queries with extractor.
func NewEngine(index vector.VectorIndex, extractor feature.Extractor, opts ...Option) *Engine {
	e := &Engine{
		index:     index,
		extractor: extractor,
		logger:    zap.NewNop(),
		writeLock: &sync.Mutex{},
		remoteMax: 10,
		defaultK:  10,
		maxK:      100,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search extracts the query image and returns its nearest indexed images,
// most similar first. When the query carries text and a remote indexer is
// configured, images for that text are indexed before searching. An empty
// index is not an error: the response is marked Empty.
func (e *Engine) Search(ctx context.Context, query *models.ImageQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := query.Validate(e.defaultK, e.maxK); err != nil {
		return nil, err
	}

	response := &models.SearchResponse{Results: []*models.ImageResult{}}

	if query.Text != "" && e.remote != nil {
		report, err := e.remote.Build(ctx, query.Text, e.remoteMax)
		switch {
		case errors.Is(err, pipeline.ErrFetchUnavailable):
			e.logger.Warn("Remote indexing unavailable", zap.String("query", query.Text), zap.Error(err))
		case err != nil:
			return nil, fmt.Errorf("remote indexing failed: %w", err)
		}
		response.Build = report
	}

	queryVector, err := e.extractor.Extract(ctx, query.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to extract query image: %w", err)
	}

	response.IndexSize = e.index.Size()
	if response.IndexSize == 0 {
		response.Empty = true
		response.Message = models.NothingIndexedMessage
		response.QueryTime = time.Since(startTime).Milliseconds()
		return response, nil
	}

	hits, err := e.index.Search(ctx, queryVector, query.K)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	for i, hit := range hits {
		response.Results = append(response.Results, &models.ImageResult{
			Rank:       i + 1,
			Identifier: hit.Identifier,
			Similarity: vector.RoundSimilarity(hit.Similarity),
			Distance:   hit.Distance,
		})
	}
	response.Total = len(response.Results)
	response.QueryTime = time.Since(startTime).Milliseconds()
	e.logger.Debug("Search done",
		zap.Int("k", query.K),
		zap.Int("results", response.Total),
		zap.Int64("ms", response.QueryTime),
	)
	return response, nil
}

// Reset empties the index and persists the empty state.
func (e *Engine) Reset(ctx context.Context) error {
	e.writeLock.Lock()
	defer e.writeLock.Unlock()
	if err := e.index.Clear(); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}
	if e.indexPath != "" {
		if err := e.index.Save(e.indexPath); err != nil {
			return fmt.Errorf("failed to save index: %w", err)
		}
	}
	e.logger.Info("Index reset", zap.String("path", e.indexPath))
	return nil
}

// Status describes the served index.
func (e *Engine) Status(ctx context.Context) (*models.IndexStatus, error) {
	status := &models.IndexStatus{
		IndexType:  e.index.Type(),
		Dimensions: e.index.Dimensions(),
		Size:       e.index.Size(),
		IndexPath:  e.indexPath,
	}
	if e.indexPath != "" {
		metaPath := e.metaPath
		if metaPath == "" {
			metaPath = vector.MetadataPath(e.indexPath)
		}
		usage, err := storage.MeasureIndex(e.indexPath, metaPath)
		if err != nil {
			return nil, fmt.Errorf("failed to measure index files: %w", err)
		}
		status.IndexBytes = usage.IndexBytes
		status.MetadataBytes = usage.MetadataBytes
		status.DiskUsageBytes = usage.Total()
	}
	if e.runs != nil {
		runs, err := e.runs.RecentRuns(ctx, 5)
		if err != nil {
			return nil, fmt.Errorf("failed to list builds: %w", err)
		}
		status.RecentRuns = runs
	}
	return status, nil
}
