package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/utsushi/internal/feature"
	"github.com/hyperjump/utsushi/internal/models"
	"github.com/hyperjump/utsushi/internal/vector"
)

// RemoteBuilder indexes images found for a text query: it asks a candidate
// source for locators, then fetches, validates and extracts them on a fixed
// pool of workers.
type RemoteBuilder struct {
	index     vector.VectorIndex
	extractor feature.Extractor
	source    CandidateSource
	fetcher   Fetcher
	opts      options
}

// NewRemoteBuilder creates a remote builder.
func NewRemoteBuilder(index vector.VectorIndex, extractor feature.Extractor, source CandidateSource, fetcher Fetcher, opts ...Option) *RemoteBuilder {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &RemoteBuilder{index: index, extractor: extractor, source: source, fetcher: fetcher, opts: o}
}

// outcome is the result of processing one candidate.
type outcome struct {
	vector  []float32
	failure *models.Failure
	// transport is set when the fetch never reached a server.
	transport bool
}

// Build fetches up to maxResults candidates for query and appends the ones
// that succeed, in candidate order, with a single Add. Failed candidates are
// recorded and never retried. Zero indexed items is a valid outcome reported
// through the status, except when every candidate failed to be fetched at the
// transport level, which returns ErrFetchUnavailable.
func (b *RemoteBuilder) Build(ctx context.Context, query string, maxResults int) (*models.BuildReport, error) {
	report := newReport(models.BuildModeRemote, query)

	found, err := b.source.Search(ctx, query, maxResults)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	candidates := prepareCandidates(found, maxResults)
	report.Candidates = len(candidates)
	if len(candidates) == 0 {
		report.Status = models.StatusNoCandidates
		report.IndexSize = b.index.Size()
		finish(ctx, &b.opts, report)
		return report, nil
	}

	b.opts.logger.Info("Fetching candidates",
		zap.String("query", query),
		zap.Int("candidates", len(candidates)),
		zap.Int("workers", b.opts.workers),
	)

	outcomes := make([]outcome, len(candidates))
	var g errgroup.Group
	g.SetLimit(b.opts.workers)
	for i, locator := range candidates {
		g.Go(func() error {
			outcomes[i] = b.process(ctx, locator)
			return nil
		})
	}
	_ = g.Wait()

	var (
		vectors   [][]float32
		ids       []string
		transport int
	)
	for i, o := range outcomes {
		if o.failure != nil {
			report.Failures = append(report.Failures, *o.failure)
			report.Failed++
			if o.transport {
				transport++
			}
			continue
		}
		vectors = append(vectors, o.vector)
		ids = append(ids, candidates[i])
	}

	if len(vectors) == 0 {
		report.Status = models.StatusAllFailed
		report.IndexSize = b.index.Size()
		finish(ctx, &b.opts, report)
		if transport == len(candidates) {
			return report, fmt.Errorf("%w: all %d fetches failed", ErrFetchUnavailable, transport)
		}
		return report, nil
	}

	b.opts.writeLock.Lock()
	err = b.index.Add(ctx, vectors, ids)
	if err == nil && b.opts.indexPath != "" {
		if saveErr := b.index.Save(b.opts.indexPath); saveErr != nil {
			err = fmt.Errorf("failed to save index: %w", saveErr)
		}
	}
	report.IndexSize = b.index.Size()
	b.opts.writeLock.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to index vectors: %w", err)
	}

	report.Indexed = len(vectors)
	report.Status = models.StatusIndexed
	finish(ctx, &b.opts, report)
	return report, nil
}

// process runs fetch, validate and extract for one locator.
func (b *RemoteBuilder) process(ctx context.Context, locator string) outcome {
	fail := func(stage models.Stage, err error) outcome {
		b.opts.logger.Warn("Candidate failed",
			zap.String("locator", locator),
			zap.String("stage", string(stage)),
			zap.Error(err),
		)
		return outcome{failure: &models.Failure{Identifier: locator, Stage: stage, Err: err.Error()}}
	}

	data, err := b.fetcher.Fetch(ctx, locator)
	if err != nil {
		o := fail(models.StageFetch, err)
		o.transport = isTransportFailure(err)
		return o
	}
	if _, _, err := feature.Decode(data); err != nil {
		return fail(models.StageDecode, err)
	}
	vec, err := b.extractor.Extract(ctx, data)
	if err != nil {
		return fail(models.StageExtract, err)
	}
	b.opts.logger.Debug("Candidate extracted", zap.String("locator", locator))
	return outcome{vector: vec}
}
