package main

import (
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/utsushi/internal/catalog"
	"github.com/hyperjump/utsushi/internal/config"
	"github.com/hyperjump/utsushi/internal/feature"
	"github.com/hyperjump/utsushi/internal/pipeline"
	"github.com/hyperjump/utsushi/internal/search"
	"github.com/hyperjump/utsushi/internal/storage"
	"github.com/hyperjump/utsushi/internal/vector"
)

// Components holds initialized services.
type Components struct {
	Extractor   feature.Extractor
	VectorIndex vector.VectorIndex
	Ledger      *storage.Ledger
	Catalog     *catalog.Catalog
	Engine      *search.Engine
	Local       *pipeline.LocalBuilder
	Remote      *pipeline.RemoteBuilder

	featureCache *feature.BadgerCache
}

// Close releases every component that holds a resource.
func (c *Components) Close() {
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
	if c.Ledger != nil {
		_ = c.Ledger.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.Extractor != nil {
		_ = c.Extractor.Close()
	}
	if c.featureCache != nil {
		_ = c.featureCache.Close()
	}
}

type initOptions struct {
	// skipLoad starts from an empty index instead of the persisted one.
	skipLoad bool
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, opts initOptions) (_ *Components, err error) {
	c := &Components{}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	inner, model := newExtractor(cfg, logger)
	caches := []feature.Cache{feature.NewLRUCache(cfg.Extractor.CacheSize)}
	if cfg.Storage.CachePath != "" {
		c.featureCache, err = feature.NewBadgerCache(feature.BadgerCacheOptions{
			Dir:    cfg.Storage.CachePath,
			Model:  model,
			Logger: logger,
		})
		if err != nil {
			_ = inner.Close()
			return nil, fmt.Errorf("failed to open feature cache: %w", err)
		}
		caches = append(caches, c.featureCache)
	}
	c.Extractor = feature.NewCachedExtractor(inner, caches...)

	var indexOpts []vector.Option
	if cfg.Storage.MetadataPath != "" {
		indexOpts = append(indexOpts, vector.WithMetadataPath(cfg.Storage.MetadataPath))
	}
	dims := c.Extractor.Dimensions()
	c.VectorIndex, err = vector.NewVectorIndex(cfg.Index.Type, dims, indexOpts...)
	if err != nil {
		if cfg.Index.Type == string(vector.IndexTypeFlat) {
			return nil, fmt.Errorf("failed to initialize vector index: %w", err)
		}
		logger.Warn("failed to create vector index, falling back to flat",
			zap.String("requested_type", cfg.Index.Type),
			zap.Error(err))
		c.VectorIndex, err = vector.NewVectorIndex(string(vector.IndexTypeFlat), dims, indexOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vector index: %w", err)
		}
	}
	if !opts.skipLoad {
		if err = c.VectorIndex.Load(cfg.Storage.IndexPath); err != nil {
			return nil, fmt.Errorf("failed to load index %s: %w", cfg.Storage.IndexPath, err)
		}
	}
	logger.Info("vector index initialized",
		zap.String("type", c.VectorIndex.Type()),
		zap.Int("dimensions", dims),
		zap.Int("size", c.VectorIndex.Size()),
		zap.Bool("faiss_available", vector.IsFAISSAvailable()))

	c.Ledger, err = storage.NewLedger(cfg.Storage.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ledger: %w", err)
	}
	c.Catalog, err = catalog.Open(cfg.Storage.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}

	writeLock := &sync.Mutex{}
	pipelineOpts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithRecorder(c.Ledger),
		pipeline.WithIndexPath(cfg.Storage.IndexPath),
		pipeline.WithExtensions(cfg.Dataset.Extensions),
		pipeline.WithWorkers(cfg.Remote.Workers),
		pipeline.WithWriteLock(writeLock),
	}
	c.Local = pipeline.NewLocalBuilder(c.VectorIndex, c.Extractor, pipelineOpts...)
	fetcher := pipeline.NewHTTPFetcher(cfg.Remote.FetchTimeout, cfg.Remote.MaxBytes, cfg.Remote.UserAgent)
	c.Remote = pipeline.NewRemoteBuilder(c.VectorIndex, c.Extractor, c.Catalog, fetcher, pipelineOpts...)

	c.Engine = search.NewEngine(c.VectorIndex, c.Extractor,
		search.WithLogger(logger),
		search.WithWriteLock(writeLock),
		search.WithRemoteIndexer(c.Remote, cfg.Remote.MaxResults),
		search.WithIndexPath(cfg.Storage.IndexPath, cfg.Storage.MetadataPath),
		search.WithLimits(cfg.Search.DefaultK, cfg.Search.MaxK),
		search.WithRunLister(c.Ledger),
	)
	return c, nil
}

// newExtractor returns the configured extractor and a model name for cache
// records. ONNX falls back to the colour histogram when the runtime or model
// is unavailable.
func newExtractor(cfg *config.Config, logger *zap.Logger) (feature.Extractor, string) {
	if cfg.Extractor.Type == "onnx" {
		onnx, err := feature.NewONNXExtractor(feature.ONNXConfig{
			ModelPath:  cfg.Extractor.ModelPath,
			InputName:  cfg.Extractor.InputName,
			OutputName: cfg.Extractor.OutputName,
			Dimensions: cfg.Extractor.Dimensions,
			ImageSize:  cfg.Extractor.ImageSize,
		})
		if err == nil {
			return onnx, "onnx:" + filepath.Base(cfg.Extractor.ModelPath)
		}
		logger.Warn("ONNX extractor unavailable, falling back to colour histogram",
			zap.String("model_path", cfg.Extractor.ModelPath),
			zap.Error(err))
	}
	hist, err := feature.NewHistogramExtractor(cfg.Extractor.HistogramBins)
	if err != nil {
		logger.Warn("invalid histogram bins, using 8", zap.Int("bins", cfg.Extractor.HistogramBins), zap.Error(err))
		hist, _ = feature.NewHistogramExtractor(8)
		return hist, "histogram:8"
	}
	return hist, fmt.Sprintf("histogram:%d", cfg.Extractor.HistogramBins)
}
