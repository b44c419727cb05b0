package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/utsushi/internal/feature"
	"github.com/hyperjump/utsushi/internal/models"
	"github.com/hyperjump/utsushi/internal/vector"
)

// LocalBuilder indexes images from a dataset directory laid out as one
// subdirectory per category.
type LocalBuilder struct {
	index     vector.VectorIndex
	extractor feature.Extractor
	opts      options
}

// NewLocalBuilder creates a builder that extracts with extractor and writes to index.
func NewLocalBuilder(index vector.VectorIndex, extractor feature.Extractor, opts ...Option) *LocalBuilder {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &LocalBuilder{index: index, extractor: extractor, opts: o}
}

// Build extracts every accepted image under root/<category> and replaces the
// index contents with them in one bulk insert, then saves. Identifiers are
// slash-separated paths relative to root. Per-file failures are recorded in
// the report; Build fails with ErrNothingIndexed only when no file succeeds,
// in which case the index is left untouched.
func (b *LocalBuilder) Build(ctx context.Context, root string, categories []string) (*models.BuildReport, error) {
	report := newReport(models.BuildModeLocal, root)
	absRoot, err := checkDir(root)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, category := range categories {
		dir := filepath.Join(absRoot, category)
		found, err := b.listImages(dir)
		if err != nil {
			if os.IsNotExist(err) {
				b.opts.logger.Warn("Category not found", zap.String("category", category), zap.String("path", dir))
				continue
			}
			return nil, fmt.Errorf("list category %s: %w", category, err)
		}
		b.opts.logger.Info("Scanned category", zap.String("category", category), zap.Int("images", len(found)))
		paths = append(paths, found...)
	}
	report.Candidates = len(paths)

	vectors, ids := b.extractAll(ctx, absRoot, paths, report)
	if len(vectors) == 0 {
		report.Status = models.StatusNothingIndexed
		report.IndexSize = b.index.Size()
		finish(ctx, &b.opts, report)
		return report, fmt.Errorf("%w: %d candidates under %s", ErrNothingIndexed, report.Candidates, root)
	}

	b.opts.writeLock.Lock()
	err = b.replace(ctx, vectors, ids)
	report.IndexSize = b.index.Size()
	b.opts.writeLock.Unlock()
	if err != nil {
		report.Status = models.StatusFailed
		finish(ctx, &b.opts, report)
		return report, err
	}

	report.Indexed = len(vectors)
	report.Status = models.StatusIndexed
	finish(ctx, &b.opts, report)
	return report, nil
}

// replace swaps the index contents for the new batch. The batch is checked
// before anything is cleared; if Add or Save still fails, the persisted index
// is reloaded so memory and disk agree again.
func (b *LocalBuilder) replace(ctx context.Context, vectors [][]float32, ids []string) error {
	if err := vector.ValidateBatch(vectors, ids, b.index.Dimensions()); err != nil {
		return fmt.Errorf("failed to index vectors: %w", err)
	}
	if err := b.index.Clear(); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}
	err := b.index.Add(ctx, vectors, ids)
	if err != nil {
		err = fmt.Errorf("failed to index vectors: %w", err)
	} else {
		err = b.save()
	}
	if err != nil {
		b.restore()
	}
	return err
}

func (b *LocalBuilder) restore() {
	if b.opts.indexPath == "" {
		return
	}
	if err := b.index.Load(b.opts.indexPath); err != nil {
		b.opts.logger.Error("Failed to restore index after failed build",
			zap.String("path", b.opts.indexPath), zap.Error(err))
	}
}

// IndexFiles appends the given files, which must live under root, to the
// index and saves it. Files whose identifier is already indexed are skipped;
// the index is append-only, so a rewritten image keeps its old vector until
// the next Build. Unlike Build, zero successes is not an error.
func (b *LocalBuilder) IndexFiles(ctx context.Context, root string, paths []string) (*models.BuildReport, error) {
	report := newReport(models.BuildModeWatch, root)
	absRoot, err := checkDir(root)
	if err != nil {
		return nil, err
	}
	indexed := make(map[string]struct{})
	for _, e := range b.index.Entries() {
		indexed[e.Identifier] = struct{}{}
	}
	var accepted []string
	for _, p := range paths {
		if !extensionAllowed(filepath.Ext(p), b.opts.extensions) {
			continue
		}
		if _, ok := indexed[identifierFor(absRoot, p)]; ok {
			b.opts.logger.Debug("Already indexed, skipping", zap.String("path", p))
			continue
		}
		accepted = append(accepted, p)
	}
	report.Candidates = len(accepted)

	vectors, ids := b.extractAll(ctx, absRoot, accepted, report)

	b.opts.writeLock.Lock()
	if len(vectors) > 0 {
		err = b.index.Add(ctx, vectors, ids)
		if err == nil {
			err = b.save()
		}
	}
	report.IndexSize = b.index.Size()
	b.opts.writeLock.Unlock()
	if err != nil {
		report.Status = models.StatusFailed
		finish(ctx, &b.opts, report)
		return report, fmt.Errorf("failed to index vectors: %w", err)
	}

	report.Indexed = len(vectors)
	switch {
	case report.Indexed > 0:
		report.Status = models.StatusIndexed
	case report.Candidates == 0:
		report.Status = models.StatusNoCandidates
	default:
		report.Status = models.StatusAllFailed
	}
	finish(ctx, &b.opts, report)
	return report, nil
}

// extractAll reads and extracts each path in order, recording failures.
func (b *LocalBuilder) extractAll(ctx context.Context, absRoot string, paths []string, report *models.BuildReport) ([][]float32, []string) {
	vectors := make([][]float32, 0, len(paths))
	ids := make([]string, 0, len(paths))
	for i, path := range paths {
		id := identifierFor(absRoot, path)
		data, err := os.ReadFile(path)
		if err != nil {
			b.opts.logger.Warn("Failed to read image", zap.String("path", path), zap.Error(err))
			report.AddFailure(id, models.StageRead, err)
			continue
		}
		vec, err := b.extractor.Extract(ctx, data)
		if err != nil {
			b.opts.logger.Warn("Failed to extract features", zap.String("path", path), zap.Error(err))
			report.AddFailure(id, models.StageExtract, err)
			continue
		}
		vectors = append(vectors, vec)
		ids = append(ids, id)
		b.opts.logger.Debug("Extracted image", zap.String("id", id), zap.Int("n", i+1), zap.Int("total", len(paths)))
	}
	return vectors, ids
}

func (b *LocalBuilder) save() error {
	if b.opts.indexPath == "" {
		return nil
	}
	if err := b.index.Save(b.opts.indexPath); err != nil {
		return fmt.Errorf("failed to save index: %w", err)
	}
	return nil
}

// listImages walks dir and returns the regular files with an accepted
// extension, in lexical order.
func (b *LocalBuilder) listImages(dir string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if !extensionAllowed(filepath.Ext(path), b.opts.extensions) {
			return nil
		}
		// Resolve symlinks so we only index regular files
		info, statErr := os.Stat(path)
		if statErr != nil || !info.Mode().IsRegular() {
			return nil
		}
		out = append(out, path)
		return nil
	})
	return out, err
}

func checkDir(dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return "", fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", absDir)
	}
	return absDir, nil
}

// identifierFor returns path relative to root with forward slashes.
func identifierFor(absRoot, path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(absRoot, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	if extNorm == "" {
		return false
	}
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
