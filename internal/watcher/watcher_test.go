package watcher

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/utsushi/internal/feature"
	"github.com/hyperjump/utsushi/internal/pipeline"
	"github.com/hyperjump/utsushi/internal/vector"
)

const testDebounce = 100 * time.Millisecond

// collector records batches delivered by the watcher.
type collector struct {
	mu      sync.Mutex
	batches [][]string
}

func (c *collector) onBatch(_ context.Context, paths []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, paths)
}

func (c *collector) paths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, b := range c.batches {
		out = append(out, b...)
	}
	return out
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func contains(paths []string, suffix string) bool {
	for _, p := range paths {
		if filepath.Base(p) == suffix {
			return true
		}
	}
	return false
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func startWatcher(t *testing.T, root string, c *collector) *Watcher {
	t.Helper()
	w := New(root, []string{".jpg", ".png"}, c.onBatch, WithDebounce(testDebounce))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		w.Stop()
	})
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	return w
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.png", []string{".png"}, true},
		{"/a/b.PNG", []string{".png"}, true},
		{"/a/b.jpg", []string{"png", "jpg"}, true},
		{"/a/b.txt", []string{".png"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		got := matchExtension(tt.path, tt.extensions)
		if got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestWatcher_BatchesNewImages(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "cars"), 0755); err != nil {
		t.Fatal(err)
	}
	c := &collector{}
	startWatcher(t, root, c)

	writeFile(t, filepath.Join(root, "cars", "a.png"), []byte("a"))
	writeFile(t, filepath.Join(root, "cars", "b.jpg"), []byte("b"))
	writeFile(t, filepath.Join(root, "cars", "notes.txt"), []byte("skip"))

	waitFor(t, func() bool {
		p := c.paths()
		return contains(p, "a.png") && contains(p, "b.jpg")
	})
	if contains(c.paths(), "notes.txt") {
		t.Error("notes.txt should not be reported")
	}
}

func TestWatcher_DebounceCollapsesRewrites(t *testing.T) {
	root := t.TempDir()
	c := &collector{}
	startWatcher(t, root, c)

	path := filepath.Join(root, "a.png")
	writeFile(t, path, []byte("1"))
	writeFile(t, path, []byte("12"))
	writeFile(t, path, []byte("123"))

	waitFor(t, func() bool { return contains(c.paths(), "a.png") })
	time.Sleep(3 * testDebounce)
	n := 0
	for _, p := range c.paths() {
		if filepath.Base(p) == "a.png" {
			n++
		}
	}
	if n != 1 {
		t.Errorf("expected a.png reported once, got %d times", n)
	}
}

func TestWatcher_NewDirectory(t *testing.T) {
	root := t.TempDir()
	c := &collector{}
	startWatcher(t, root, c)

	nested := filepath.Join(root, "dogs", "puppies")
	writeFile(t, filepath.Join(nested, "deep.png"), []byte("x"))

	waitFor(t, func() bool { return contains(c.paths(), "deep.png") })
}

func TestWatcher_StartCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "watch", "me")
	startWatcher(t, root, &collector{})
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root should exist after Start: %v", err)
	}
}

func TestWatcher_StopDropsPendingBatch(t *testing.T) {
	root := t.TempDir()
	c := &collector{}
	w := New(root, nil, c.onBatch, WithDebounce(time.Second))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.enqueue(filepath.Join(root, "a.png"))
	w.Stop()
	w.Stop()
	time.Sleep(50 * time.Millisecond)
	if len(c.paths()) != 0 {
		t.Errorf("expected no batch after Stop, got %v", c.paths())
	}
}

func TestWatcher_FeedsLocalBuilder(t *testing.T) {
	root := t.TempDir()
	ext, err := feature.NewHistogramExtractor(4)
	if err != nil {
		t.Fatal(err)
	}
	idx, err := vector.NewFlatIndex(ext.Dimensions())
	if err != nil {
		t.Fatal(err)
	}
	builder := pipeline.NewLocalBuilder(idx, ext)

	w := New(root, []string{".png"}, func(ctx context.Context, paths []string) {
		if _, err := builder.IndexFiles(ctx, root, paths); err != nil {
			t.Errorf("IndexFiles: %v", err)
		}
	}, WithDebounce(testDebounce))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(0, 0, color.RGBA{R: 10, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(root, "orange", "o1.png"), buf.Bytes())

	waitFor(t, func() bool { return idx.Size() == 1 })
	entries := idx.Entries()
	if entries[0].Identifier != "orange/o1.png" {
		t.Errorf("expected identifier orange/o1.png, got %q", entries[0].Identifier)
	}
}
