package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/utsushi/internal/models"
)

// imageServer serves valid PNGs under /ok/N, garbage under /bad/N and 404 elsewhere.
func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	var images [][]byte
	for _, c := range palette(16) {
		images = append(images, pngBytes(t, c))
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var n int
		switch {
		case sscanPath(r.URL.Path, "/ok/%d", &n):
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(images[n%len(images)])
		case sscanPath(r.URL.Path, "/bad/%d", &n):
			_, _ = w.Write([]byte("<html>not an image</html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func sscanPath(path, format string, n *int) bool {
	_, err := fmt.Sscanf(path, format, n)
	return err == nil
}

// errSource always fails.
type errSource struct{}

func (errSource) Search(context.Context, string, int) ([]string, error) {
	return nil, errors.New("provider down")
}

func TestRemoteBuilder_IndexesSuccesses(t *testing.T) {
	srv := imageServer(t)
	var locators []string
	for i := 0; i < 10; i++ {
		switch i {
		case 2, 7:
			locators = append(locators, fmt.Sprintf("%s/bad/%d", srv.URL, i))
		case 5:
			locators = append(locators, fmt.Sprintf("%s/missing/%d", srv.URL, i))
		default:
			locators = append(locators, fmt.Sprintf("%s/ok/%d", srv.URL, i))
		}
	}

	idx, ext := newTestIndex(t)
	rec := &memoryRecorder{}
	b := NewRemoteBuilder(idx, ext, StaticSource(locators), NewHTTPFetcher(2*time.Second, 1<<20, "utsushi-test"),
		WithWorkers(3), WithRecorder(rec))

	report, err := b.Build(context.Background(), "cars", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, report.Candidates)
	assert.Equal(t, 7, report.Indexed)
	assert.Equal(t, 3, report.Failed)
	assert.Equal(t, models.StatusIndexed, report.Status)
	assert.Equal(t, 7, idx.Size())

	// Insertion order follows candidate order, not completion order.
	var want []string
	for i, l := range locators {
		if i != 2 && i != 5 && i != 7 {
			want = append(want, l)
		}
	}
	var got []string
	for _, e := range idx.Entries() {
		got = append(got, e.Identifier)
	}
	assert.Equal(t, want, got)

	stages := map[string]models.Stage{}
	for _, f := range report.Failures {
		stages[f.Identifier] = f.Stage
	}
	assert.Equal(t, models.StageDecode, stages[locators[2]])
	assert.Equal(t, models.StageFetch, stages[locators[5]])
	assert.Equal(t, models.StageDecode, stages[locators[7]])
	assert.Len(t, rec.reports, 1)
}

func TestRemoteBuilder_TruncatesAndDeduplicates(t *testing.T) {
	srv := imageServer(t)
	locators := StaticSource{
		srv.URL + "/ok/1",
		srv.URL + "/ok/1",
		"  ",
		srv.URL + "/ok/2",
		srv.URL + "/ok/3",
	}
	idx, ext := newTestIndex(t)
	b := NewRemoteBuilder(idx, ext, locators, NewHTTPFetcher(time.Second, 0, ""))
	report, err := b.Build(context.Background(), "q", 2)
	require.NoError(t, err)
	// StaticSource truncates to 2 before de-duplication, leaving one unique locator.
	assert.Equal(t, 1, report.Candidates)
	assert.Equal(t, 1, idx.Size())
}

func TestRemoteBuilder_NoCandidates(t *testing.T) {
	idx, ext := newTestIndex(t)
	b := NewRemoteBuilder(idx, ext, StaticSource(nil), NewHTTPFetcher(time.Second, 0, ""))
	report, err := b.Build(context.Background(), "nothing", 10)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNoCandidates, report.Status)
	assert.Equal(t, 0, report.Indexed)
}

func TestRemoteBuilder_SourceUnavailable(t *testing.T) {
	idx, ext := newTestIndex(t)
	b := NewRemoteBuilder(idx, ext, errSource{}, NewHTTPFetcher(time.Second, 0, ""))
	_, err := b.Build(context.Background(), "q", 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSourceUnavailable))
}

func TestRemoteBuilder_AllFailedIsNotAnError(t *testing.T) {
	srv := imageServer(t)
	idx, ext := newTestIndex(t)
	b := NewRemoteBuilder(idx, ext, StaticSource{srv.URL + "/bad/1", srv.URL + "/gone"}, NewHTTPFetcher(time.Second, 0, ""))
	report, err := b.Build(context.Background(), "q", 10)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAllFailed, report.Status)
	assert.Equal(t, 0, idx.Size())
}

func TestRemoteBuilder_FetchUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	idx, ext := newTestIndex(t)
	b := NewRemoteBuilder(idx, ext, StaticSource{url + "/a.png", url + "/b.png"}, NewHTTPFetcher(time.Second, 0, ""))
	report, err := b.Build(context.Background(), "q", 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetchUnavailable))
	require.NotNil(t, report)
	assert.Equal(t, models.StatusAllFailed, report.Status)
}

// gaugeFetcher tracks the peak number of concurrent fetches.
type gaugeFetcher struct {
	inner   Fetcher
	current atomic.Int32
	peak    atomic.Int32
	mu      sync.Mutex
}

func (g *gaugeFetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	n := g.current.Add(1)
	defer g.current.Add(-1)
	g.mu.Lock()
	if n > g.peak.Load() {
		g.peak.Store(n)
	}
	g.mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	return g.inner.Fetch(ctx, locator)
}

func TestRemoteBuilder_BoundedWorkers(t *testing.T) {
	srv := imageServer(t)
	var locators StaticSource
	for i := 0; i < 12; i++ {
		locators = append(locators, fmt.Sprintf("%s/ok/%d", srv.URL, i))
	}
	idx, ext := newTestIndex(t)
	g := &gaugeFetcher{inner: NewHTTPFetcher(time.Second, 0, "")}
	b := NewRemoteBuilder(idx, ext, locators, g, WithWorkers(2))

	report, err := b.Build(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Equal(t, 12, report.Indexed)
	assert.LessOrEqual(t, g.peak.Load(), int32(2))
}

func TestRemoteBuilder_BadLocatorsAreNotUnavailable(t *testing.T) {
	idx, ext := newTestIndex(t)
	b := NewRemoteBuilder(idx, ext, StaticSource{"ftp://x/a.png", "not a url at all"}, NewHTTPFetcher(time.Second, 0, ""))

	report, err := b.Build(context.Background(), "q", 10)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAllFailed, report.Status)
	assert.Equal(t, 2, report.Failed)
	for _, f := range report.Failures {
		assert.Equal(t, models.StageFetch, f.Stage)
	}
}
