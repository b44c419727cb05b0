// Package catalog keeps a Bleve text index of known image locators and
// serves them as candidates for remote index builds.
package catalog

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
)

// Record describes one image the catalog can offer.
type Record struct {
	URL      string   `json:"url"`
	Title    string   `json:"title,omitempty"`
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// document is the indexed shape of a Record.
type document struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Tags     string `json:"tags"`
}

// Catalog is a Bleve-backed CandidateSource.
type Catalog struct {
	index bleve.Index
}

// Open creates or opens a catalog index at path. An empty path keeps the
// index in memory.
func Open(path string) (*Catalog, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	docMapping.AddFieldMappingsAt("category", textFieldMapping)
	docMapping.AddFieldMappingsAt("tags", textFieldMapping)
	urlFieldMapping := bleve.NewKeywordFieldMapping()
	urlFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("url", urlFieldMapping)
	im.AddDocumentMapping("image", docMapping)
	im.DefaultType = "image"
	im.DefaultMapping = docMapping

	if path == "" {
		index, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory catalog: %w", err)
		}
		return &Catalog{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open catalog: %w", openErr)
		}
		return &Catalog{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog: %w", err)
	}
	return &Catalog{index: index}, nil
}

// Add indexes records in one batch. Records are keyed by URL, so adding the
// same URL again replaces it.
func (c *Catalog) Add(ctx context.Context, records []Record) error {
	batch := c.index.NewBatch()
	for _, r := range records {
		if strings.TrimSpace(r.URL) == "" {
			return fmt.Errorf("catalog record without url")
		}
		doc := document{
			URL: r.URL,
			// Underscores are not token boundaries for the standard analyzer.
			Title:    strings.ReplaceAll(r.Title, "_", " "),
			Category: strings.ReplaceAll(r.Category, "_", " "),
			Tags:     strings.ReplaceAll(strings.Join(r.Tags, " "), "_", " "),
		}
		if err := batch.Index(r.URL, doc); err != nil {
			return fmt.Errorf("index %s: %w", r.URL, err)
		}
	}
	if err := c.index.Batch(batch); err != nil {
		return fmt.Errorf("catalog batch failed: %w", err)
	}
	return nil
}

// Import reads JSON lines of Records from r and adds them. Blank lines are skipped.
func (c *Catalog) Import(ctx context.Context, r io.Reader) (int, error) {
	var records []Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return 0, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read catalog input: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}
	if err := c.Add(ctx, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// Search returns up to max image URLs matching query, best match first.
// When the exact match finds nothing, a fuzzy match is tried.
func (c *Catalog) Search(ctx context.Context, query string, max int) ([]string, error) {
	if max <= 0 {
		max = 10
	}
	urls, err := c.search(ctx, bleve.NewMatchQuery(query), max)
	if err != nil || len(urls) > 0 {
		return urls, err
	}
	fq := bleve.NewMatchQuery(query)
	fq.SetFuzziness(1)
	return c.search(ctx, fq, max)
}

func (c *Catalog) search(ctx context.Context, q blevequery.Query, max int) ([]string, error) {
	req := bleve.NewSearchRequest(q)
	req.Size = max
	results, err := c.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("catalog search failed: %w", err)
	}
	out := make([]string, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = hit.ID
	}
	return out, nil
}

// Delete removes a URL from the catalog.
func (c *Catalog) Delete(ctx context.Context, url string) error {
	return c.index.Delete(url)
}

// Count returns the number of cataloged images.
func (c *Catalog) Count() (uint64, error) {
	return c.index.DocCount()
}

// Close closes the catalog index.
func (c *Catalog) Close() error {
	return c.index.Close()
}
