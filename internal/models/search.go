package models

import "fmt"

// NothingIndexedMessage is reported when a search runs against an empty index.
const NothingIndexedMessage = "nothing indexed yet"

// ImageQuery is a similarity search request.
type ImageQuery struct {
	Image []byte `json:"-"`
	// Text, when set, asks the engine to index remote candidates for it before searching.
	Text string `json:"text,omitempty"`
	K    int    `json:"k,omitempty"`
}

// Validate checks the query and applies defaults: K falls back to defaultK and is capped at maxK.
func (q *ImageQuery) Validate(defaultK, maxK int) error {
	if len(q.Image) == 0 {
		return fmt.Errorf("query image cannot be empty")
	}
	if q.K <= 0 {
		q.K = defaultK
	}
	if maxK > 0 && q.K > maxK {
		q.K = maxK
	}
	return nil
}

// ImageResult is a single ranked hit. Similarity is rounded to 3 decimals.
type ImageResult struct {
	Rank       int     `json:"rank"`
	Identifier string  `json:"identifier"`
	Similarity float64 `json:"similarity"`
	Distance   float64 `json:"distance"`
}

// SearchResponse is the response for an image query.
type SearchResponse struct {
	Results   []*ImageResult `json:"results"`
	Total     int            `json:"total"`
	IndexSize int            `json:"index_size"`
	Empty     bool           `json:"empty"`
	Message   string         `json:"message,omitempty"`
	Build     *BuildReport   `json:"build,omitempty"`
	QueryTime int64          `json:"query_time_ms"`
}

// RunSummary is a recorded build as listed by the ledger.
type RunSummary struct {
	RunID     string      `json:"run_id"`
	Mode      BuildMode   `json:"mode"`
	Source    string      `json:"source"`
	Status    BuildStatus `json:"status"`
	Indexed   int         `json:"indexed"`
	Failed    int         `json:"failed"`
	StartedAt string      `json:"started_at"`
}

// IndexStatus describes the state of the served index.
type IndexStatus struct {
	IndexType      string        `json:"index_type"`
	Dimensions     int           `json:"dimensions"`
	Size           int           `json:"size"`
	IndexPath      string        `json:"index_path"`
	IndexBytes     int64         `json:"index_bytes"`
	MetadataBytes  int64         `json:"metadata_bytes"`
	DiskUsageBytes int64         `json:"disk_usage_bytes"`
	RecentRuns     []*RunSummary `json:"recent_runs,omitempty"`
}
