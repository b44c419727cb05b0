package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/utsushi/internal/models"
)

func sampleResponse() *models.SearchResponse {
	return &models.SearchResponse{
		Results: []*models.ImageResult{
			{Rank: 1, Identifier: "cars/red.png", Similarity: 1, Distance: 0},
			{Rank: 2, Identifier: "https://example.com/b.jpg", Similarity: 0.873, Distance: 0.254},
		},
		Total:     2,
		IndexSize: 40,
		QueryTime: 3,
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{" compact ", OutputCompact, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputJSON); err != nil {
		t.Fatalf("WriteSearchResults(json): %v", err)
	}
	var decoded models.SearchResponse
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded.Results) != 2 || decoded.Results[1].Similarity != 0.873 {
		t.Errorf("decoded results: %+v", decoded.Results)
	}
}

func TestWriteSearchResults_Compact(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputCompact); err != nil {
		t.Fatal(err)
	}
	want := "1\t1.000\tcars/red.png\n2\t0.873\thttps://example.com/b.jpg\n"
	if buf.String() != want {
		t.Errorf("compact output:\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestWriteSearchResults_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Found 2 results", "Similarity: 0.873", "cars/red.png", "index size 40"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteSearchResults_TextEmpty(t *testing.T) {
	var buf bytes.Buffer
	resp := &models.SearchResponse{Empty: true, Message: models.NothingIndexedMessage}
	if err := WriteSearchResults(&buf, resp, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "nothing indexed yet") {
		t.Errorf("expected empty marker, got %q", buf.String())
	}
}

func TestWriteBuildReport(t *testing.T) {
	report := &models.BuildReport{
		RunID:      "run-1",
		Mode:       models.BuildModeRemote,
		Source:     "red cars",
		Candidates: 10,
		Indexed:    7,
		IndexSize:  7,
		Status:     models.StatusIndexed,
		Duration:   1234567 * time.Microsecond,
	}
	report.AddFailure("https://example.com/x.jpg", models.StageFetch, errors.New("status 404"))

	var buf bytes.Buffer
	if err := WriteBuildReport(&buf, report, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Build indexed (remote, 1.235s)", "indexed:    7", "failed:     1", "[fetch] https://example.com/x.jpg: status 404"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := WriteBuildReport(&buf, report, OutputCompact); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "run-1\tindexed\t10\t7\t1\t7\n" {
		t.Errorf("compact: %q", buf.String())
	}
}

func TestWriteStatus(t *testing.T) {
	status := &models.IndexStatus{
		IndexType:      "flat",
		Dimensions:     512,
		Size:           3,
		IndexPath:      "/data/index.bin",
		IndexBytes:     1536,
		MetadataBytes:  512,
		DiskUsageBytes: 2048,
		RecentRuns: []*models.RunSummary{
			{RunID: "r", Mode: models.BuildModeLocal, Status: models.StatusIndexed, Indexed: 3, StartedAt: "2026-01-01T00:00:00Z", Source: "/data"},
		},
	}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, status, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Type:       flat", "Images:     3", "Disk usage: 2.0 KiB (index 1.5 KiB, metadata 512 B)", "2026-01-01T00:00:00Z"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{5 << 20, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.n); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
