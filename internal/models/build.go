// Package models defines the data structures shared by the pipeline, search engine, ledger and CLI.
package models

import "time"

// BuildMode identifies how a build obtained its images.
type BuildMode string

const (
	BuildModeLocal  BuildMode = "local"
	BuildModeRemote BuildMode = "remote"
	BuildModeWatch  BuildMode = "watch"
)

// BuildStatus summarises the outcome of a build.
type BuildStatus string

const (
	// StatusIndexed means at least one image was added.
	StatusIndexed BuildStatus = "indexed"
	// StatusNoCandidates means the candidate source returned nothing.
	StatusNoCandidates BuildStatus = "no_candidates"
	// StatusAllFailed means candidates existed but none could be indexed.
	StatusAllFailed BuildStatus = "all_failed"
	// StatusNothingIndexed means a local build found no usable image.
	StatusNothingIndexed BuildStatus = "nothing_indexed"
	// StatusFailed means images were extracted but the index could not be updated.
	StatusFailed BuildStatus = "failed"
)

// Stage names the step at which an item failed.
type Stage string

const (
	StageRead    Stage = "read"
	StageFetch   Stage = "fetch"
	StageDecode  Stage = "decode"
	StageExtract Stage = "extract"
)

// Failure records one image that could not be indexed.
type Failure struct {
	Identifier string `json:"identifier"`
	Stage      Stage  `json:"stage"`
	Err        string `json:"error"`
}

// BuildReport describes a single pipeline run.
type BuildReport struct {
	RunID      string        `json:"run_id"`
	Mode       BuildMode     `json:"mode"`
	Source     string        `json:"source"` // dataset root or text query
	Candidates int           `json:"candidates"`
	Indexed    int           `json:"indexed"`
	Failed     int           `json:"failed"`
	Failures   []Failure     `json:"failures,omitempty"`
	Status     BuildStatus   `json:"status"`
	IndexSize  int           `json:"index_size"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}

// AddFailure appends a failure and bumps the failed count.
func (r *BuildReport) AddFailure(identifier string, stage Stage, err error) {
	r.Failures = append(r.Failures, Failure{Identifier: identifier, Stage: stage, Err: err.Error()})
	r.Failed++
}
