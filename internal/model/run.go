package model

import (
	"encoding/json"
	"time"
)

// RunKind identifies what a background run does.
type RunKind string

const (
	RunKindScrape RunKind = "scrape"
	RunKindEnrich RunKind = "enrich"
)

// RunStatus represents the state of a background run. A run has exactly one
// terminal status.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusError   RunStatus = "error"
)

// Terminal reports whether the status is final.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSuccess || s == RunStatusError
}

// Run is a persisted record of a scrape or enrichment run.
type Run struct {
	ID        string          `json:"id"`
	Kind      RunKind         `json:"kind"`
	Status    RunStatus       `json:"status"`
	Request   json.RawMessage `json:"request,omitempty"`
	Result    *RunResult      `json:"result,omitempty"`
	Error     *RunError       `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RunError describes why a run failed.
type RunError struct {
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind,omitempty"`
}

// RunResult holds the counts reported by a successful run.
type RunResult struct {
	CampaignID     *int64         `json:"campaign_id,omitempty"`
	Scraped        int            `json:"scraped"`
	Dropped        int            `json:"dropped"`
	Matched        int            `json:"matched"`
	Inserted       int            `json:"inserted"`
	Linked         int            `json:"linked"`
	ContactUpdates int            `json:"contact_updates"`
	Enrichment     *EnrichSummary `json:"enrichment,omitempty"`
}

// EnrichSummary holds the counts from one enrichment pass.
type EnrichSummary struct {
	Candidates    int `json:"candidates"`
	Batches       int `json:"batches"`
	FailedBatches int `json:"failed_batches"`
	Updated       int `json:"updated"`
	WithEmail     int `json:"with_email"`
	Cleared       int `json:"cleared"`
}
