// Package store is the Filesystem Analysis Store (§4.10): one JSON file
// per analysis ID, atomic writes, advisory-locked reads. It is the only
// mechanism through which concurrent workers share in-flight analysis
// state — no in-memory shared mutable collection is used for that.
package store

import "time"

// Status is the lifecycle state of a persisted analysis.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Record is the persisted analysis document (§6 "Persisted analysis
// record"). Result is left as a raw JSON-able value since its shape
// varies by the stage the workflow stopped at.
type Record struct {
	AnalysisID string    `json:"analysis_id"`
	Status     Status    `json:"status"`
	Result     any       `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	TempFile   string    `json:"temp_file,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
