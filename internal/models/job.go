// Package models defines data structures for deep-research jobs and reports.
package models

import (
	"math"
	"slices"
	"time"
)

// JobStatus represents the local state of a research job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"

	// Response-only tags. A stored job never carries these.
	JobStatusNotFound JobStatus = "not_found"
	JobStatusError    JobStatus = "error"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Research model variants accepted by the engine. The first is the default.
const (
	ModelDeepResearch     = "o3-deep-research"
	ModelDeepResearchMini = "o4-mini-deep-research"
)

// ModelVariants lists the accepted model identifiers in preference order.
var ModelVariants = []string{ModelDeepResearch, ModelDeepResearchMini}

// ValidModel reports whether m is one of ModelVariants.
func ValidModel(m string) bool {
	return slices.Contains(ModelVariants, m)
}

// Job is one tracked research request bound to exactly one engine operation.
//
// Lifecycle: pending -> completed | failed
//
// Everything except Status, Result, Error, CompletedAt and the poll
// diagnostics is immutable after creation.
type Job struct {
	ID              string
	Query           string
	Guidance        string
	Model           string
	CodeInterpreter bool
	OperationRef    string

	Status      JobStatus
	Result      map[string]any // raw engine document, cached on first observed success
	Error       string
	CreatedAt   time.Time
	CompletedAt *time.Time

	// Transient reconciliation failures seen while pending.
	PollFailures  int
	LastPollError string
}

// Clone returns a copy that can be read without holding any store lock.
// The cached document is shared; it is never mutated after being set.
func (j *Job) Clone() *Job {
	c := *j
	if j.CompletedAt != nil {
		at := *j.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}

// ElapsedMinutes is wall-clock minutes since creation, rounded to one decimal.
func (j *Job) ElapsedMinutes(now time.Time) float64 {
	mins := now.Sub(j.CreatedAt).Minutes()
	if mins < 0 {
		return 0
	}
	return math.Round(mins*10) / 10
}
