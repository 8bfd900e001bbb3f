// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	Errors    int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	Errors      int64   `json:"errors"`
	TotalTimeMs int64   `json:"total_time_ms"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
	MinTimeMs   int64   `json:"min_time_ms"`
	MaxTimeMs   int64   `json:"max_time_ms"`
}

// JobCounts counts lifecycle events since process start.
type JobCounts struct {
	Created    int64 `json:"created"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	PollErrors int64 `json:"poll_errors"`
	Pruned     int64 `json:"pruned"`
}

// Snapshot represents the full server statistics at a point in time.
type Snapshot struct {
	UptimeSeconds  float64            `json:"uptime_seconds"`
	EngineStart    *OperationSnapshot `json:"engine_start,omitempty"`
	EngineRetrieve *OperationSnapshot `json:"engine_retrieve,omitempty"`
	Registry       *OperationSnapshot `json:"registry,omitempty"`
	Jobs           JobCounts          `json:"jobs"`
}

// Operation names for the collector.
const (
	OpEngineStart    = "engine_start"
	OpEngineRetrieve = "engine_retrieve"
	OpRegistry       = "registry"
)

// Job lifecycle events for the collector.
const (
	EventCreated   = "created"
	EventCompleted = "completed"
	EventFailed    = "failed"
	EventPollError = "poll_error"
	EventPruned    = "pruned"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe. A nil *Collector is a no-op.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
	jobs      JobCounts
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records timing for an operation. Failed calls count toward
// both the timing and the error total.
func (c *Collector) RecordTiming(op string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration
	if err != nil {
		m.Errors++
	}

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// RecordJob counts a job lifecycle event. n is usually 1; pruning passes the
// number of jobs removed.
func (c *Collector) RecordJob(event string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	delta := int64(n)
	switch event {
	case EventCreated:
		c.jobs.Created += delta
	case EventCompleted:
		c.jobs.Completed += delta
	case EventFailed:
		c.jobs.Failed += delta
	case EventPollError:
		c.jobs.PollErrors += delta
	case EventPruned:
		c.jobs.Pruned += delta
	}
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}
	return &OperationSnapshot{
		Count:       m.Count,
		Errors:      m.Errors,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds:  time.Since(c.startTime).Seconds(),
		EngineStart:    snapshotOp(c.ops[OpEngineStart]),
		EngineRetrieve: snapshotOp(c.ops[OpEngineRetrieve]),
		Registry:       snapshotOp(c.ops[OpRegistry]),
		Jobs:           c.jobs,
	}
}
