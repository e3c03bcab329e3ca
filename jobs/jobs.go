// Package jobs tracks background indexing runs in memory.
package jobs

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Job statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const maxTrackedJobs = 100

// ErrAlreadyRunning is returned by Begin when a job with the same kind
// and key is still in flight.
var ErrAlreadyRunning = errors.New("job already running")

// Job is one tracked background run. Kind names the operation (for
// example "index_day") and Key scopes it (the date or month).
type Job struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Key         string     `json:"key"`
	Status      string     `json:"status"`
	Stage       string     `json:"stage,omitempty"`
	Done        int        `json:"done"`
	Total       int        `json:"total"`
	Message     string     `json:"message"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	seq int64
}

// Tracker is a concurrency-safe registry of jobs.
type Tracker struct {
	mu      sync.Mutex
	jobs    map[string]*Job
	nextSeq int64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{jobs: make(map[string]*Job)}
}

// Begin registers a new running job. At most one job per (kind, key)
// may be running at a time.
func (t *Tracker) Begin(kind, key string) (*Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, j := range t.jobs {
		if j.Kind == kind && j.Key == key && j.Status == StatusRunning {
			return nil, fmt.Errorf("%w: %s %s", ErrAlreadyRunning, kind, key)
		}
	}

	t.nextSeq++
	job := &Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Key:       key,
		Status:    StatusRunning,
		Message:   "Starting...",
		StartedAt: time.Now().UTC(),
		seq:       t.nextSeq,
	}
	t.jobs[job.ID] = job
	t.pruneLocked()
	return copyJob(job), nil
}

// Progress updates a running job's stage and counters. Unknown IDs are
// ignored.
func (t *Tracker) Progress(id, stage string, done, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok || job.Status != StatusRunning {
		return
	}
	job.Stage = stage
	job.Done = done
	job.Total = total
}

// Complete marks a job as finished.
func (t *Tracker) Complete(id, message string) {
	t.finish(id, StatusCompleted, message, "")
}

// Fail marks a job as failed.
func (t *Tracker) Fail(id string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	t.finish(id, StatusFailed, msg, msg)
}

func (t *Tracker) finish(id, status, message, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return
	}
	now := time.Now().UTC()
	job.Status = status
	job.Message = message
	job.Error = errMsg
	job.CompletedAt = &now
}

// Get returns a copy of the job with the given ID.
func (t *Tracker) Get(id string) (*Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return nil, false
	}
	return copyJob(job), true
}

// Latest returns the most recently started job for a (kind, key).
func (t *Tracker) Latest(kind, key string) (*Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var latest *Job
	for _, j := range t.jobs {
		if j.Kind != kind || j.Key != key {
			continue
		}
		if latest == nil || j.seq > latest.seq {
			latest = j
		}
	}
	if latest == nil {
		return nil, false
	}
	return copyJob(latest), true
}

// List returns all tracked jobs, newest first.
func (t *Tracker) List() []*Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Job, 0, len(t.jobs))
	for _, j := range t.jobs {
		out = append(out, copyJob(j))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq > out[j].seq })
	return out
}

// pruneLocked drops the oldest finished jobs once the registry grows
// past its cap. Running jobs are never dropped.
func (t *Tracker) pruneLocked() {
	if len(t.jobs) <= maxTrackedJobs {
		return
	}

	finished := make([]*Job, 0, len(t.jobs))
	for _, j := range t.jobs {
		if j.Status != StatusRunning {
			finished = append(finished, j)
		}
	}
	sort.Slice(finished, func(i, j int) bool { return finished[i].seq < finished[j].seq })

	for _, j := range finished {
		if len(t.jobs) <= maxTrackedJobs {
			return
		}
		delete(t.jobs, j.ID)
	}
}

func copyJob(j *Job) *Job {
	out := *j
	if j.CompletedAt != nil {
		at := *j.CompletedAt
		out.CompletedAt = &at
	}
	return &out
}
