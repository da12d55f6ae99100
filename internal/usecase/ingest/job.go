package ingest

import (
	"sync"
	"time"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
)

// Kind is the collection a job writes to.
type Kind string

// Job kinds.
const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindPost  Kind = "post"
)

// Status is the outcome of one submitted item.
type Status string

// Item outcomes.
const (
	StatusPending Status = "pending"
	StatusStored  Status = "stored"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// State is the lifecycle stage of a job.
type State string

// Job states.
const (
	StateRunning State = "running"
	StateDone    State = "done"
)

// ItemResult reports what happened to one submitted item.
// ID is the assigned collection id for stored items.
type ItemResult struct {
	Index  int
	ID     int64
	Key    string
	Status Status
	Err    error
}

// Report is a point-in-time view of a job.
type Report struct {
	JobID     string
	Kind      Kind
	State     State
	Submitted time.Time
	Finished  time.Time
	Items     []ItemResult
}

// Count returns the number of items with the given status.
func (r Report) Count(s Status) int {
	n := 0
	for _, it := range r.Items {
		if it.Status == s {
			n++
		}
	}
	return n
}

// Job is a submitted ingestion batch processed in the background.
type Job struct {
	id        string
	kind      Kind
	submitted time.Time
	done      chan struct{}

	mu       sync.Mutex
	items    []ItemResult
	finished time.Time
}

func newJob(id string, kind Kind, n int) *Job {
	items := make([]ItemResult, n)
	for i := range items {
		items[i] = ItemResult{Index: i, ID: domain.NoID, Status: StatusPending}
	}
	return &Job{
		id:        id,
		kind:      kind,
		submitted: time.Now(),
		done:      make(chan struct{}),
		items:     items,
	}
}

// ID returns the job identifier.
func (j *Job) ID() string { return j.id }

// Kind returns the collection the job writes to.
func (j *Job) Kind() Kind { return j.kind }

// Done is closed once every item has a final status.
func (j *Job) Done() <-chan struct{} { return j.done }

// Report returns a copy of the current per-item results.
func (j *Job) Report() Report {
	j.mu.Lock()
	defer j.mu.Unlock()

	state := StateRunning
	if !j.finished.IsZero() {
		state = StateDone
	}
	return Report{
		JobID:     j.id,
		Kind:      j.kind,
		State:     state,
		Submitted: j.submitted,
		Finished:  j.finished,
		Items:     append([]ItemResult(nil), j.items...),
	}
}

func (j *Job) set(i int, r ItemResult) {
	j.mu.Lock()
	r.Index = i
	j.items[i] = r
	j.mu.Unlock()
}

// finish marks items still pending as failed and closes Done.
func (j *Job) finish(reason error) {
	j.mu.Lock()
	for i := range j.items {
		if j.items[i].Status == StatusPending {
			j.items[i].Status = StatusFailed
			j.items[i].Err = reason
		}
	}
	j.finished = time.Now()
	j.mu.Unlock()
	close(j.done)
}

func (j *Job) isFinished() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}
