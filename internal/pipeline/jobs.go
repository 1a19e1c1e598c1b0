package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of a review job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusExtracting JobStatus = "extracting"
	StatusPlanning   JobStatus = "planning"
	StatusReviewing  JobStatus = "reviewing"
	StatusRendering  JobStatus = "rendering"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// statusForStep maps a coordinator step to the job status it starts.
func statusForStep(s Step) JobStatus {
	switch s {
	case StepExtract:
		return StatusExtracting
	case StepChecklist:
		return StatusPlanning
	case StepReview:
		return StatusReviewing
	case StepRender:
		return StatusRendering
	case StepDone:
		return StatusCompleted
	}
	return ""
}

// Job tracks the state of a single contract review.
type Job struct {
	mu sync.Mutex

	ID       string `json:"job_id"`
	Filename string `json:"filename"`

	Status  JobStatus `json:"status"`
	Message string    `json:"message"`
	Percent int       `json:"percent"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Request. FilePath is a temporary upload removed when the job finishes.
	FilePath     string   `json:"-"`
	ClientRole   string   `json:"-"`
	ContractType string   `json:"-"`
	UserConcerns string   `json:"-"`
	OutputFormat string   `json:"-"`
	Quick        bool     `json:"-"`
	FocusAreas   []string `json:"-"`

	result *Result
}

// NewJob creates a queued job with a fresh ID.
func NewJob(filename, filePath string) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Filename:  filename,
		FilePath:  filePath,
		Status:    StatusQueued,
		Message:   "等待审查...",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Request returns the coordinator request for the job.
func (j *Job) Request() Request {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Request{
		FilePath:     j.FilePath,
		FileName:     j.Filename,
		ContractName: trimExt(j.Filename),
		ClientRole:   j.ClientRole,
		ContractType: j.ContractType,
		UserConcerns: j.UserConcerns,
		OutputFormat: j.OutputFormat,
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.UpdatedAt = time.Now()
}

// SetProgress records a progress message. The percentage never decreases.
func (j *Job) SetProgress(message string, percent int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Message = message
	if percent > j.Percent {
		j.Percent = percent
	}
	j.UpdatedAt = time.Now()
}

// Finish stores the result and moves the job to a terminal status.
func (j *Job) Finish(res Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = &res
	j.Message = res.Message
	if res.Success {
		j.Status = StatusCompleted
		j.Percent = 100
	} else {
		j.Status = StatusFailed
	}
	j.UpdatedAt = time.Now()
}

// Result returns the final result, or nil while the job is running.
func (j *Job) Result() *Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string    `json:"job_id"`
	Filename  string    `json:"filename"`
	Status    JobStatus `json:"status"`
	Message   string    `json:"message"`
	Percent   int       `json:"percent"`
	Quick     bool      `json:"quick"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Result    *Result   `json:"result,omitempty"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobSnapshot{
		ID:        j.ID,
		Filename:  j.Filename,
		Status:    j.Status,
		Message:   j.Message,
		Percent:   j.Percent,
		Quick:     j.Quick,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
		Result:    j.result,
	}
}

// Terminal reports whether the job has completed or failed.
func (j *Job) Terminal() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of stored jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes finished jobs that have not been updated within the TTL.
// Running jobs are kept regardless of age.
func (s *JobStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	removed := 0
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := now.Sub(job.UpdatedAt) > s.ttl &&
			(job.Status == StatusCompleted || job.Status == StatusFailed)
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}
