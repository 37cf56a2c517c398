package jobs

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrJobNotFound is returned by a JobStore for unknown job IDs.
	ErrJobNotFound = errors.New("job not found")

	// ErrQueueClosed is returned when publishing to or starting a stopped queue.
	ErrQueueClosed = errors.New("queue is closed")
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeShare represents uploading a file through a share service.
	JobTypeShare JobType = "share"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// ShareJob represents one invocation of a share service for an uploaded file.
type ShareJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Service is the share service name, e.g. "azure".
	Service string `json:"service"`

	// Format is the format identifier of the file, e.g. "gif".
	Format string `json:"format"`

	// FileName is the client's name for the file, used as the default filename.
	FileName string `json:"file_name"`

	// FilePath is where the file waits on local disk. It is not exposed to clients.
	FilePath string `json:"-"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// Progress is the upload fraction in [0, 1] and ProgressLabel its label.
	Progress      float64 `json:"progress"`
	ProgressLabel string  `json:"progress_label,omitempty"`

	// URL is the public URL handed back by the share service.
	URL string `json:"url,omitempty"`

	// Message is the last notification sent by the share service.
	Message string `json:"message,omitempty"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *ShareJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *ShareJob) GetType() JobType {
	return JobTypeShare
}

// GetStatus implements the Job interface.
func (j *ShareJob) GetStatus() JobStatus {
	return j.Status
}

// Finished reports whether the job has reached a terminal status.
func (j *ShareJob) Finished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishShare publishes a share job.
	PublishShare(ctx context.Context, job *ShareJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed and may be retried.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *ShareJob) error

	// GetJob retrieves a job by ID. Unknown IDs yield ErrJobNotFound.
	GetJob(ctx context.Context, jobID string) (*ShareJob, error)

	// ListJobs retrieves jobs, newest first, with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ShareJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Service filters jobs by share service.
	Service string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}

// Matches reports whether job passes the service and status filters.
func (f JobFilter) Matches(job *ShareJob) bool {
	if f.Service != "" && job.Service != f.Service {
		return false
	}
	if f.Status != "" && job.Status != f.Status {
		return false
	}
	return true
}

// Page applies Offset and Limit to an already filtered, ordered list.
func (f JobFilter) Page(list []*ShareJob) []*ShareJob {
	if f.Offset > 0 {
		if f.Offset >= len(list) {
			return []*ShareJob{}
		}
		list = list[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(list) {
		list = list[:f.Limit]
	}
	return list
}
