package jobs

import (
	"context"
	"sync"

	"github.com/dvloznov/blobshare/internal/logger"
)

// Reporter records what a running share reports back to its host.
// Storage clients may report progress from several goroutines, so every
// update is serialised and persisted before the next one is applied.
type Reporter struct {
	mu    sync.Mutex
	ctx   context.Context
	job   *ShareJob
	store JobStore
}

// NewReporter creates a Reporter that updates job and saves it to store.
func NewReporter(ctx context.Context, store JobStore, job *ShareJob) *Reporter {
	return &Reporter{ctx: ctx, job: job, store: store}
}

// SetProgress records the upload progress.
func (r *Reporter) SetProgress(label string, fraction float64) {
	r.update(func(j *ShareJob) {
		j.ProgressLabel = label
		j.Progress = fraction
	})
}

// SetURL records the public URL of the uploaded file.
func (r *Reporter) SetURL(url string) {
	r.update(func(j *ShareJob) {
		j.URL = url
	})
}

// SetMessage records a notification.
func (r *Reporter) SetMessage(message string) {
	r.update(func(j *ShareJob) {
		j.Message = message
	})
}

func (r *Reporter) update(apply func(*ShareJob)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	apply(r.job)
	if r.store == nil {
		return
	}
	if err := r.store.SaveJob(r.ctx, r.job); err != nil {
		log := logger.FromContext(r.ctx)
		log.Warn().Err(err).Str("job_id", r.job.JobID).Msg("Failed to save job update")
	}
}
