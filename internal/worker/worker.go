// Package worker runs queued share jobs: it plays the host for the share
// service, recording what the service reports on the job itself.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/blobshare/internal/history"
	"github.com/dvloznov/blobshare/internal/jobs"
	"github.com/dvloznov/blobshare/internal/logger"
	"github.com/dvloznov/blobshare/internal/share"
)

// ServiceLookup finds a share service by name.
type ServiceLookup func(name string) (*share.Service, error)

// ConfigSource returns the configuration of a share service.
type ConfigSource interface {
	Service(name string) share.Config
}

// Observer is told about every share the worker runs.
type Observer interface {
	ShareStarted()
	ShareFinished(service, format string, size int64, d time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ShareStarted() {}

func (nopObserver) ShareFinished(string, string, int64, time.Duration, error) {}

// Worker handles share jobs.
type Worker struct {
	lookup   ServiceLookup
	configs  ConfigSource
	store    jobs.JobStore
	recorder history.Recorder
	observer Observer
	log      zerolog.Logger
	now      func() time.Time
}

// Option configures a Worker.
type Option func(*Worker)

// WithRecorder records every finished share.
func WithRecorder(r history.Recorder) Option {
	return func(w *Worker) {
		w.recorder = r
	}
}

// WithObserver reports share outcomes, e.g. to metrics.
func WithObserver(o Observer) Option {
	return func(w *Worker) {
		w.observer = o
	}
}

// WithLogger sets the logger used for job logs.
func WithLogger(log zerolog.Logger) Option {
	return func(w *Worker) {
		w.log = log
	}
}

// New creates a Worker. store receives progress, URL and message updates
// while a share runs.
func New(lookup ServiceLookup, configs ConfigSource, store jobs.JobStore, opts ...Option) *Worker {
	w := &Worker{
		lookup:   lookup,
		configs:  configs,
		store:    store,
		recorder: history.Nop{},
		observer: nopObserver{},
		log:      zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Handle implements jobs.JobHandler.
func (w *Worker) Handle(ctx context.Context, job jobs.Job) (err error) {
	shareJob, ok := job.(*jobs.ShareJob)
	if !ok {
		return fmt.Errorf("unexpected job type: %T", job)
	}
	defer w.cleanup(shareJob, &err)

	log := w.log.With().
		Str("job_id", shareJob.JobID).
		Str("service", shareJob.Service).
		Str("file", shareJob.FileName).
		Logger()

	svc, err := w.lookup(shareJob.Service)
	if err != nil {
		return err
	}

	jobCtx, cancel := context.WithCancel(logger.WithContext(ctx, log))
	defer cancel()

	reporter := jobs.NewReporter(jobCtx, w.store, shareJob)
	sc := &share.Context{
		Format:          shareJob.Format,
		DefaultFileName: shareJob.FileName,
		FilePath:        share.StaticFilePath(shareJob.FilePath),
		Config:          w.configs.Service(svc.Name),
		CopyToClipboard: reporter.SetURL,
		Notify:          reporter.SetMessage,
		SetProgress:     reporter.SetProgress,
		OpenConfigFile: func() {
			log.Warn().Msg("Opening the config file is not supported by the HTTP host")
		},
		Cancel: cancel,
	}

	log.Info().Msg("Processing share job")

	started := w.now()
	w.observer.ShareStarted()
	err = svc.Action(jobCtx, sc)
	finished := w.now()
	w.observer.ShareFinished(svc.Name, shareJob.Format, shareJob.Size, finished.Sub(started), err)

	row := history.NewShareRow(shareJob.JobID, svc.Name, shareJob.Format, shareJob.FileName, shareJob.Size, shareJob.URL, started, finished, err)
	if recErr := w.recorder.Record(ctx, row); recErr != nil {
		log.Warn().Err(recErr).Msg("Failed to record share history")
	}

	if err != nil {
		log.Error().Err(err).Msg("Share failed")
		return err
	}

	log.Info().Str("url", shareJob.URL).Dur("duration", finished.Sub(started)).Msg("Share completed")
	return nil
}

// cleanup removes the uploaded temp file once the job will not run again.
func (w *Worker) cleanup(job *jobs.ShareJob, err *error) {
	if *err != nil && job.RetryCount < job.MaxRetries {
		return
	}
	if job.FilePath == "" {
		return
	}
	if rmErr := os.Remove(job.FilePath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
		w.log.Warn().Err(rmErr).Str("path", job.FilePath).Msg("Failed to remove temp file")
	}
}
