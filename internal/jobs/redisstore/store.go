// Package redisstore keeps share jobs in Redis so job status survives a
// restart of the HTTP host and can be read by several instances.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dvloznov/blobshare/internal/jobs"
)

// Config contains store configuration.
type Config struct {
	// Prefix namespaces every key.
	Prefix string

	// TTL expires job records; zero keeps them forever.
	TTL time.Duration
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() *Config {
	return &Config{
		Prefix: "blobshare:",
		TTL:    7 * 24 * time.Hour,
	}
}

// Store is a JobStore backed by Redis. Each job is a JSON string; a sorted
// set scored by creation time indexes them for listing.
type Store struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewClient connects to the Redis server at url, e.g. redis://localhost:6379/0.
func NewClient(ctx context.Context, url string) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	// Verify connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// New creates a Store on client.
func New(client redis.UniversalClient, config *Config) *Store {
	if config == nil {
		config = DefaultConfig()
	}
	return &Store{
		client: client,
		prefix: config.Prefix,
		ttl:    config.TTL,
	}
}

// record adds the fields hidden from API clients.
type record struct {
	*jobs.ShareJob
	FilePath string `json:"file_path,omitempty"`
}

func encode(job *jobs.ShareJob) ([]byte, error) {
	return json.Marshal(record{ShareJob: job, FilePath: job.FilePath})
}

func decode(data []byte) (*jobs.ShareJob, error) {
	rec := record{ShareJob: &jobs.ShareJob{}}
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	rec.ShareJob.FilePath = rec.FilePath
	return rec.ShareJob, nil
}

func (s *Store) jobKey(id string) string {
	return s.prefix + "job:" + id
}

func (s *Store) indexKey() string {
	return s.prefix + "jobs"
}

// SaveJob implements jobs.JobStore.
func (s *Store) SaveJob(ctx context.Context, job *jobs.ShareJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	data, err := encode(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.jobKey(job.JobID), data, s.ttl)
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{
			Score:  float64(job.CreatedAt.UnixNano()),
			Member: job.JobID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

// GetJob implements jobs.JobStore.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.ShareJob, error) {
	data, err := s.client.Get(ctx, s.jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return decode(data)
}

// ListJobs implements jobs.JobStore. Index entries whose record has expired
// are dropped from the index as they are found.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.ShareJob, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list job ids: %w", err)
	}
	if len(ids) == 0 {
		return []*jobs.ShareJob{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.jobKey(id)
	}

	// Get all at once
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("get jobs: %w", err)
	}

	result := []*jobs.ShareJob{}
	var expired []interface{}
	for i, v := range values {
		data, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		job, err := decode([]byte(data))
		if err != nil {
			return nil, err
		}
		if filter.Matches(job) {
			result = append(result, job)
		}
	}

	if len(expired) > 0 {
		_ = s.client.ZRem(ctx, s.indexKey(), expired...).Err()
	}

	return filter.Page(result), nil
}

// UpdateJobStatus implements jobs.JobStore. The read-modify-write runs in a
// WATCH transaction so concurrent saves are not lost.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	key := s.jobKey(jobID)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return fmt.Errorf("%w: %s", jobs.ErrJobNotFound, jobID)
			}
			return err
		}

		job, err := decode(data)
		if err != nil {
			return err
		}
		job.Status = status
		if errorMsg != "" {
			job.Error = errorMsg
		}

		updated, err := encode(job)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, redis.KeepTTL)
			return nil
		})
		return err
	}, key)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			return err
		}
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

// Ensure Store implements JobStore interface.
var _ jobs.JobStore = (*Store)(nil)
