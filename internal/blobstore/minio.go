package blobstore

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dvloznov/blobshare/internal/logger"
)

// MinIOConfig holds the endpoint and keys of a MinIO (or other
// S3-compatible) server.
type MinIOConfig struct {
	// Endpoint is host[:port], optionally prefixed with http:// or https://.
	// Without a scheme TLS is used.
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
}

// MinIO is a Store backed by a MinIO server. Containers map to buckets.
type MinIO struct {
	client *minio.Client
	region string
}

// NewMinIO creates a MinIO client.
func NewMinIO(cfg MinIOConfig) (*MinIO, error) {
	host, secure := SplitEndpoint(cfg.Endpoint)
	if host == "" {
		return nil, fmt.Errorf("incomplete MinIO configuration: endpoint is required")
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  miniocreds.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinIO{client: client, region: cfg.Region}, nil
}

// SplitEndpoint strips the scheme from an endpoint and reports whether TLS
// should be used.
func SplitEndpoint(endpoint string) (host string, secure bool) {
	switch {
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "http://"), "/"), false
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "https://"), "/"), true
	default:
		return strings.TrimSuffix(endpoint, "/"), true
	}
}

// CreateContainer implements Store. A newly created bucket gets a
// public-read policy.
func (m *MinIO) CreateContainer(ctx context.Context, name string) error {
	if err := m.client.MakeBucket(ctx, name, minio.MakeBucketOptions{Region: m.region}); err != nil {
		if isMinIOConflict(err) {
			return fmt.Errorf("create bucket %q: %w", name, ErrContainerExists)
		}
		return fmt.Errorf("create bucket %q: %w", name, err)
	}

	if err := m.client.SetBucketPolicy(ctx, name, publicReadPolicy(name)); err != nil {
		return fmt.Errorf("set bucket policy %q: %w", name, err)
	}

	log := logger.FromContext(ctx)
	log.Debug().Str("bucket", name).Msg("Created MinIO bucket")
	return nil
}

// Upload implements Store.
func (m *MinIO) Upload(ctx context.Context, obj Object, progress ProgressFunc) error {
	opts := minio.PutObjectOptions{
		ContentType: obj.ContentType,
		Progress:    &progressCounter{progress: progress},
	}

	if _, err := m.client.PutObject(ctx, obj.Container, obj.Name, obj.File, obj.Size, opts); err != nil {
		return fmt.Errorf("put object %q: %w", obj.Name, err)
	}
	return nil
}

// Close implements Store.
func (m *MinIO) Close() error {
	return nil
}

func isMinIOConflict(err error) bool {
	return minio.ToErrorResponse(err).StatusCode == http.StatusConflict
}

var _ Store = (*MinIO)(nil)
