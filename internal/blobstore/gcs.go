package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/dvloznov/blobshare/internal/logger"
)

// GCSConfig selects the project and credentials used for a bucket.
type GCSConfig struct {
	ProjectID string

	// CredentialsFile is a service-account JSON key. When empty, Application
	// Default Credentials are used (gcloud auth application-default login).
	CredentialsFile string
}

// GCS is a Store backed by Google Cloud Storage. Containers map to buckets.
type GCS struct {
	client    *storage.Client
	projectID string
}

// NewGCS creates a storage client.
func NewGCS(ctx context.Context, cfg GCSConfig) (*GCS, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &GCS{client: client, projectID: cfg.ProjectID}, nil
}

// CreateContainer implements Store. Objects in a new bucket are publicly
// readable through the bucket's default object ACL.
func (g *GCS) CreateContainer(ctx context.Context, name string) error {
	attrs := &storage.BucketAttrs{
		PredefinedDefaultObjectACL: "publicRead",
	}

	if err := g.client.Bucket(name).Create(ctx, g.projectID, attrs); err != nil {
		if isGCSConflict(err) {
			return fmt.Errorf("create bucket %q: %w", name, ErrContainerExists)
		}
		return fmt.Errorf("create bucket %q: %w", name, err)
	}

	log := logger.FromContext(ctx)
	log.Debug().Str("bucket", name).Str("project", g.projectID).Msg("Created GCS bucket")
	return nil
}

// Upload implements Store.
func (g *GCS) Upload(ctx context.Context, obj Object, progress ProgressFunc) error {
	w := g.client.Bucket(obj.Container).Object(obj.Name).NewWriter(ctx)
	if obj.ContentType != "" {
		w.ContentType = obj.ContentType
	}

	// Copy file content into writer
	if _, err := io.Copy(w, newProgressReader(obj.File, progress)); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy file to GCS writer: %w", err)
	}

	// Close to finalize the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}

	return nil
}

// Close implements Store.
func (g *GCS) Close() error {
	return g.client.Close()
}

func isGCSConflict(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict
}

var _ Store = (*GCS)(nil)
