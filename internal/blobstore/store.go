// Package blobstore provides the storage capability used by share services:
// create a container if absent and upload a file with progress reporting.
//
// Each backend translates its SDK's "already exists" conflict into
// ErrContainerExists so callers can treat container creation as idempotent.
package blobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// ErrContainerExists is returned by CreateContainer when the container is
// already there.
var ErrContainerExists = errors.New("blobstore: container already exists")

// ProgressFunc receives the cumulative number of bytes transferred.
type ProgressFunc func(transferred int64)

// Object describes an upload.
type Object struct {
	Container string
	Name      string

	// ContentType is omitted from the request when empty.
	ContentType string

	File *os.File
	Size int64
}

// Store is a blob storage backend.
type Store interface {
	// CreateContainer creates a container readable by anonymous clients.
	CreateContainer(ctx context.Context, name string) error

	// Upload streams obj.File to obj.Container/obj.Name, calling progress
	// as bytes are sent. progress may be nil.
	Upload(ctx context.Context, obj Object, progress ProgressFunc) error

	Close() error
}

// progressReader counts bytes read from r and reports the running total.
type progressReader struct {
	r        io.Reader
	read     int64
	progress ProgressFunc
}

func newProgressReader(r io.Reader, progress ProgressFunc) *progressReader {
	return &progressReader{r: r, progress: progress}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		if p.progress != nil {
			p.progress(p.read)
		}
	}
	return n, err
}

// Seek lets SDKs that rewind the body (for signing or retries) do so; the
// running total follows the new offset.
func (p *progressReader) Seek(offset int64, whence int) (int64, error) {
	s, ok := p.r.(io.Seeker)
	if !ok {
		return 0, fmt.Errorf("progress reader: underlying reader is not seekable")
	}
	pos, err := s.Seek(offset, whence)
	if err != nil {
		return pos, err
	}
	p.read = pos
	return pos, nil
}

// progressCounter is fed the bytes already sent, for SDKs that take a
// progress io.Reader instead of a callback. Multipart uploads feed it from
// several goroutines; reports stay serialised and increasing.
type progressCounter struct {
	mu       sync.Mutex
	sent     int64
	progress ProgressFunc
}

func (c *progressCounter) Read(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent += int64(len(b))
	if c.progress != nil {
		c.progress(c.sent)
	}
	return len(b), nil
}

// publicReadPolicy is an S3 bucket policy allowing anonymous GET on every object.
func publicReadPolicy(bucket string) string {
	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Effect":    "Allow",
				"Principal": "*",
				"Action":    "s3:GetObject",
				"Resource":  fmt.Sprintf("arn:aws:s3:::%s/*", bucket),
			},
		},
	}
	b, _ := json.Marshal(policy)
	return string(b)
}
