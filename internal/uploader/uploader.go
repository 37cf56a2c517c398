// Package uploader runs a share: it makes sure the destination container
// exists, names the object from the configured file pattern, uploads the
// captured file with progress reporting and hands the public URL back to the
// host.
//
// Failures are returned to the host as they happen. Nothing is retried and
// nothing already uploaded is cleaned up. The host's Cancel capability is
// not observed here.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/blobshare/internal/blobstore"
	"github.com/dvloznov/blobshare/internal/share"
	"github.com/dvloznov/blobshare/internal/template"
)

// StoreOpener connects to the backend described by a service configuration.
type StoreOpener func(ctx context.Context, cfg share.Config) (blobstore.Store, error)

// RegistryHook adds service-specific placeholders before the file pattern
// is expanded.
type RegistryHook func(reg *template.Registry, cfg share.Config) error

// Uploader runs shares against one kind of backend.
type Uploader struct {
	open              StoreOpener
	defaultURLPattern string
	hooks             []RegistryHook
	now               func() time.Time
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithRegistryHook registers extra placeholders for every share.
func WithRegistryHook(hook RegistryHook) Option {
	return func(u *Uploader) {
		u.hooks = append(u.hooks, hook)
	}
}

// WithClock replaces time.Now for the {date} placeholder.
func WithClock(now func() time.Time) Option {
	return func(u *Uploader) {
		u.now = now
	}
}

// New creates an Uploader. defaultURLPattern is used when the configured
// urlPattern is empty.
func New(open StoreOpener, defaultURLPattern string, opts ...Option) *Uploader {
	u := &Uploader{
		open:              open,
		defaultURLPattern: defaultURLPattern,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Action implements share.ActionFunc.
func (u *Uploader) Action(ctx context.Context, sc *share.Context) error {
	// 1. Wait for the captured file.
	filePath, err := sc.FilePath(ctx)
	if err != nil {
		return fmt.Errorf("resolve source file: %w", err)
	}

	cfg := sc.Config
	containerName := cfg.Get(share.KeyContainer)

	reg := template.NewRegistry()
	err = template.RegisterStandard(reg, template.Values{
		AccountName:     cfg.Get(share.KeyAccountName),
		Container:       containerName,
		SourcePath:      filePath,
		DefaultFileName: sc.DefaultFileName,
		Now:             u.now,
	})
	if err != nil {
		return err
	}
	for _, hook := range u.hooks {
		if err := hook(reg, cfg); err != nil {
			return err
		}
	}

	store, err := u.open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	// 2. Create the container; it already existing is fine.
	if err := store.CreateContainer(ctx, containerName); err != nil && !errors.Is(err, blobstore.ErrContainerExists) {
		return err
	}

	// 3. Name the object.
	filename := template.Expand(orDefault(cfg.Get(share.KeyFilePattern), share.DefaultFilePattern), reg)
	if err := reg.Value(template.NameFilename, filename); err != nil {
		return err
	}
	reg.Freeze()

	// 4. Upload.
	info, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("stat source file: %w", err)
	}
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	defer f.Close()

	contentType, _ := share.ContentType(sc.Format)
	size := info.Size()
	obj := blobstore.Object{
		Container:   containerName,
		Name:        filename,
		ContentType: contentType,
		File:        f,
		Size:        size,
	}
	err = store.Upload(ctx, obj, func(transferred int64) {
		sc.SetProgress(share.ProgressLabel, Fraction(transferred, size))
	})
	if err != nil {
		return err
	}

	// 5. Build the public URL.
	url := template.Expand(orDefault(cfg.Get(share.KeyURLPattern), u.defaultURLPattern), reg)

	// 6. Hand it to the host.
	sc.CopyToClipboard(url)
	sc.Notify(share.CopiedMessage)
	return nil
}

// Fraction returns transferred/total clamped to [0, 1]. An empty file is
// complete as soon as anything is reported.
func Fraction(transferred, total int64) float64 {
	if total <= 0 {
		return 1
	}
	f := float64(transferred) / float64(total)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
