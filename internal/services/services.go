// Package services is the catalogue of share services, one per blob-storage
// backend. Each service binds the uploader to a store opener, a config schema
// and a default URL pattern.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/blobshare/internal/blobstore"
	"github.com/dvloznov/blobshare/internal/share"
	"github.com/dvloznov/blobshare/internal/template"
	"github.com/dvloznov/blobshare/internal/uploader"
)

// ErrUnknownService is returned by Lookup for names outside the catalogue.
var ErrUnknownService = errors.New("unknown share service")

// Service names.
const (
	Azure = "azure"
	GCS   = "gcs"
	S3    = "s3"
	MinIO = "minio"
)

// Backend-specific config keys.
const (
	KeyRegion   = "region"
	KeyEndpoint = "endpoint"
)

// Default public URL patterns.
const (
	AzureURLPattern = "https://{accountName}.blob.core.windows.net/{container}/{filename}"
	GCSURLPattern   = "https://storage.googleapis.com/{container}/{filename}"
	S3URLPattern    = "https://{container}.s3.amazonaws.com/{filename}"
	MinIOURLPattern = "https://{endpoint}/{container}/{filename}"
)

type definition struct {
	name              string
	title             string
	defaultURLPattern string
	fields            []share.ConfigField
	placeholders      []string
	open              uploader.StoreOpener
	hooks             []uploader.RegistryHook
}

var catalogue = []definition{
	{
		name:              Azure,
		title:             "Azure Storage",
		defaultURLPattern: AzureURLPattern,
		fields: commonFields(
			"Storage account name", "",
			"Account key", "Shared key of the storage account",
			true, AzureURLPattern,
		),
		open: openAzure,
	},
	{
		name:              GCS,
		title:             "Google Cloud Storage",
		defaultURLPattern: GCSURLPattern,
		fields: commonFields(
			"Project ID", "Project that owns the bucket",
			"Credentials file", "Path to a service account JSON key. Leave empty to use application default credentials",
			false, GCSURLPattern,
		),
		open: openGCS,
	},
	{
		name:              S3,
		title:             "Amazon S3",
		defaultURLPattern: S3URLPattern,
		fields: append(commonFields(
			"Access key ID", "",
			"Secret access key", "",
			true, S3URLPattern,
		), share.ConfigField{
			Key:         KeyRegion,
			Title:       "Region",
			Description: "Region new buckets are created in",
			Type:        "string",
			Default:     "us-east-1",
		}),
		placeholders: []string{KeyRegion},
		open:         openS3,
		hooks:        []uploader.RegistryHook{configValue(KeyRegion)},
	},
	{
		name:              MinIO,
		title:             "MinIO",
		defaultURLPattern: MinIOURLPattern,
		fields: append(commonFields(
			"Access key", "",
			"Secret key", "",
			true, MinIOURLPattern,
		), share.ConfigField{
			Key:         KeyEndpoint,
			Title:       "Endpoint",
			Description: "Server address, e.g. play.min.io or http://localhost:9000",
			Type:        "string",
			Required:    true,
		}),
		placeholders: []string{KeyEndpoint},
		open:         openMinIO,
		hooks:        []uploader.RegistryHook{endpointHost},
	},
}

type options struct {
	open uploader.StoreOpener
	now  func() time.Time
}

// Option customises the services returned by All and Lookup.
type Option func(*options)

// WithOpener replaces every service's store opener.
func WithOpener(open uploader.StoreOpener) Option {
	return func(o *options) {
		o.open = open
	}
}

// WithClock replaces time.Now for the {date} placeholder.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// All returns every service in catalogue order.
func All(opts ...Option) []*share.Service {
	o := applyOptions(opts)
	out := make([]*share.Service, 0, len(catalogue))
	for _, def := range catalogue {
		out = append(out, def.build(o))
	}
	return out
}

// Lookup returns the service called name.
func Lookup(name string, opts ...Option) (*share.Service, error) {
	for _, def := range catalogue {
		if def.name == name {
			return def.build(applyOptions(opts)), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownService, name)
}

// Names lists the service names in catalogue order.
func Names() []string {
	names := make([]string, 0, len(catalogue))
	for _, def := range catalogue {
		names = append(names, def.name)
	}
	return names
}

// UnknownPlaceholders lists the tokens of the configured file and URL
// patterns that svc has no replacer for, as "filePattern: {name}". Such
// tokens end up verbatim in object names and URLs.
func UnknownPlaceholders(svc *share.Service, cfg share.Config) []string {
	known := make(map[string]bool, len(svc.Placeholders)+1)
	for _, name := range svc.Placeholders {
		known[name] = true
	}

	var unknown []string
	check := func(key string) {
		for _, name := range template.Placeholders(cfg.Get(key)) {
			if !known[name] {
				unknown = append(unknown, fmt.Sprintf("%s: {%s}", key, name))
			}
		}
	}
	check(share.KeyFilePattern)
	known[template.NameFilename] = true
	check(share.KeyURLPattern)
	return unknown
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (d definition) build(o options) *share.Service {
	open := d.open
	if o.open != nil {
		open = o.open
	}

	uopts := make([]uploader.Option, 0, len(d.hooks)+1)
	for _, hook := range d.hooks {
		uopts = append(uopts, uploader.WithRegistryHook(hook))
	}
	if o.now != nil {
		uopts = append(uopts, uploader.WithClock(o.now))
	}
	u := uploader.New(open, d.defaultURLPattern, uopts...)

	fields := make([]share.ConfigField, len(d.fields))
	copy(fields, d.fields)

	return &share.Service{
		Name:         d.name,
		Title:        d.title,
		Formats:      share.Formats(),
		Config:       fields,
		Placeholders: append(template.StandardNames(), d.placeholders...),
		Action:       u.Action,
	}
}

func commonFields(nameTitle, nameDesc, keyTitle, keyDesc string, keyRequired bool, urlPattern string) []share.ConfigField {
	return []share.ConfigField{
		{
			Key:         share.KeyAccountName,
			Title:       nameTitle,
			Description: nameDesc,
			Type:        "string",
			Required:    true,
		},
		{
			Key:         share.KeyAccountKey,
			Title:       keyTitle,
			Description: keyDesc,
			Type:        "string",
			Required:    keyRequired,
			Secret:      true,
		},
		{
			Key:         share.KeyContainer,
			Title:       "Container",
			Description: "Created on first upload with public read access",
			Type:        "string",
			Default:     share.DefaultContainer,
			Required:    true,
		},
		{
			Key:         share.KeyFilePattern,
			Title:       "File name pattern",
			Description: "Placeholders: {kapName} {basename} {ext} {uuid} {date:FORMAT} {random:N} {accountName} {container}",
			Type:        "string",
			Default:     share.DefaultFilePattern,
		},
		{
			Key:         share.KeyURLPattern,
			Title:       "URL pattern",
			Description: "Leave empty for " + urlPattern,
			Type:        "string",
		},
	}
}

// configValue exposes a config key as a placeholder of the same name.
func configValue(key string) uploader.RegistryHook {
	return func(reg *template.Registry, cfg share.Config) error {
		return reg.Value(key, cfg.Get(key))
	}
}

func endpointHost(reg *template.Registry, cfg share.Config) error {
	host, _ := blobstore.SplitEndpoint(cfg.Get(KeyEndpoint))
	return reg.Value(KeyEndpoint, host)
}

func openAzure(_ context.Context, cfg share.Config) (blobstore.Store, error) {
	store, err := blobstore.NewAzure(blobstore.AzureConfig{
		AccountName: cfg.Get(share.KeyAccountName),
		AccountKey:  cfg.Get(share.KeyAccountKey),
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

func openGCS(ctx context.Context, cfg share.Config) (blobstore.Store, error) {
	store, err := blobstore.NewGCS(ctx, blobstore.GCSConfig{
		ProjectID:       cfg.Get(share.KeyAccountName),
		CredentialsFile: cfg.Get(share.KeyAccountKey),
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

func openS3(ctx context.Context, cfg share.Config) (blobstore.Store, error) {
	store, err := blobstore.NewS3(ctx, blobstore.S3Config{
		AccessKeyID:     cfg.Get(share.KeyAccountName),
		SecretAccessKey: cfg.Get(share.KeyAccountKey),
		Region:          cfg.Get(KeyRegion),
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

func openMinIO(_ context.Context, cfg share.Config) (blobstore.Store, error) {
	store, err := blobstore.NewMinIO(blobstore.MinIOConfig{
		Endpoint:  cfg.Get(KeyEndpoint),
		AccessKey: cfg.Get(share.KeyAccountName),
		SecretKey: cfg.Get(share.KeyAccountKey),
		Region:    cfg.Get(KeyRegion),
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}
