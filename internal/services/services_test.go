package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dvloznov/blobshare/internal/blobstore"
	"github.com/dvloznov/blobshare/internal/share"
)

func TestAllCatalogueOrder(t *testing.T) {
	all := All()
	want := []string{Azure, GCS, S3, MinIO}
	if len(all) != len(want) {
		t.Fatalf("got %d services, want %d", len(all), len(want))
	}
	for i, svc := range all {
		if svc.Name != want[i] {
			t.Errorf("service %d = %q, want %q", i, svc.Name, want[i])
		}
		if svc.Action == nil {
			t.Errorf("%s has no action", svc.Name)
		}
		if len(svc.Formats) != len(share.Formats()) {
			t.Errorf("%s formats = %v", svc.Name, svc.Formats)
		}
	}

	names := Names()
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestLookup(t *testing.T) {
	svc, err := Lookup("azure")
	if err != nil {
		t.Fatalf("Lookup(azure): %v", err)
	}
	if svc.Title != "Azure Storage" {
		t.Errorf("title = %q", svc.Title)
	}

	_, err = Lookup("dropbox")
	if !errors.Is(err, ErrUnknownService) {
		t.Errorf("Lookup(dropbox) error = %v, want ErrUnknownService", err)
	}
}

func TestConfigSchema(t *testing.T) {
	tests := []struct {
		service    string
		extraKey   string
		keyNeeded  bool
		urlPattern string
	}{
		{Azure, "", true, AzureURLPattern},
		{GCS, "", false, GCSURLPattern},
		{S3, KeyRegion, true, S3URLPattern},
		{MinIO, KeyEndpoint, true, MinIOURLPattern},
	}

	for _, tt := range tests {
		t.Run(tt.service, func(t *testing.T) {
			svc, err := Lookup(tt.service)
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			fields := make(map[string]share.ConfigField)
			for _, f := range svc.Config {
				fields[f.Key] = f
			}

			for _, key := range []string{share.KeyAccountName, share.KeyAccountKey, share.KeyContainer, share.KeyFilePattern, share.KeyURLPattern} {
				if _, ok := fields[key]; !ok {
					t.Errorf("missing config field %q", key)
				}
			}
			if tt.extraKey != "" {
				if _, ok := fields[tt.extraKey]; !ok {
					t.Errorf("missing config field %q", tt.extraKey)
				}
			}

			if !fields[share.KeyAccountName].Required {
				t.Error("accountName must be required")
			}
			if got := fields[share.KeyAccountKey]; got.Required != tt.keyNeeded || !got.Secret {
				t.Errorf("accountKey = %+v", got)
			}

			defaults := svc.Defaults()
			if defaults[share.KeyContainer] != "kap" {
				t.Errorf("container default = %q, want kap", defaults[share.KeyContainer])
			}
			if defaults[share.KeyFilePattern] != "{kapName}" {
				t.Errorf("filePattern default = %q", defaults[share.KeyFilePattern])
			}
			if defaults[share.KeyURLPattern] != "" {
				t.Errorf("urlPattern default = %q, want empty", defaults[share.KeyURLPattern])
			}
		})
	}
}

func TestSchemaIsCopied(t *testing.T) {
	a, _ := Lookup(Azure)
	a.Config[0].Title = "changed"

	b, _ := Lookup(Azure)
	if b.Config[0].Title == "changed" {
		t.Error("Lookup returned a shared config schema")
	}
}

func TestDefaultURLPatterns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("not really a video"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	tests := []struct {
		service string
		config  share.MapConfig
		want    string
	}{
		{Azure, share.MapConfig{"accountName": "acct", "container": "kap"}, "https://acct.blob.core.windows.net/kap/clip.mp4"},
		{GCS, share.MapConfig{"accountName": "proj", "container": "media"}, "https://storage.googleapis.com/media/clip.mp4"},
		{S3, share.MapConfig{"accountName": "AKIA", "container": "bucket"}, "https://bucket.s3.amazonaws.com/clip.mp4"},
		{MinIO, share.MapConfig{"accountName": "minio", "container": "kap", "endpoint": "http://localhost:9000"}, "https://localhost:9000/kap/clip.mp4"},
		{S3, share.MapConfig{"container": "bucket", "region": "eu-west-1", "urlPattern": "https://s3.{region}.amazonaws.com/{container}/{filename}"}, "https://s3.eu-west-1.amazonaws.com/bucket/clip.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			store := blobstore.NewMemory()
			opener := func(context.Context, share.Config) (blobstore.Store, error) { return store, nil }
			svc, err := Lookup(tt.service, WithOpener(opener))
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}

			var url string
			sc := &share.Context{
				Format:          "mp4",
				DefaultFileName: "clip.mp4",
				FilePath:        share.StaticFilePath(path),
				Config:          tt.config,
				CopyToClipboard: func(text string) { url = text },
				Notify:          func(string) {},
				SetProgress:     func(string, float64) {},
				OpenConfigFile:  func() {},
				Cancel:          func() {},
			}
			if err := svc.Action(context.Background(), sc); err != nil {
				t.Fatalf("Action: %v", err)
			}
			if url != tt.want {
				t.Errorf("url = %q, want %q", url, tt.want)
			}

			obj, ok := store.Object(tt.config.Get("container"), "clip.mp4")
			if !ok {
				t.Fatal("object not uploaded")
			}
			if obj.ContentType != "video/mp4" {
				t.Errorf("content type = %q", obj.ContentType)
			}
		})
	}
}

func TestPlaceholders(t *testing.T) {
	svc, _ := Lookup(MinIO)
	var hasEndpoint, hasFilename bool
	for _, p := range svc.Placeholders {
		hasEndpoint = hasEndpoint || p == KeyEndpoint
		hasFilename = hasFilename || p == "filename"
	}
	if !hasEndpoint {
		t.Errorf("minio placeholders %v lack endpoint", svc.Placeholders)
	}
	if hasFilename {
		t.Error("filename is only usable in URL patterns")
	}
}

func TestUnknownPlaceholders(t *testing.T) {
	tests := []struct {
		name    string
		service string
		cfg     share.MapConfig
		want    []string
	}{
		{"defaults", Azure, share.MapConfig{share.KeyFilePattern: share.DefaultFilePattern}, nil},
		{
			"known tokens",
			S3,
			share.MapConfig{
				share.KeyFilePattern: "{basename}/{date:YYYY}_{random:8}.{ext}",
				share.KeyURLPattern:  "https://{container}.s3.{region}.amazonaws.com/{filename}",
			},
			nil,
		},
		{
			"typos",
			MinIO,
			share.MapConfig{
				share.KeyFilePattern: "{basenme}_{uuid}.{ext}",
				share.KeyURLPattern:  "https://{endpoint}/{container}/{fileName}",
			},
			[]string{"filePattern: {basenme}", "urlPattern: {fileName}"},
		},
		{"filename outside URL", GCS, share.MapConfig{share.KeyFilePattern: "{filename}"}, []string{"filePattern: {filename}"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := Lookup(tt.service)
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			got := UnknownPlaceholders(svc, tt.cfg)
			if len(got) != len(tt.want) {
				t.Fatalf("UnknownPlaceholders = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("UnknownPlaceholders[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
