package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dvloznov/blobshare/internal/share"
)

func testServices() []*share.Service {
	return []*share.Service{
		{
			Name: "azure",
			Config: []share.ConfigField{
				{Key: share.KeyAccountName, Required: true},
				{Key: share.KeyAccountKey, Required: true, Secret: true},
				{Key: share.KeyContainer, Default: "kap", Required: true},
				{Key: share.KeyFilePattern, Default: "{kapName}"},
				{Key: share.KeyURLPattern},
			},
		},
		{
			Name: "minio",
			Config: []share.ConfigField{
				{Key: share.KeyAccountName, Required: true},
				{Key: share.KeyContainer, Default: "kap", Required: true},
				{Key: "endpoint", Required: true},
			},
		},
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blobshare.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadServiceConfig(t *testing.T) {
	path := writeConfig(t, `
azure:
  accountName: myaccount
  container: media
minio:
  endpoint: http://localhost:9000
`)
	t.Setenv("BLOBSHARE_AZURE_ACCOUNTKEY", "c2VjcmV0")

	store, err := Load(path, testServices())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	azure := store.Service("azure")
	tests := []struct {
		key  string
		want string
	}{
		{share.KeyAccountName, "myaccount"},
		{share.KeyAccountKey, "c2VjcmV0"},
		{share.KeyContainer, "media"},
		{share.KeyFilePattern, "{kapName}"},
		{share.KeyURLPattern, ""},
		{"unknown", ""},
	}
	for _, tt := range tests {
		if got := azure.Get(tt.key); got != tt.want {
			t.Errorf("azure.%s = %q, want %q", tt.key, got, tt.want)
		}
	}

	if got := store.Service("minio").Get(share.KeyContainer); got != "kap" {
		t.Errorf("minio.container = %q, want default kap", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", "blobshare.yaml")

	store, err := Load(path, testServices())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if store.Path() != path {
		t.Errorf("Path = %q, want %q", store.Path(), path)
	}
	if got := store.Service("azure").Get(share.KeyContainer); got != "kap" {
		t.Errorf("container = %q, want kap", got)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	path := writeConfig(t, "azure: [unterminated")

	if _, err := Load(path, testServices()); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestSettings(t *testing.T) {
	path := writeConfig(t, `
server:
  workers: 2
redis:
  url: redis://localhost:6379/0
`)
	t.Setenv("BLOBSHARE_SERVER_PORT", "9090")
	t.Setenv("BLOBSHARE_LOG_LEVEL", "debug")

	store, err := Load(path, testServices())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	settings, err := store.Settings()
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}

	if settings.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", settings.Server.Port)
	}
	if settings.Server.Workers != 2 {
		t.Errorf("workers = %d, want 2", settings.Server.Workers)
	}
	if settings.Server.MaxRetries != 0 {
		t.Errorf("max retries = %d, want 0", settings.Server.MaxRetries)
	}
	if settings.Server.MaxUploadMB != 512 || settings.Server.APIToken != "" {
		t.Errorf("server = %+v", settings.Server)
	}
	if settings.Redis.URL != "redis://localhost:6379/0" {
		t.Errorf("redis url = %q", settings.Redis.URL)
	}
	if settings.History.Project != "" || settings.History.Table != "shares" {
		t.Errorf("history = %+v", settings.History)
	}
	if settings.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", settings.Log.Level)
	}
	if settings.DefaultService != "azure" {
		t.Errorf("default service = %q", settings.DefaultService)
	}
}

func TestMissing(t *testing.T) {
	path := writeConfig(t, `
azure:
  accountName: myaccount
`)
	store, err := Load(path, testServices())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	missing := store.Missing(testServices()[0])
	if len(missing) != 1 || missing[0] != share.KeyAccountKey {
		t.Errorf("Missing = %v, want [accountKey]", missing)
	}
}

func TestOpenInEditorCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "blobshare.yaml")
	t.Setenv("EDITOR", "true")
	t.Setenv("BLOBSHARE_AZURE_ACCOUNTKEY", "do-not-write")

	store, err := Load(path, testServices())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := store.OpenInEditor(context.Background()); err != nil {
		t.Fatalf("OpenInEditor: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "{kapName}") {
		t.Errorf("written config lacks defaults:\n%s", content)
	}
	if strings.Contains(content, "do-not-write") {
		t.Error("environment overrides leaked into the config file")
	}

	// An existing file is kept as is.
	if err := os.WriteFile(path, []byte("azure:\n  container: mine\n"), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := store.OpenInEditor(context.Background()); err != nil {
		t.Fatalf("OpenInEditor: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "azure:\n  container: mine\n" {
		t.Errorf("existing config overwritten:\n%s", data)
	}
}

func TestOpenInEditorFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blobshare.yaml")
	t.Setenv("EDITOR", "false")

	store, err := Load(path, testServices())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := store.OpenInEditor(context.Background()); err == nil {
		t.Error("expected error when the editor exits non-zero")
	}
}
