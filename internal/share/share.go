// Package share defines the contract between a host application and a share
// service: the per-invocation Context handed to an action, the Service
// descriptor a host renders and invokes, and the formats a service accepts.
package share

import (
	"context"
	"sort"
)

// Config keys every share service understands.
const (
	KeyAccountName = "accountName"
	KeyAccountKey  = "accountKey"
	KeyContainer   = "container"
	KeyFilePattern = "filePattern"
	KeyURLPattern  = "urlPattern"
)

// DefaultFilePattern names uploads after the host's default filename.
const DefaultFilePattern = "{kapName}"

// DefaultContainer is the container used when none is configured.
const DefaultContainer = "kap"

// ProgressLabel is the label reported with every upload progress update.
const ProgressLabel = "Uploading..."

// CopiedMessage is the notification sent once the URL is on the clipboard.
const CopiedMessage = "Blob URL copied to the clipboard"

var contentTypes = map[string]string{
	"gif":  "image/gif",
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"apng": "image/apng",
}

// ContentType returns the MIME type for a format identifier.
// The second result is false for formats outside the table.
func ContentType(format string) (string, bool) {
	ct, ok := contentTypes[format]
	return ct, ok
}

// Formats returns the supported format identifiers, sorted.
// It is derived from the content-type table so the two never drift apart.
func Formats() []string {
	formats := make([]string, 0, len(contentTypes))
	for f := range contentTypes {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	return formats
}

// Supported reports whether format is in the content-type table.
func Supported(format string) bool {
	_, ok := contentTypes[format]
	return ok
}

// Config is the host-held configuration of a service, read by key.
// Missing keys read as the empty string.
type Config interface {
	Get(key string) string
}

// MapConfig is a Config backed by a plain map.
type MapConfig map[string]string

// Get implements Config.
func (m MapConfig) Get(key string) string {
	return m[key]
}

// FilePathFunc resolves the path of the captured file once it is on disk.
type FilePathFunc func(ctx context.Context) (string, error)

// StaticFilePath returns a FilePathFunc for a file that already exists.
func StaticFilePath(path string) FilePathFunc {
	return func(context.Context) (string, error) {
		return path, nil
	}
}

// Context is created by the host for a single invocation and discarded after.
type Context struct {
	// Format is the format identifier of the captured file, e.g. "gif".
	Format string

	// DefaultFileName is the file name the host would use, e.g. "Kapture 2024-01-01.gif".
	DefaultFileName string

	// FilePath resolves the source file path.
	FilePath FilePathFunc

	// Config reads the service configuration.
	Config Config

	CopyToClipboard func(text string)
	Notify          func(text string)

	// SetProgress reports progress as a fraction in [0, 1].
	SetProgress func(label string, fraction float64)

	OpenConfigFile func()
	Cancel         func()
}

// ConfigField describes one configuration key for hosts that render a form.
type ConfigField struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type"`
	Default     string `json:"default"`
	Required    bool   `json:"required"`
	Secret      bool   `json:"secret,omitempty"`
}

// ActionFunc performs a share for one invocation.
type ActionFunc func(ctx context.Context, sc *Context) error

// Service is what a host sees of a share service.
type Service struct {
	Name    string        `json:"name"`
	Title   string        `json:"title"`
	Formats []string      `json:"formats"`
	Config  []ConfigField `json:"config"`

	// Placeholders lists the template names usable in the file pattern.
	Placeholders []string `json:"placeholders"`

	Action ActionFunc `json:"-"`
}

// Defaults returns the schema defaults keyed by config key.
func (s *Service) Defaults() map[string]string {
	defaults := make(map[string]string, len(s.Config))
	for _, f := range s.Config {
		defaults[f.Key] = f.Default
	}
	return defaults
}

// Supports reports whether the service accepts format.
func (s *Service) Supports(format string) bool {
	for _, f := range s.Formats {
		if f == format {
			return true
		}
	}
	return false
}
