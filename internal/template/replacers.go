package template

import (
	"crypto/rand"
	"encoding/hex"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nleeper/goment"
)

// Placeholder names registered by RegisterStandard, plus the URL-only
// filename placeholder.
const (
	NameAccountName = "accountName"
	NameContainer   = "container"
	NameBasename    = "basename"
	NameExt         = "ext"
	NameUUID        = "uuid"
	NameKapName     = "kapName"
	NameDate        = "date"
	NameRandom      = "random"
	NameFilename    = "filename"
)

// DefaultDateFormat is used by {date} when no format is given.
const DefaultDateFormat = "YYYY-MM-DDTHH:mm:ssZ"

// DefaultRandomLength is used by {random} when no usable count is given.
const DefaultRandomLength = 16

// MaxRandomLength caps {random:N}; larger counts produce this many characters.
const MaxRandomLength = 1024

// Values are the call-scoped inputs of the standard replacers.
type Values struct {
	AccountName     string
	Container       string
	SourcePath      string
	DefaultFileName string

	// Now defaults to time.Now.
	Now func() time.Time
}

// RegisterStandard registers every standard placeholder except filename,
// which only exists once the destination name has been resolved.
func RegisterStandard(r *Registry, v Values) error {
	now := v.Now
	if now == nil {
		now = time.Now
	}
	base, ext := SplitName(filepath.Base(v.SourcePath))

	entries := []struct {
		name string
		fn   Replacer
	}{
		{NameAccountName, constant(v.AccountName)},
		{NameContainer, constant(v.Container)},
		{NameBasename, constant(base)},
		{NameExt, constant(strings.ToLower(ext))},
		{NameUUID, func(string) string { return uuid.NewString() }},
		{NameKapName, constant(v.DefaultFileName)},
		{NameDate, func(format string) string { return FormatDate(now(), format) }},
		{NameRandom, func(arg string) string { return RandomHex(parseCount(arg)) }},
	}
	for _, e := range entries {
		if err := r.Register(e.name, e.fn); err != nil {
			return err
		}
	}
	return nil
}

// StandardNames lists the placeholders available in a file pattern.
func StandardNames() []string {
	return []string{
		NameKapName, NameBasename, NameExt, NameUUID, NameDate, NameRandom,
		NameAccountName, NameContainer,
	}
}

func constant(s string) Replacer {
	return func(string) string { return s }
}

// SplitName splits a file name into its base and its extension without the
// dot. Dot files like ".env" and names ending in a dot have no extension.
func SplitName(name string) (base, ext string) {
	i := strings.LastIndex(name, ".")
	if i <= 0 {
		return name, ""
	}
	return name[:i], name[i+1:]
}

// FormatDate formats t with a moment/day.js style format string.
func FormatDate(t time.Time, format string) string {
	if format == "" {
		format = DefaultDateFormat
	}
	g, err := goment.New(t)
	if err != nil {
		return t.Format(time.RFC3339)
	}
	return g.Format(format)
}

// RandomHex returns n lowercase hexadecimal characters from crypto/rand.
func RandomHex(n int) string {
	if n <= 0 {
		return ""
	}
	buf := make([]byte, (n+1)/2)
	// crypto/rand.Read does not return an error on supported platforms.
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)[:n]
}

func parseCount(arg string) int {
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		return DefaultRandomLength
	}
	return min(n, MaxRandomLength)
}
