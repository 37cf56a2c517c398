package terminal

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/dvloznov/blobshare/internal/share"
)

func init() {
	color.NoColor = true
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		fraction float64
		want     string
	}{
		{0, "[----------]   0%"},
		{0.5, "[#####-----]  50%"},
		{1, "[##########] 100%"},
		{1.7, "[##########] 100%"},
		{-0.2, "[----------]   0%"},
	}

	for _, tt := range tests {
		if got := ProgressBar(tt.fraction, 10); got != tt.want {
			t.Errorf("ProgressBar(%v) = %q, want %q", tt.fraction, got, tt.want)
		}
	}
}

func newTestHost(tty bool, clip func(string) error) (*Host, *bytes.Buffer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut, logs := &bytes.Buffer{}, &bytes.Buffer{}, &bytes.Buffer{}
	log := zerolog.New(logs).Level(zerolog.DebugLevel)
	h := New(log, WithOutput(out, errOut), WithTTY(tty), WithClipboard(clip))
	return h, out, errOut, logs
}

func TestCopyToClipboard(t *testing.T) {
	var copied string
	h, out, _, logs := newTestHost(false, func(s string) error {
		copied = s
		return nil
	})

	sc := h.Context(Invocation{Path: "/tmp/a.gif", Format: "gif", DefaultFileName: "a.gif", Config: share.MapConfig{}})
	sc.CopyToClipboard("https://example.com/a.gif")

	if copied != "https://example.com/a.gif" {
		t.Errorf("clipboard = %q", copied)
	}
	if strings.TrimSpace(out.String()) != "https://example.com/a.gif" {
		t.Errorf("stdout = %q", out.String())
	}
	if strings.Contains(logs.String(), "Clipboard unavailable") {
		t.Error("unexpected clipboard warning")
	}
}

func TestCopyToClipboardFallback(t *testing.T) {
	h, out, _, logs := newTestHost(false, func(string) error {
		return errors.New("no clipboard utilities available")
	})

	sc := h.Context(Invocation{DefaultFileName: "a.gif"})
	sc.CopyToClipboard("https://example.com/a.gif")

	if !strings.Contains(out.String(), "https://example.com/a.gif") {
		t.Errorf("URL not printed, stdout = %q", out.String())
	}
	if !strings.Contains(logs.String(), "Clipboard unavailable") {
		t.Errorf("missing warning, logs = %s", logs.String())
	}
}

func TestNotify(t *testing.T) {
	h, _, errOut, _ := newTestHost(false, func(string) error { return nil })

	h.Context(Invocation{}).Notify("Blob URL copied to the clipboard")

	if errOut.String() != "Blob URL copied to the clipboard\n" {
		t.Errorf("stderr = %q", errOut.String())
	}
}

func TestProgressTTY(t *testing.T) {
	h, _, errOut, _ := newTestHost(true, func(string) error { return nil })

	sc := h.Context(Invocation{DefaultFileName: "a.gif"})
	sc.SetProgress("Uploading...", 0.5)
	sc.SetProgress("Uploading...", 1)

	got := errOut.String()
	if strings.Count(got, "\r") != 2 {
		t.Errorf("expected two redraws, got %q", got)
	}
	if !strings.HasSuffix(got, "100%\n") {
		t.Errorf("final line not terminated: %q", got)
	}
	if !strings.Contains(got, "a.gif Uploading...") {
		t.Errorf("missing label: %q", got)
	}
}

func TestProgressLogsWithoutTTY(t *testing.T) {
	h, _, errOut, logs := newTestHost(false, func(string) error { return nil })

	sc := h.Context(Invocation{DefaultFileName: "a.gif"})
	for _, f := range []float64{0.01, 0.02, 0.15, 0.16, 1} {
		sc.SetProgress("Uploading...", f)
	}

	if errOut.Len() != 0 {
		t.Errorf("progress drawn without a terminal: %q", errOut.String())
	}
	if n := strings.Count(logs.String(), "Uploading..."); n != 3 {
		t.Errorf("got %d progress log lines, want 3:\n%s", n, logs.String())
	}
}

func TestContextCallbacks(t *testing.T) {
	h, _, _, _ := newTestHost(false, func(string) error { return nil })

	canceled, opened := false, false
	sc := h.Context(Invocation{
		Path:           "/tmp/clip.mp4",
		Cancel:         func() { canceled = true },
		OpenConfigFile: func() { opened = true },
	})
	sc.Cancel()
	sc.OpenConfigFile()

	if !canceled || !opened {
		t.Errorf("canceled=%v opened=%v", canceled, opened)
	}

	path, err := sc.FilePath(context.Background())
	if err != nil || path != "/tmp/clip.mp4" {
		t.Errorf("FilePath = (%q, %v)", path, err)
	}
}
