// Package terminal implements the share host callbacks for a command-line
// session: URLs go to the clipboard and stdout, progress is drawn on stderr.
package terminal

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/dvloznov/blobshare/internal/share"
)

const barWidth = 30

// Host renders share callbacks on a terminal. It is safe for concurrent
// shares; output lines are serialised.
type Host struct {
	log       zerolog.Logger
	out       io.Writer
	errOut    io.Writer
	tty       bool
	clipboard func(string) error

	mu sync.Mutex
}

// Option configures a Host.
type Option func(*Host)

// WithOutput replaces stdout and stderr.
func WithOutput(out, errOut io.Writer) Option {
	return func(h *Host) {
		h.out = out
		h.errOut = errOut
	}
}

// WithTTY forces interactive progress rendering on or off.
func WithTTY(tty bool) Option {
	return func(h *Host) {
		h.tty = tty
	}
}

// WithClipboard replaces the system clipboard writer.
func WithClipboard(write func(string) error) Option {
	return func(h *Host) {
		h.clipboard = write
	}
}

// New creates a Host on the process's stdout and stderr.
func New(log zerolog.Logger, opts ...Option) *Host {
	h := &Host{
		log:       log,
		out:       os.Stdout,
		errOut:    os.Stderr,
		tty:       term.IsTerminal(int(os.Stderr.Fd())),
		clipboard: clipboard.WriteAll,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Invocation describes one file handed to a share service.
type Invocation struct {
	Path            string
	Format          string
	DefaultFileName string
	Config          share.Config

	// Cancel aborts the session, OpenConfigFile opens the config editor.
	Cancel         func()
	OpenConfigFile func()
}

// Context builds the share.Context for one invocation.
func (h *Host) Context(inv Invocation) *share.Context {
	p := &progress{host: h, name: inv.DefaultFileName, lastStep: -1}

	cancel := inv.Cancel
	if cancel == nil {
		cancel = func() {}
	}
	openConfig := inv.OpenConfigFile
	if openConfig == nil {
		openConfig = func() {
			h.log.Warn().Msg("Opening the config file is not available here")
		}
	}

	return &share.Context{
		Format:          inv.Format,
		DefaultFileName: inv.DefaultFileName,
		FilePath:        share.StaticFilePath(inv.Path),
		Config:          inv.Config,
		CopyToClipboard: h.copyToClipboard,
		Notify:          h.notify,
		SetProgress:     p.set,
		OpenConfigFile:  openConfig,
		Cancel:          cancel,
	}
}

func (h *Host) copyToClipboard(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.clipboard(text); err != nil {
		h.log.Warn().Err(err).Msg("Clipboard unavailable, printing URL instead")
	}
	fmt.Fprintln(h.out, text)
}

func (h *Host) notify(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	color.New(color.FgGreen).Fprintln(h.errOut, text)
}

type progress struct {
	host     *Host
	name     string
	lastStep int
}

func (p *progress) set(label string, fraction float64) {
	h := p.host
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.tty {
		// Log every 10% so redirected output stays readable.
		step := int(math.Floor(fraction * 10))
		if step == p.lastStep {
			return
		}
		p.lastStep = step
		h.log.Debug().Str("file", p.name).Float64("progress", fraction).Msg(label)
		return
	}

	fmt.Fprintf(h.errOut, "\r%s %s %s", p.name, label, ProgressBar(fraction, barWidth))
	if fraction >= 1 {
		fmt.Fprintln(h.errOut)
	}
}

// ProgressBar renders fraction as a fixed-width bar followed by a percentage,
// e.g. "[#####-----]  50%".
func ProgressBar(fraction float64, width int) string {
	fraction = math.Max(0, math.Min(1, fraction))
	filled := int(math.Round(fraction * float64(width)))
	return fmt.Sprintf("[%s%s] %3d%%",
		strings.Repeat("#", filled),
		strings.Repeat("-", width-filled),
		int(math.Round(fraction*100)),
	)
}
