// Package report renders the human-readable side of azint: one status line
// per processed file and an end-of-batch summary table.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

// Kind classifies a status line.
type Kind int

// Status kinds.
const (
	KindConverted Kind = iota
	KindSkipped
	KindFailed
)

// String returns the label printed in status lines.
func (k Kind) String() string {
	switch k {
	case KindConverted:
		return "converted"
	case KindSkipped:
		return "skipped"
	case KindFailed:
		return "FAILED"
	default:
		return "unknown"
	}
}

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

func (k Kind) color() string {
	switch k {
	case KindConverted:
		return ansiGreen
	case KindSkipped:
		return ansiYellow
	case KindFailed:
		return ansiRed
	default:
		return ""
	}
}

// Printer writes status lines. It is safe for concurrent use.
type Printer struct {
	mu       sync.Mutex
	out      io.Writer
	colorize bool
	now      func() time.Time
}

// NewPrinter returns a printer writing to w. Colour is used only when w is
// a terminal and noColor is false. A nil w discards output.
func NewPrinter(w io.Writer, noColor bool) *Printer {
	if w == nil {
		w = io.Discard
	}

	return &Printer{
		out:      w,
		colorize: !noColor && ShouldColorize(w),
		now:      time.Now,
	}
}

// Converted reports a written pattern of size bytes.
func (p *Printer) Converted(image, pattern string, size int) {
	p.line(KindConverted, image, fmt.Sprintf("→ %s (%s)", filepath.Base(pattern), humanize.Bytes(uint64(max(size, 0)))))
}

// Skipped reports an image that needed no work.
func (p *Printer) Skipped(image, reason string) {
	p.line(KindSkipped, image, "("+reason+")")
}

// Failed reports a per-file error.
func (p *Printer) Failed(image string, err error) {
	p.line(KindFailed, image, "→ "+err.Error())
}

// Infof prints a free-form line without status decoration.
func (p *Printer) Infof(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *Printer) line(kind Kind, image, detail string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	base := fmt.Sprintf("[%s] %-9s %s %s", p.now().Format("15:04:05"), kind, filepath.Base(image), detail)

	if p.colorize {
		base = kind.color() + base + ansiReset
	}

	fmt.Fprintln(p.out, base)
}

// ShouldColorize reports whether w is an interactive terminal.
func ShouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}

	fd := file.Fd()

	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
