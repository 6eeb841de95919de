package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/maxvaer/dirscan/internal/scanner"
)

// SnapshotFunc returns the current state of the session being displayed.
type SnapshotFunc func() scanner.Snapshot

// Progress polls a session and draws a status line.
type Progress struct {
	source   SnapshotFunc
	w        io.Writer
	interval time.Duration
	live     bool
	quiet    bool
	done     chan struct{}
	exited   chan struct{}
}

// NewProgress creates a progress display writing to w. The line is redrawn
// in place only when w is a terminal; otherwise a single summary line is
// printed when the display stops.
func NewProgress(source SnapshotFunc, w io.Writer, quiet bool) *Progress {
	return &Progress{
		source:   source,
		w:        w,
		interval: 500 * time.Millisecond,
		live:     IsTerminal(w),
		quiet:    quiet,
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
}

// IsTerminal reports whether w is a terminal file descriptor.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Start begins periodically printing progress.
func (p *Progress) Start() {
	if p.quiet {
		close(p.exited)
		return
	}
	go func() {
		defer close(p.exited)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if p.live {
					fmt.Fprint(p.w, "\r\033[K"+p.line())
				}
			case <-p.done:
				if p.live {
					fmt.Fprint(p.w, "\r\033[K")
				}
				fmt.Fprintln(p.w, p.line())
				return
			}
		}
	}()
}

// Stop draws the final line and ends the display.
func (p *Progress) Stop() {
	close(p.done)
	<-p.exited
}

func (p *Progress) line() string {
	snap := p.source()
	var rate float64
	if !snap.StartedAt.IsZero() {
		if elapsed := time.Since(snap.StartedAt).Seconds(); elapsed > 0 {
			rate = float64(snap.Completed) / elapsed
		}
	}

	eta := ""
	if rate > 0 && snap.Completed < snap.Total && !snap.Status.Terminal() {
		remaining := float64(snap.Total-snap.Completed) / rate
		eta = fmt.Sprintf(" | ETA: %s", time.Duration(remaining*float64(time.Second)).Round(time.Second))
	}

	return fmt.Sprintf("[%3.0f%%] %d/%d | %.0f req/s | Found: %d | %s%s",
		snap.Progress(), snap.Completed, snap.Total, rate,
		snap.ResultCount, snap.Status, eta)
}
