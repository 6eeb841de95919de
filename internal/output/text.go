package output

import (
	"fmt"
	"io"
	"time"

	"github.com/maxvaer/dirscan/internal/scanner"
)

// ANSI color codes.
const (
	colorReset  = "\033[0m"
	colorDim    = "\033[2m"
	colorGreen  = "\033[32m"
	colorCyan   = "\033[36m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
)

// TextWriter writes one colored line per finding.
type TextWriter struct {
	w       io.Writer
	summary io.Writer
	noColor bool
	quiet   bool
}

func (t *TextWriter) WriteHeader() error {
	if t.quiet {
		return nil
	}
	dim, reset := colorDim, colorReset
	if t.noColor {
		dim, reset = "", ""
	}
	_, err := fmt.Fprintf(t.w, "%sCode  Method  Time      URL%s\n", dim, reset)
	return err
}

func (t *TextWriter) WriteResult(f *scanner.Finding) error {
	color := t.colorForStatus(f.StatusCode)
	reset := colorReset
	if t.noColor {
		reset = ""
	}

	_, err := fmt.Fprintf(t.w, "%s%3d%s   %-6s  %s  %s\n",
		color, f.StatusCode, reset,
		f.Method,
		f.FoundAtDisplay(),
		f.URL,
	)
	return err
}

func (t *TextWriter) WriteFooter(stats Stats) error {
	if t.quiet || t.summary == nil {
		return nil
	}
	_, err := fmt.Fprintf(t.summary,
		"\nStatus: %s | Completed: %d/%d requests | Found: %d | Duration: %s | %.1f req/s\n",
		stats.Status,
		stats.Completed, stats.Total,
		stats.Found,
		stats.Duration.Round(time.Millisecond),
		stats.RequestsPerSec,
	)
	return err
}

func (t *TextWriter) Close() error { return nil }

func (t *TextWriter) colorForStatus(code int) string {
	if t.noColor {
		return ""
	}
	switch {
	case code >= 200 && code < 300:
		return colorGreen
	case code >= 300 && code < 400:
		return colorCyan
	case code >= 400 && code < 500:
		return colorYellow
	case code >= 500:
		return colorRed
	default:
		return ""
	}
}
