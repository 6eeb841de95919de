package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/maxvaer/dirscan/internal/scanner"
)

// ReportWriter writes a plain text report meant to be saved as a file.
type ReportWriter struct {
	w        io.Writer
	now      func() time.Time
	findings []scanner.Finding
}

func (r *ReportWriter) WriteHeader() error { return nil }

func (r *ReportWriter) WriteResult(f *scanner.Finding) error {
	r.findings = append(r.findings, *f)
	return nil
}

// WriteFooter emits the header block followed by one line per finding; the
// header needs the final count.
func (r *ReportWriter) WriteFooter(stats Stats) error {
	now := time.Now
	if r.now != nil {
		now = r.now
	}
	var b strings.Builder
	b.WriteString("dirscan results\n")
	fmt.Fprintf(&b, "Generated: %s\n", now().Format(time.DateTime))
	if stats.Status != scanner.StatusIdle {
		fmt.Fprintf(&b, "Status: %s (%d/%d requests)\n", stats.Status, stats.Completed, stats.Total)
	}
	fmt.Fprintf(&b, "Total Found: %d\n", len(r.findings))
	b.WriteString(strings.Repeat("-", 50) + "\n\n")
	for i := range r.findings {
		f := &r.findings[i]
		fmt.Fprintf(&b, "[+] Found: %s [Status: %d] [Time: %s]\n", f.URL, f.StatusCode, f.FoundAtDisplay())
	}
	_, err := io.WriteString(r.w, b.String())
	return err
}

func (r *ReportWriter) Close() error { return nil }
