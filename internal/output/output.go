package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/maxvaer/dirscan/internal/scanner"
)

// Stats holds aggregate scan statistics.
type Stats struct {
	Status         scanner.Status
	Total          int64
	Completed      int64
	Found          int
	Duration       time.Duration
	RequestsPerSec float64
}

// StatsFromSnapshot derives the footer statistics of a finished session.
func StatsFromSnapshot(snap scanner.Snapshot) Stats {
	s := Stats{
		Status:    snap.Status,
		Total:     snap.Total,
		Completed: snap.Completed,
		Found:     snap.ResultCount,
	}
	if !snap.StartedAt.IsZero() {
		end := snap.FinishedAt
		if end.IsZero() {
			end = time.Now()
		}
		s.Duration = end.Sub(snap.StartedAt)
	}
	if secs := s.Duration.Seconds(); secs > 0 {
		s.RequestsPerSec = float64(s.Completed) / secs
	}
	return s
}

// Writer is implemented by each output format.
type Writer interface {
	WriteHeader() error
	WriteResult(f *scanner.Finding) error
	WriteFooter(stats Stats) error
	Close() error
}

// Entry is the serialized form of a finding.
type Entry struct {
	URL        string `json:"url"`
	Path       string `json:"path"`
	StatusCode int    `json:"status_code"`
	Method     string `json:"method"`
	FoundAt    string `json:"found_at"`
}

// NewEntry converts a finding for export.
func NewEntry(f *scanner.Finding) Entry {
	return Entry{
		URL:        f.URL,
		Path:       f.Path,
		StatusCode: f.StatusCode,
		Method:     f.Method,
		FoundAt:    f.FoundAtDisplay(),
	}
}

// Entries converts a slice of findings, keeping order.
func Entries(findings []scanner.Finding) []Entry {
	out := make([]Entry, len(findings))
	for i := range findings {
		out[i] = NewEntry(&findings[i])
	}
	return out
}

// Formats lists the accepted format names.
var Formats = []string{"text", "json", "csv", "report"}

// New returns a writer for format that writes to w. The summary line of the
// text format goes to summary when it is non-nil.
func New(format string, w io.Writer, summary io.Writer, noColor, quiet bool) (Writer, error) {
	switch format {
	case "", "text":
		return &TextWriter{w: w, summary: summary, noColor: noColor, quiet: quiet}, nil
	case "json":
		return &JSONWriter{w: w}, nil
	case "csv":
		return newCSVWriter(w), nil
	case "report":
		return &ReportWriter{w: w}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want one of %v)", format, Formats)
	}
}

// Open returns a writer for format that writes to outputFile, or to stdout
// when outputFile is empty. Closing the writer closes the file.
func Open(format, outputFile string, noColor, quiet bool) (Writer, error) {
	var w io.Writer = os.Stdout
	var f *os.File
	if outputFile != "" {
		var err error
		f, err = os.Create(outputFile)
		if err != nil {
			return nil, fmt.Errorf("create output file: %w", err)
		}
		w = f
		noColor = true
	}
	wr, err := New(format, w, os.Stderr, noColor, quiet)
	if err != nil {
		if f != nil {
			f.Close()
		}
		return nil, err
	}
	if f == nil {
		return wr, nil
	}
	return &fileWriter{Writer: wr, f: f}, nil
}

// WriteAll streams findings through w between header and footer.
func WriteAll(w Writer, findings []scanner.Finding, stats Stats) error {
	if err := w.WriteHeader(); err != nil {
		return err
	}
	for i := range findings {
		if err := w.WriteResult(&findings[i]); err != nil {
			return err
		}
	}
	return w.WriteFooter(stats)
}

type fileWriter struct {
	Writer
	f *os.File
}

func (fw *fileWriter) Close() error {
	if err := fw.Writer.Close(); err != nil {
		fw.f.Close()
		return err
	}
	return fw.f.Close()
}
