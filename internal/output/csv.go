package output

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/maxvaer/dirscan/internal/scanner"
)

// CSVWriter writes results in CSV format.
type CSVWriter struct {
	w *csv.Writer
}

func newCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

func (c *CSVWriter) WriteHeader() error {
	return c.w.Write([]string{"url", "path", "status_code", "method", "found_at"})
}

func (c *CSVWriter) WriteResult(f *scanner.Finding) error {
	return c.w.Write([]string{
		f.URL,
		f.Path,
		strconv.Itoa(f.StatusCode),
		f.Method,
		f.FoundAtDisplay(),
	})
}

func (c *CSVWriter) WriteFooter(_ Stats) error {
	c.w.Flush()
	return c.w.Error()
}

func (c *CSVWriter) Close() error { return nil }
