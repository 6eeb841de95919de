package output

import (
	"encoding/json"
	"io"

	"github.com/maxvaer/dirscan/internal/scanner"
)

// JSONWriter buffers results and writes them as one JSON array.
type JSONWriter struct {
	w       io.Writer
	entries []Entry
}

func (j *JSONWriter) WriteHeader() error { return nil }

func (j *JSONWriter) WriteResult(f *scanner.Finding) error {
	j.entries = append(j.entries, NewEntry(f))
	return nil
}

func (j *JSONWriter) WriteFooter(_ Stats) error {
	entries := j.entries
	if entries == nil {
		entries = []Entry{}
	}
	enc := json.NewEncoder(j.w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func (j *JSONWriter) Close() error { return nil }
