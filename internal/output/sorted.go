package output

import (
	"fmt"
	"sort"

	"github.com/maxvaer/dirscan/internal/scanner"
)

// SortKeys lists the accepted sort orders. An empty key keeps discovery order.
var SortKeys = []string{"status", "path", "url", "method"}

// SortedWriter buffers results and replays them sorted by a field when
// WriteFooter is called. It wraps any other Writer.
type SortedWriter struct {
	inner   Writer
	sortBy  string
	results []scanner.Finding
}

// NewSortedWriter wraps inner and buffers results for sorted replay.
func NewSortedWriter(inner Writer, sortBy string) (*SortedWriter, error) {
	if !validSortKey(sortBy) {
		return nil, fmt.Errorf("unknown sort key %q", sortBy)
	}
	return &SortedWriter{inner: inner, sortBy: sortBy}, nil
}

func validSortKey(key string) bool {
	if key == "" {
		return true
	}
	for _, k := range SortKeys {
		if k == key {
			return true
		}
	}
	return false
}

func (w *SortedWriter) WriteHeader() error {
	return w.inner.WriteHeader()
}

func (w *SortedWriter) WriteResult(f *scanner.Finding) error {
	w.results = append(w.results, *f)
	return nil
}

func (w *SortedWriter) WriteFooter(stats Stats) error {
	sort.SliceStable(w.results, func(i, j int) bool {
		a, b := w.results[i], w.results[j]
		switch w.sortBy {
		case "status":
			return a.StatusCode < b.StatusCode
		case "path":
			return a.Path < b.Path
		case "url":
			return a.URL < b.URL
		case "method":
			return a.Method < b.Method
		default:
			return false
		}
	})
	for i := range w.results {
		if err := w.inner.WriteResult(&w.results[i]); err != nil {
			return err
		}
	}
	return w.inner.WriteFooter(stats)
}

func (w *SortedWriter) Close() error {
	return w.inner.Close()
}
