package hook

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxvaer/dirscan/internal/scanner"
)

func TestExpand(t *testing.T) {
	got := expand("notify {method} {url} -> {status}", findingJSON{
		Method:     "GET",
		URL:        "http://example.com/admin",
		StatusCode: 403,
	})
	assert.Equal(t, "notify GET http://example.com/admin -> 403", got)
}

func TestRunnerWritesPayload(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	out := filepath.Join(t.TempDir(), "hook.log")
	r := NewRunner("cat >> "+out+"; echo >> "+out, true, zerolog.Nop())

	at := time.Date(2024, 5, 1, 10, 11, 12, 0, time.Local)
	r.ObserveProbe(scanner.Outcome{Kind: scanner.OutcomeNotFound, URL: "http://example.com/nope"})
	r.ObserveProbe(scanner.Outcome{Kind: scanner.OutcomeFailed, URL: "http://example.com/err"})
	r.ObserveProbe(scanner.Outcome{Kind: scanner.OutcomeFound, URL: "http://example.com/admin", StatusCode: 200, Method: "HEAD", FoundAt: at})
	r.Close()

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.JSONEq(t, `{"method":"HEAD","url":"http://example.com/admin","status":200,"found_at":"10:11:12"}`, lines[0])
	assert.Zero(t, r.Dropped())
}

func TestRunnerReportsOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	var stderr bytes.Buffer
	r := NewRunner("echo seen {status}", false, zerolog.Nop())
	r.stderr = &stderr

	r.ObserveProbe(scanner.Outcome{Kind: scanner.OutcomeFound, URL: "http://example.com/a", StatusCode: 301, Method: "GET"})
	r.Close()

	assert.Equal(t, "[hook] seen 301\n", stderr.String())
}
