package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxvaer/dirscan/internal/config"
)

func newFlagCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "test"}
	addScanFlags(c.Flags())
	require.NoError(t, c.ParseFlags(args))
	return c
}

func writeConfig(t *testing.T, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dirscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	configPath = path
	t.Cleanup(func() { configPath = "" })
}

func TestResolveOptionsPrecedence(t *testing.T) {
	writeConfig(t, "threads: 20\ntimeout: 3s\nformat: json\nuser_agent: from-file\n")
	t.Setenv("DIRSCAN_THREADS", "30")

	c := newFlagCommand(t, "-u", "http://example.com", "--format", "csv", "-H", "X-Token: abc")
	opts, err := resolveOptions(c)
	require.NoError(t, err)

	assert.Equal(t, "http://example.com", opts.URL)
	assert.Equal(t, 30, opts.Threads, "env beats file")
	assert.Equal(t, 3*time.Second, opts.Timeout, "file beats defaults")
	assert.Equal(t, "csv", opts.OutputFormat, "flag beats file")
	assert.Equal(t, "from-file", opts.UserAgent, "unchanged flag keeps file value")
	assert.Equal(t, map[string]string{"X-Token": "abc"}, opts.Headers)
}

func TestResolveOptionsValidation(t *testing.T) {
	c := newFlagCommand(t, "-u", "http://example.com", "--format", "xml")
	_, err := resolveOptions(c)
	assert.Error(t, err)

	c = newFlagCommand(t, "-u", "http://example.com", "-H", "no-colon")
	_, err = resolveOptions(c)
	assert.Error(t, err)
}

func TestParseHeaders(t *testing.T) {
	h, err := parseHeaders([]string{"Cookie: a=b; c=d", "Authorization:Bearer x:y"})
	require.NoError(t, err)
	assert.Equal(t, "a=b; c=d", h["Cookie"])
	assert.Equal(t, "Bearer x:y", h["Authorization"])

	_, err = parseHeaders([]string{"broken"})
	assert.Error(t, err)
}

func TestFormatFlag(t *testing.T) {
	c := newFlagCommand(t)
	line := formatFlag(c.Flags().Lookup("threads"))
	assert.True(t, strings.HasPrefix(line, "   -t, --threads int"))
	assert.Contains(t, line, "(default 10)")

	line = formatFlag(c.Flags().Lookup("tree"))
	assert.NotContains(t, line, "bool")
	assert.NotContains(t, line, "default")
}

func TestHelpBanner(t *testing.T) {
	assert.Contains(t, helpBanner("1.2.0"), "v1.2.0")
	assert.Contains(t, helpBanner("dev"), "dev")
}

func TestServeShutsDownOnCancel(t *testing.T) {
	opts := config.Defaults()
	opts.Server.Listen = "127.0.0.1:0"
	opts.Server.DatabasePath = filepath.Join(t.TempDir(), "history.db")
	opts.Server.ShutdownGrace = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, &opts, zerolog.Nop()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
}

func TestServeListenError(t *testing.T) {
	opts := config.Defaults()
	opts.Server.Listen = "256.0.0.1:bad"
	err := serve(context.Background(), &opts, zerolog.Nop())
	assert.Error(t, err)
}
