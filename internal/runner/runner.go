package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/maxvaer/dirscan/internal/config"
	"github.com/maxvaer/dirscan/internal/hook"
	"github.com/maxvaer/dirscan/internal/output"
	"github.com/maxvaer/dirscan/internal/scanner"
	"github.com/maxvaer/dirscan/internal/storage"
	"github.com/maxvaer/dirscan/internal/storage/sqlite"
	"github.com/maxvaer/dirscan/internal/wordlist"
	"github.com/maxvaer/dirscan/pkg/version"
)

// Run executes one foreground scan of opts.URL. Cancelling ctx stops the
// session; the findings collected so far are still written.
func Run(ctx context.Context, opts *config.Options, log zerolog.Logger) error {
	// 1. Load wordlist.
	paths, err := wordlist.Load(opts.WordlistPath)
	if err != nil {
		return fmt.Errorf("loading wordlist: %w", err)
	}

	// 2. Optional archive.
	var archive storage.Archive
	if opts.Server.DatabasePath != "" {
		store, err := sqlite.New(ctx, opts.Server.DatabasePath)
		if err != nil {
			return fmt.Errorf("opening archive: %w", err)
		}
		defer store.Close()
		archive = store
	}

	// 3. Registry holding the single session.
	cfg := scanner.RegistryConfig{
		Options:     opts,
		MaxSessions: 1,
		Logger:      log,
		OnFinish:    storage.SaveOnFinish(archive, log),
	}
	if opts.OnResultCmd != "" {
		hooks := hook.NewRunner(opts.OnResultCmd, opts.Quiet, log)
		defer hooks.Close()
		cfg.Observer = hooks
	}
	reg := scanner.NewRegistry(cfg)
	defer closeRegistry(reg, opts.Server.ShutdownGrace)

	sess, err := reg.Start(ctx, scanner.Request{
		BaseURL:    opts.URL,
		Paths:      paths,
		Extensions: opts.Extensions,
		Threads:    opts.Threads,
	})
	if err != nil {
		return err
	}

	// 4. Banner, stop key and progress.
	if !opts.Quiet {
		printBanner(os.Stderr, opts, sess.Snapshot(), len(paths))
	}
	restore := startStopKey(sess, opts.Quiet)
	progress := output.NewProgress(sess.Snapshot, os.Stderr, opts.Quiet)
	progress.Start()

	// 5. Wait for the session.
	select {
	case <-sess.Done():
	case <-ctx.Done():
		sess.Stop()
		if !opts.Quiet {
			fmt.Fprintf(os.Stderr, "\n[*] Stopping, waiting for in-flight requests ...\n")
		}
		<-sess.Done()
	}
	progress.Stop()
	restore()

	// 6. Write output.
	snap := sess.Snapshot()
	findings := sess.Results()
	if err := writeFindings(opts, findings, output.StatsFromSnapshot(snap)); err != nil {
		return err
	}
	if opts.Tree && !opts.Quiet {
		output.PrintTree(os.Stderr, findings)
	}
	return nil
}

func writeFindings(opts *config.Options, findings []scanner.Finding, stats output.Stats) error {
	out, err := output.Open(opts.OutputFormat, opts.OutputFile, opts.NoColor, opts.Quiet)
	if err != nil {
		return fmt.Errorf("creating output writer: %w", err)
	}
	if opts.SortBy != "" {
		sorted, err := output.NewSortedWriter(out, opts.SortBy)
		if err != nil {
			out.Close()
			return err
		}
		out = sorted
	}
	if err := output.WriteAll(out, findings, stats); err != nil {
		out.Close()
		return fmt.Errorf("writing results: %w", err)
	}
	return out.Close()
}

// closeRegistry waits for the finish hooks of terminal sessions.
func closeRegistry(reg *scanner.Registry, grace time.Duration) {
	if grace <= 0 {
		grace = config.DefaultShutdownGrace
	}
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	_ = reg.Close(ctx)
}

func printBanner(w io.Writer, opts *config.Options, snap scanner.Snapshot, pathCount int) {
	const (
		cyan   = "\033[36m"
		white  = "\033[97m"
		dim    = "\033[2m"
		yellow = "\033[33m"
		reset  = "\033[0m"
	)

	c, wh, d, y, rs := cyan, white, dim, yellow, reset
	if opts.NoColor {
		c, wh, d, y, rs = "", "", "", "", ""
	}

	fmt.Fprintf(w, `
%s     _ _                          %s
%s  __| (_)_ _ ___ __ __ _ _ _      %s
%s / _' | | '_(_-</ _/ _' | ' \     %s
%s \__,_|_|_| /__/\__\__,_|_||_|    %s %sv%s%s
%s                                  %s
%s    Concurrent Web Path Scanner   %s
`,
		c, rs,
		c, rs,
		c, rs,
		c, rs, d, version.Version, rs,
		c, rs,
		wh, rs,
	)

	fmt.Fprintf(w, "%s  ──────────────────────────────────────%s\n", d, rs)
	fmt.Fprintf(w, "  %sTarget:%s       %s%s%s\n", d, rs, wh, snap.BaseURL, rs)
	fmt.Fprintf(w, "  %sThreads:%s      %s%d%s\n", d, rs, y, snap.Threads, rs)
	fmt.Fprintf(w, "  %sWordlist:%s     %s%d paths%s\n", d, rs, wh, pathCount, rs)
	if len(opts.Extensions) > 0 {
		fmt.Fprintf(w, "  %sExtensions:%s   %s%s%s\n", d, rs, wh, strings.Join(opts.Extensions, ", "), rs)
	}
	fmt.Fprintf(w, "  %sRequests:%s     %s%d%s\n", d, rs, wh, snap.Total, rs)
	if opts.Delay > 0 {
		fmt.Fprintf(w, "  %sDelay:%s        %s%s (%s)%s\n", d, rs, y, opts.Delay, opts.DelayScope, rs)
	}
	if opts.OnResultCmd != "" {
		fmt.Fprintf(w, "  %sOn result:%s    %s%s%s\n", d, rs, wh, opts.OnResultCmd, rs)
	}
	if opts.Server.DatabasePath != "" {
		fmt.Fprintf(w, "  %sArchive:%s      %s%s%s\n", d, rs, wh, opts.Server.DatabasePath, rs)
	}
	fmt.Fprintf(w, "%s  ──────────────────────────────────────%s\n\n", d, rs)
}
