package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/maxvaer/dirscan/internal/scanner"
)

const (
	defaultTimeout = 30 * time.Second
	queueSize      = 256
)

// findingJSON is the JSON payload sent to the hook command via stdin.
type findingJSON struct {
	Method     string `json:"method"`
	URL        string `json:"url"`
	StatusCode int    `json:"status"`
	FoundAt    string `json:"found_at"`
}

// Runner executes a shell command for each finding. Commands run one at a
// time on a background goroutine; when the queue is full findings are
// dropped and counted.
type Runner struct {
	cmd     string
	quiet   bool
	timeout time.Duration
	stderr  io.Writer
	log     zerolog.Logger

	queue   chan findingJSON
	done    chan struct{}
	dropped atomic.Int64
}

// NewRunner creates a hook runner and starts its worker. cmd is the shell
// command to execute; {url}, {status} and {method} are substituted.
func NewRunner(cmd string, quiet bool, log zerolog.Logger) *Runner {
	r := &Runner{
		cmd:     cmd,
		quiet:   quiet,
		timeout: defaultTimeout,
		stderr:  os.Stderr,
		log:     log,
		queue:   make(chan findingJSON, queueSize),
		done:    make(chan struct{}),
	}
	go r.loop()
	return r
}

// ObserveProbe queues found outcomes for the hook command.
func (r *Runner) ObserveProbe(out scanner.Outcome) {
	if out.Kind != scanner.OutcomeFound {
		return
	}
	p := findingJSON{
		Method:     out.Method,
		URL:        out.URL,
		StatusCode: out.StatusCode,
		FoundAt:    out.FoundAt.Format("15:04:05"),
	}
	select {
	case r.queue <- p:
	default:
		r.dropped.Add(1)
	}
}

func (r *Runner) SessionStarted()                  {}
func (r *Runner) SessionFinished(scanner.Snapshot) {}

// Close waits for queued commands to finish. No findings may be observed
// after Close.
func (r *Runner) Close() {
	close(r.queue)
	<-r.done
	if n := r.dropped.Load(); n > 0 {
		r.log.Warn().Int64("dropped", n).Msg("hook queue full, findings skipped")
	}
}

// Dropped returns how many findings were skipped because the queue was full.
func (r *Runner) Dropped() int64 { return r.dropped.Load() }

func (r *Runner) loop() {
	defer close(r.done)
	for p := range r.queue {
		r.run(p)
	}
}

func (r *Runner) run(p findingJSON) {
	data, err := json.Marshal(p)
	if err != nil {
		r.log.Error().Err(err).Msg("hook payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	shell, args := shellCommand()
	cmd := exec.CommandContext(ctx, shell, append(args, expand(r.cmd, p))...)
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stderr = r.stderr

	output, err := cmd.Output()
	if err != nil {
		r.log.Debug().Err(err).Str("url", p.URL).Msg("hook command failed")
		if !r.quiet {
			fmt.Fprintf(r.stderr, "[hook] error: %v\n", err)
		}
		return
	}

	if len(output) > 0 && !r.quiet {
		fmt.Fprintf(r.stderr, "[hook] %s", output)
	}
}

func expand(cmd string, p findingJSON) string {
	return strings.NewReplacer(
		"{url}", p.URL,
		"{status}", strconv.Itoa(p.StatusCode),
		"{method}", p.Method,
	).Replace(cmd)
}

func shellCommand() (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C"}
	}
	return "sh", []string{"-c"}
}
