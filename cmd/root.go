package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/maxvaer/dirscan/internal/config"
	"github.com/maxvaer/dirscan/internal/logger"
	"github.com/maxvaer/dirscan/internal/output"
	"github.com/maxvaer/dirscan/internal/runner"
	"github.com/maxvaer/dirscan/pkg/version"
)

var (
	// flagOpts receives parsed flag values; only flags the user changed are
	// copied over the file and environment configuration.
	flagOpts    = config.Defaults()
	flagHeaders []string
	configPath  string
)

type flagGroup struct {
	title string
	flags []string
}

var helpGroups = []flagGroup{
	{"TARGET", []string{"url", "wordlist", "extensions"}},
	{"RATE-LIMIT", []string{"threads", "timeout", "delay", "delay-scope"}},
	{"HTTP", []string{"header", "user-agent", "proxy", "insecure", "max-redirects"}},
	{"OUTPUT", []string{"output", "format", "quiet", "no-color", "sort", "tree", "on-result"}},
	{"SERVER", []string{"listen", "session-ttl", "max-sessions", "metrics"}},
	{"STORAGE", []string{"db"}},
	{"CONFIGURATION", []string{"config"}},
	{"LOGGING", []string{"log-level", "log-format", "log-file"}},
}

// overrides copies one flag's value from the parsed flags onto the resolved
// options.
var overrides = map[string]func(dst, src *config.Options){
	"url":           func(d, s *config.Options) { d.URL = s.URL },
	"wordlist":      func(d, s *config.Options) { d.WordlistPath = s.WordlistPath },
	"extensions":    func(d, s *config.Options) { d.Extensions = s.Extensions },
	"threads":       func(d, s *config.Options) { d.Threads = s.Threads },
	"timeout":       func(d, s *config.Options) { d.Timeout = s.Timeout },
	"delay":         func(d, s *config.Options) { d.Delay = s.Delay },
	"delay-scope":   func(d, s *config.Options) { d.DelayScope = s.DelayScope },
	"user-agent":    func(d, s *config.Options) { d.UserAgent = s.UserAgent },
	"proxy":         func(d, s *config.Options) { d.Proxy = s.Proxy },
	"insecure":      func(d, s *config.Options) { d.InsecureTLS = s.InsecureTLS },
	"max-redirects": func(d, s *config.Options) { d.MaxRedirects = s.MaxRedirects },
	"output":        func(d, s *config.Options) { d.OutputFile = s.OutputFile },
	"format":        func(d, s *config.Options) { d.OutputFormat = s.OutputFormat },
	"sort":          func(d, s *config.Options) { d.SortBy = s.SortBy },
	"tree":          func(d, s *config.Options) { d.Tree = s.Tree },
	"on-result":     func(d, s *config.Options) { d.OnResultCmd = s.OnResultCmd },
	"quiet":         func(d, s *config.Options) { d.Quiet = s.Quiet },
	"no-color":      func(d, s *config.Options) { d.NoColor = s.NoColor },
	"db":            func(d, s *config.Options) { d.Server.DatabasePath = s.Server.DatabasePath },
	"listen":        func(d, s *config.Options) { d.Server.Listen = s.Server.Listen },
	"session-ttl":   func(d, s *config.Options) { d.Server.SessionTTL = s.Server.SessionTTL },
	"max-sessions":  func(d, s *config.Options) { d.Server.MaxSessions = s.Server.MaxSessions },
	"metrics":       func(d, s *config.Options) { d.Server.Metrics = s.Server.Metrics },
	"log-level":     func(d, s *config.Options) { d.Log.Level = s.Log.Level },
	"log-format":    func(d, s *config.Options) { d.Log.Format = s.Log.Format },
	"log-file":      func(d, s *config.Options) { d.Log.File = s.Log.File },
}

var rootCmd = &cobra.Command{
	Use:     "dirscan -u <url> [flags]",
	Short:   "Concurrent web path scanner",
	Version: version.Version,
	Long: `dirscan probes a web server for reachable paths built from a wordlist
and optional file extensions. It runs a single scan in the foreground or,
with "dirscan serve", exposes scan sessions over an HTTP JSON API.`,
	Example: `  dirscan -u https://example.com
  dirscan -u https://example.com -e php,html -t 20
  dirscan -u https://example.com -w custom.txt -o results.json --format json
  dirscan -u https://example.com --delay 100ms --delay-scope global
  dirscan -u https://example.com --sort status --tree
  dirscan -u https://example.com --on-result "notify-send {url}"
  dirscan serve --listen :8080 --db dirscan.db`,
	RunE:          runScan,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var scanCmd = &cobra.Command{
	Use:           "scan -u <url> [flags]",
	Short:         "Run one scan in the foreground (default command)",
	RunE:          runScan,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func runScan(cmd *cobra.Command, args []string) error {
	opts, err := resolveOptions(cmd)
	if err != nil {
		return err
	}
	if opts.URL == "" {
		_ = cmd.Help()
		fmt.Fprintln(os.Stderr)
		return fmt.Errorf("target required: use -u")
	}
	if !strings.HasPrefix(opts.URL, "http://") && !strings.HasPrefix(opts.URL, "https://") {
		opts.URL = "http://" + opts.URL
	}
	if opts.Quiet && !cmd.Flags().Changed("log-level") {
		opts.Log.Level = "error"
	}

	log, err := logger.New(opts.Log, opts.NoColor)
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return runner.Run(ctx, opts, log.Zerolog())
}

// resolveOptions layers defaults, the config file, DIRSCAN_* variables and
// the flags the user set, then validates the result.
func resolveOptions(cmd *cobra.Command) (*config.Options, error) {
	opts, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if apply, ok := overrides[f.Name]; ok {
			apply(&opts, &flagOpts)
		}
	})
	if cmd.Flags().Changed("header") {
		headers, err := parseHeaders(flagHeaders)
		if err != nil {
			return nil, err
		}
		if opts.Headers == nil {
			opts.Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			opts.Headers[k] = v
		}
	}
	if err := config.Validate(&opts); err != nil {
		return nil, err
	}
	return &opts, nil
}

func parseHeaders(raw []string) (map[string]string, error) {
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid header format %q, expected 'Key: Value'", h)
		}
		headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return headers, nil
}

func addScanFlags(f *pflag.FlagSet) {
	d := config.Defaults()

	// Target
	f.StringVarP(&flagOpts.URL, "url", "u", "", "Target base URL")
	f.StringVarP(&flagOpts.WordlistPath, "wordlist", "w", "", "Custom wordlist path (default: built-in)")
	f.StringSliceVarP(&flagOpts.Extensions, "extensions", "e", nil, "File extensions to append (e.g. php,html,js)")

	// Performance
	f.IntVarP(&flagOpts.Threads, "threads", "t", d.Threads, fmt.Sprintf("Number of concurrent workers (max %d)", config.MaxThreads))
	f.DurationVar(&flagOpts.Timeout, "timeout", d.Timeout, "HTTP request timeout")
	f.DurationVar(&flagOpts.Delay, "delay", 0, "Minimum spacing between requests")
	f.StringVar(&flagOpts.DelayScope, "delay-scope", d.DelayScope, "Delay scope: worker or global")

	// HTTP
	f.StringSliceVarP(&flagHeaders, "header", "H", nil, "Custom headers (Key: Value)")
	f.StringVar(&flagOpts.UserAgent, "user-agent", d.UserAgent, "User-Agent header")
	f.StringVar(&flagOpts.Proxy, "proxy", "", "HTTP/SOCKS proxy URL")
	f.BoolVar(&flagOpts.InsecureTLS, "insecure", false, "Skip TLS certificate verification")
	f.IntVar(&flagOpts.MaxRedirects, "max-redirects", d.MaxRedirects, "Maximum redirects to follow")

	// Output
	f.StringVarP(&flagOpts.OutputFile, "output", "o", "", "Output file path")
	f.StringVar(&flagOpts.OutputFormat, "format", d.OutputFormat, "Output format: "+strings.Join(output.Formats, ", "))
	f.BoolVarP(&flagOpts.Quiet, "quiet", "q", false, "Minimal output")
	f.StringVar(&flagOpts.SortBy, "sort", "", "Sort results: "+strings.Join(output.SortKeys, ", "))
	f.BoolVar(&flagOpts.Tree, "tree", false, "Print directory tree summary after scan")
	f.StringVar(&flagOpts.OnResultCmd, "on-result", "", "Shell command to run for each finding (receives JSON on stdin)")

	// Storage
	f.StringVar(&flagOpts.Server.DatabasePath, "db", "", "SQLite file to archive finished scans in")
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "YAML config file")
	pf.BoolVar(&flagOpts.NoColor, "no-color", false, "Disable colored output")
	pf.StringVar(&flagOpts.Log.Level, "log-level", flagOpts.Log.Level, "Log level: debug, info, warn, error")
	pf.StringVar(&flagOpts.Log.Format, "log-format", flagOpts.Log.Format, "Log format: console or json")
	pf.StringVar(&flagOpts.Log.File, "log-file", "", "Also write logs to this file (rotated)")

	addScanFlags(rootCmd.Flags())
	addScanFlags(scanCmd.Flags())

	rootCmd.AddCommand(scanCmd, serveCmd)

	// Custom help: categorized flags like httpx.
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		w := os.Stderr
		fmt.Fprint(w, helpBanner(version.Version))
		if cmd.Long != "" {
			fmt.Fprintf(w, "%s\n\n", cmd.Long)
		}
		fmt.Fprintf(w, "Usage:\n  %s\n", cmd.UseLine())
		if cmd.HasAvailableSubCommands() {
			fmt.Fprintf(w, "\nCommands:\n")
			for _, sub := range cmd.Commands() {
				if sub.IsAvailableCommand() {
					fmt.Fprintf(w, "  %-12s %s\n", sub.Name(), sub.Short)
				}
			}
		}
		if cmd.Example != "" {
			fmt.Fprintf(w, "\nExamples:\n%s\n", cmd.Example)
		}
		fmt.Fprintf(w, "\nFlags:\n")
		for _, g := range helpGroups {
			var lines []string
			for _, name := range g.flags {
				if f := lookupFlag(cmd, name); f != nil {
					lines = append(lines, formatFlag(f))
				}
			}
			if len(lines) == 0 {
				continue
			}
			fmt.Fprintf(w, "\n%s:\n%s\n", g.title, strings.Join(lines, "\n"))
		}
		fmt.Fprintln(w)
	})
}

func lookupFlag(cmd *cobra.Command, name string) *pflag.Flag {
	if f := cmd.Flags().Lookup(name); f != nil {
		return f
	}
	return cmd.InheritedFlags().Lookup(name)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func formatFlag(f *pflag.Flag) string {
	var left string
	if f.Shorthand != "" {
		left = fmt.Sprintf("-%s, --%s", f.Shorthand, f.Name)
	} else {
		left = fmt.Sprintf("    --%s", f.Name)
	}

	typ := f.Value.Type()
	if typ != "bool" {
		left += " " + typ
	}

	// Pad to fixed column width for aligned descriptions.
	const col = 36
	for len(left) < col {
		left += " "
	}

	right := f.Usage
	// Show default for non-zero values.
	def := f.DefValue
	if def != "" && def != "false" && def != "0" && def != "0s" && def != "[]" {
		right += fmt.Sprintf(" (default %s)", def)
	}

	return "   " + left + right
}

func helpBanner(ver string) string {
	if ver != "dev" && ver != "" && !strings.HasPrefix(ver, "v") {
		ver = "v" + ver
	}
	return fmt.Sprintf(`
     _ _
  __| (_)_ _ ___ __ __ _ _ _
 / _' | | '_(_-</ _/ _' | ' \
 \__,_|_|_| /__/\__\__,_|_||_|   %s

`, ver)
}
