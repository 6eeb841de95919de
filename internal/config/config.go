package config

import "time"

const (
	DefaultThreads         = 10
	MaxThreads             = 50
	DefaultTimeout         = 5 * time.Second
	DefaultMaxRedirects    = 10
	DefaultUserAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	DefaultListen          = ":8080"
	DefaultSessionTTL      = time.Hour
	DefaultJanitorInterval = time.Minute
	DefaultMaxSessions     = 100
	DefaultRecentResults   = 10
	DefaultShutdownGrace   = 10 * time.Second

	DelayScopeWorker = "worker"
	DelayScopeGlobal = "global"
)

// Options holds all configuration for a dirscan run or server.
type Options struct {
	// Target
	URL          string   `yaml:"url"`
	WordlistPath string   `yaml:"wordlist" validate:"omitempty,fileexists"`
	Extensions   []string `yaml:"extensions"`

	// Performance
	Threads    int           `yaml:"threads" validate:"gte=0"`
	Timeout    time.Duration `yaml:"timeout" validate:"gt=0"`
	Delay      time.Duration `yaml:"delay" validate:"gte=0"`
	DelayScope string        `yaml:"delay_scope" validate:"omitempty,oneof=worker global"`

	// HTTP
	Headers      map[string]string `yaml:"headers"`
	UserAgent    string            `yaml:"user_agent"`
	Proxy        string            `yaml:"proxy" validate:"omitempty,url"`
	InsecureTLS  bool              `yaml:"insecure_tls"`
	MaxRedirects int               `yaml:"max_redirects" validate:"gte=0"`

	// Output
	OutputFile   string `yaml:"output"`
	OutputFormat string `yaml:"format" validate:"omitempty,oneof=text json csv report"`
	SortBy       string `yaml:"sort" validate:"omitempty,oneof=status path url method"`
	Tree         bool   `yaml:"tree"`
	OnResultCmd  string `yaml:"on_result"`
	Quiet        bool   `yaml:"quiet"`
	NoColor      bool   `yaml:"no_color"`

	Server ServerOptions `yaml:"server"`
	Log    LogOptions    `yaml:"log"`
}

// ServerOptions configures `dirscan serve`.
type ServerOptions struct {
	Listen          string        `yaml:"listen" validate:"required"`
	DatabasePath    string        `yaml:"database"`
	SessionTTL      time.Duration `yaml:"session_ttl" validate:"gte=0"`
	JanitorInterval time.Duration `yaml:"janitor_interval" validate:"gt=0"`
	MaxSessions     int           `yaml:"max_sessions" validate:"gte=0"`
	RecentResults   int           `yaml:"recent_results" validate:"gte=1"`
	Metrics         bool          `yaml:"metrics"`
	ShutdownGrace   time.Duration `yaml:"shutdown_grace" validate:"gt=0"`
}

// LogOptions configures the zerolog logger.
type LogOptions struct {
	Level      string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format     string `yaml:"format" validate:"omitempty,oneof=console json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
}

// Defaults returns the baseline options before file, env and flag overrides.
func Defaults() Options {
	return Options{
		Threads:      DefaultThreads,
		Timeout:      DefaultTimeout,
		DelayScope:   DelayScopeWorker,
		UserAgent:    DefaultUserAgent,
		MaxRedirects: DefaultMaxRedirects,
		OutputFormat: "text",
		Server: ServerOptions{
			Listen:          DefaultListen,
			SessionTTL:      DefaultSessionTTL,
			JanitorInterval: DefaultJanitorInterval,
			MaxSessions:     DefaultMaxSessions,
			RecentResults:   DefaultRecentResults,
			Metrics:         true,
			ShutdownGrace:   DefaultShutdownGrace,
		},
		Log: LogOptions{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}

// ClampThreads bounds a requested worker count to [1, MaxThreads]; zero or
// negative selects the default.
func ClampThreads(n int) int {
	switch {
	case n <= 0:
		return DefaultThreads
	case n > MaxThreads:
		return MaxThreads
	default:
		return n
	}
}
