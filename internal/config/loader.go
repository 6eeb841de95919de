package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const envPrefix = "DIRSCAN_"

// Load builds options from defaults, an optional YAML file and DIRSCAN_*
// environment variables, in that order. The result is not validated; call
// Validate once flags have been applied.
func Load(path string) (Options, error) {
	opts := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return opts, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &opts); err != nil {
			return opts, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	applyEnv(&opts)
	return opts, nil
}

func applyEnv(opts *Options) {
	opts.Threads = getEnvInt("THREADS", opts.Threads)
	opts.Timeout = getEnvDuration("TIMEOUT", opts.Timeout)
	opts.Delay = getEnvDuration("DELAY", opts.Delay)
	opts.DelayScope = getEnv("DELAY_SCOPE", opts.DelayScope)
	opts.UserAgent = getEnv("USER_AGENT", opts.UserAgent)
	opts.Proxy = getEnv("PROXY", opts.Proxy)

	opts.Server.Listen = getEnv("LISTEN", opts.Server.Listen)
	opts.Server.DatabasePath = getEnv("DB", opts.Server.DatabasePath)
	opts.Server.SessionTTL = getEnvDuration("SESSION_TTL", opts.Server.SessionTTL)
	opts.Server.MaxSessions = getEnvInt("MAX_SESSIONS", opts.Server.MaxSessions)

	opts.Log.Level = getEnv("LOG_LEVEL", opts.Log.Level)
	opts.Log.Format = getEnv("LOG_FORMAT", opts.Log.Format)
	opts.Log.File = getEnv("LOG_FILE", opts.Log.File)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(envPrefix + key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if valueStr, exists := os.LookupEnv(envPrefix + key); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(envPrefix + key); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return fallback
}

// Validate checks the options against their struct tags.
func Validate(opts *Options) error {
	validate := validator.New()
	_ = validate.RegisterValidation("fileexists", func(fl validator.FieldLevel) bool {
		path := fl.Field().String()
		if path == "" {
			return true
		}
		info, err := os.Stat(path)
		return err == nil && !info.IsDir()
	})

	err := validate.Struct(opts)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
