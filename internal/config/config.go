// Package config resolves where and how llmprobe talks to the inference API.
// Precedence is defaults < config file < environment < command-line flags.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Hardcoded defaults, overridable by API_URL, API_TOKEN and TEST_MODEL.
const (
	DefaultAPIURL          = "http://192.168.10.2:9100"
	DefaultModel           = "gemma3:1b"
	DefaultTimeout         = 10 * time.Second
	DefaultGenerateTimeout = 60 * time.Second
	DefaultPreviewChars    = 100
)

// Config holds runtime parameters for a probe run.
type Config struct {
	// Base URL of the inference API, without trailing slash.
	APIURL string
	// APIURLSet is true once a config file, API_URL or --api-url supplied
	// APIURL, even when the value equals DefaultAPIURL.
	APIURLSet bool
	// Bearer token sent in the Authorization header.
	Token string
	// Model used for generation and chat checks.
	Model string
	// Timeout bounds metadata calls such as /api/tags.
	Timeout time.Duration
	// GenerateTimeout bounds generation and chat calls, streaming included.
	GenerateTimeout time.Duration
	LogLevel        string
	// MetricsFile, when set, receives probe results in Prometheus text format.
	MetricsFile string
	// PreviewChars truncates printed replies in preview mode.
	PreviewChars int
	// MaxListed caps the number of model names printed; 0 prints all.
	MaxListed int
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		APIURL:          DefaultAPIURL,
		Model:           DefaultModel,
		Timeout:         DefaultTimeout,
		GenerateTimeout: DefaultGenerateTimeout,
		LogLevel:        "info",
		PreviewChars:    DefaultPreviewChars,
	}
}

// FromEnv overlays environment variables onto base and returns the result.
func FromEnv(base Config) (Config, error) {
	cfg := base
	if v := os.Getenv("API_URL"); v != "" {
		cfg.APIURL = v
		cfg.APIURLSet = true
	}
	cfg.Token = EnvStr("API_TOKEN", cfg.Token)
	cfg.Model = EnvStr("TEST_MODEL", cfg.Model)
	cfg.LogLevel = EnvStr("LLMPROBE_LOG_LEVEL", cfg.LogLevel)
	cfg.MetricsFile = EnvStr("LLMPROBE_METRICS_FILE", cfg.MetricsFile)
	cfg.PreviewChars = EnvInt("LLMPROBE_PREVIEW_CHARS", cfg.PreviewChars)
	cfg.MaxListed = EnvInt("LLMPROBE_MAX_LISTED", cfg.MaxListed)
	if v := os.Getenv("LLMPROBE_TIMEOUT"); v != "" {
		d, err := parseDuration("LLMPROBE_TIMEOUT", v)
		if err != nil { return base, err }
		cfg.Timeout = d
	}
	if v := os.Getenv("LLMPROBE_GENERATE_TIMEOUT"); v != "" {
		d, err := parseDuration("LLMPROBE_GENERATE_TIMEOUT", v)
		if err != nil { return base, err }
		cfg.GenerateTimeout = d
	}
	return cfg, nil
}

// Resolve builds a Config from defaults, an optional config file and the
// environment. An empty path falls back to Discover; a missing discovered
// file is not an error.
func Resolve(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = Discover()
	}
	if path != "" {
		f, err := Load(path)
		if err != nil { return cfg, err }
		if err := f.Apply(&cfg); err != nil { return cfg, err }
	}
	return FromEnv(cfg)
}

// Validate normalizes the API URL and checks the remaining fields.
func (c *Config) Validate() error {
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return fmt.Errorf("invalid api url %q: %w", c.APIURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid api url %q: scheme must be http or https", c.APIURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid api url %q: missing host", c.APIURL)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("model must not be empty")
	}
	if c.Timeout <= 0 || c.GenerateTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.PreviewChars < 0 || c.MaxListed < 0 {
		return fmt.Errorf("preview_chars and max_listed must not be negative")
	}
	return nil
}

// EnvStr returns the value of key, or def when unset or empty.
func EnvStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvInt returns the integer value of key, or def when unset or malformed.
func EnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func parseDuration(name, v string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}
