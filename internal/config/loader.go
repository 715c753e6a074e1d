package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"llmprobe/internal/common/fsutil"
)

// File mirrors Config as it appears on disk. Durations are Go duration
// strings ("10s", "1m") so the three formats agree.
// Zero values mean "unspecified" and leave the current setting alone.
type File struct {
	APIURL          string `json:"api_url" yaml:"api_url" toml:"api_url"`
	Token           string `json:"api_token" yaml:"api_token" toml:"api_token"`
	Model           string `json:"model" yaml:"model" toml:"model"`
	Timeout         string `json:"timeout" yaml:"timeout" toml:"timeout"`
	GenerateTimeout string `json:"generate_timeout" yaml:"generate_timeout" toml:"generate_timeout"`
	LogLevel        string `json:"log_level" yaml:"log_level" toml:"log_level"`
	MetricsFile     string `json:"metrics_file" yaml:"metrics_file" toml:"metrics_file"`
	PreviewChars    int    `json:"preview_chars" yaml:"preview_chars" toml:"preview_chars"`
	MaxListed       int    `json:"max_listed" yaml:"max_listed" toml:"max_listed"`
}

// SearchPaths are tried in order when no explicit config path is given.
var SearchPaths = []string{
	"llmprobe.yaml",
	"llmprobe.toml",
	"llmprobe.json",
	"~/.config/llmprobe/config.yaml",
	"~/.config/llmprobe/config.toml",
	"~/.config/llmprobe/config.json",
}

// Discover returns the first config file found in SearchPaths, or "".
func Discover() string { return fsutil.FirstExisting(SearchPaths...) }

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (File, error) {
	var f File
	if path == "" {
		return f, fmt.Errorf("empty config path")
	}
	p, err := fsutil.ExpandHome(path)
	if err != nil {
		return f, err
	}
	if !fsutil.PathExists(p) {
		return f, fmt.Errorf("config file %s not found", path)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return f, err
	}
	switch ext := strings.ToLower(filepath.Ext(p)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &f); err != nil { return f, fmt.Errorf("parse %s: %w", p, err) }
	case ".json":
		if err := json.Unmarshal(b, &f); err != nil { return f, fmt.Errorf("parse %s: %w", p, err) }
	case ".toml":
		if err := toml.Unmarshal(b, &f); err != nil { return f, fmt.Errorf("parse %s: %w", p, err) }
	default:
		return f, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return f, nil
}

// Apply overlays the non-zero fields of f onto cfg.
func (f File) Apply(cfg *Config) error {
	if f.APIURL != "" { cfg.APIURL = f.APIURL; cfg.APIURLSet = true }
	if f.Token != "" { cfg.Token = f.Token }
	if f.Model != "" { cfg.Model = f.Model }
	if f.LogLevel != "" { cfg.LogLevel = f.LogLevel }
	if f.MetricsFile != "" { cfg.MetricsFile = f.MetricsFile }
	if f.PreviewChars != 0 { cfg.PreviewChars = f.PreviewChars }
	if f.MaxListed != 0 { cfg.MaxListed = f.MaxListed }
	if f.Timeout != "" {
		d, err := parseDuration("timeout", f.Timeout)
		if err != nil { return err }
		cfg.Timeout = d
	}
	if f.GenerateTimeout != "" {
		d, err := parseDuration("generate_timeout", f.GenerateTimeout)
		if err != nil { return err }
		cfg.GenerateTimeout = d
	}
	return nil
}
