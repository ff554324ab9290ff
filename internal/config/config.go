package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const fileName = "roadline.yml"

// Config models roadline.yml.
type Config struct {
	GitHub struct {
		APIBaseURL string `yaml:"api_base_url"`
		RawBaseURL string `yaml:"raw_base_url"`
		Token      string `yaml:"token"`
	} `yaml:"github"`
	Checks struct {
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		MaxConcurrency int    `yaml:"max_concurrency"`
		VerifierURL    string `yaml:"verifier_url"`
	} `yaml:"checks"`
	Roadmap struct {
		Paths         []string `yaml:"paths"`
		DefaultBranch string   `yaml:"default_branch"`
	} `yaml:"roadmap"`
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Logging  Logging   `yaml:"logging"`
	Webhooks []Webhook `yaml:"webhooks"`
}

// LogLevels are the accepted logging.level values.
var LogLevels = []string{"debug", "info", "warn", "warning", "error"}

type Logging struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type Webhook struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// Active reports whether the hook should receive deliveries; hooks are on
// unless disabled explicitly.
func (w Webhook) Active() bool {
	return w.Enabled == nil || *w.Enabled
}

func (w Webhook) Timeout() time.Duration {
	if w.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(w.TimeoutSeconds) * time.Second
}

// CheckTimeout is the per-request timeout for http checks and content fetches.
func (c *Config) CheckTimeout() time.Duration {
	if c.Checks.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Checks.TimeoutSeconds) * time.Second
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{
		"github.api_base_url": c.GitHub.APIBaseURL,
		"github.raw_base_url": c.GitHub.RawBaseURL,
		"checks.verifier_url": c.Checks.VerifierURL,
	} {
		if raw == "" {
			continue
		}
		if err := validURL(raw); err != nil {
			return fmt.Errorf("config.%s: %w", name, err)
		}
	}
	if c.Checks.TimeoutSeconds < 0 {
		return fmt.Errorf("config.checks.timeout_seconds must be >= 0")
	}
	if c.Checks.MaxConcurrency < 0 {
		return fmt.Errorf("config.checks.max_concurrency must be >= 0")
	}
	for i, p := range c.Roadmap.Paths {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("config.roadmap.paths[%d] is empty", i)
		}
	}
	if bp := c.Server.BasePath; bp != "" && !strings.HasPrefix(bp, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if lvl := strings.ToLower(strings.TrimSpace(c.Logging.Level)); lvl != "" && !slices.Contains(LogLevels, lvl) {
		return fmt.Errorf("config.logging.level must be one of %s", strings.Join(LogLevels, ", "))
	}
	for i, w := range c.Webhooks {
		if w.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		if err := validURL(w.URL); err != nil {
			return fmt.Errorf("config.webhooks[%d].url: %w", i, err)
		}
		for _, evt := range w.Events {
			if evt == "" {
				return fmt.Errorf("config.webhooks[%d] has empty event type", i)
			}
		}
	}
	return nil
}

func validURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, fileName)
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with rl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes. Missing sections
// keep their defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// NewViper returns a viper instance reading ROADLINE_* variables, with
// section separators mapped to underscores (checks.verifier_url is
// ROADLINE_CHECKS_VERIFIER_URL).
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("ROADLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// ApplyEnv overlays values set through v (environment or bound flags) on
// cfg and revalidates.
func ApplyEnv(cfg *Config, v *viper.Viper) error {
	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	setInt := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	setString("github.api_base_url", &cfg.GitHub.APIBaseURL)
	setString("github.raw_base_url", &cfg.GitHub.RawBaseURL)
	setString("github.token", &cfg.GitHub.Token)
	setInt("checks.timeout_seconds", &cfg.Checks.TimeoutSeconds)
	setInt("checks.max_concurrency", &cfg.Checks.MaxConcurrency)
	setString("checks.verifier_url", &cfg.Checks.VerifierURL)
	setString("roadmap.default_branch", &cfg.Roadmap.DefaultBranch)
	if v.IsSet("roadmap.paths") {
		cfg.Roadmap.Paths = v.GetStringSlice("roadmap.paths")
	}
	setString("server.addr", &cfg.Server.Addr)
	setString("server.base_path", &cfg.Server.BasePath)
	setString("logging.level", &cfg.Logging.Level)
	if v.IsSet("logging.development") {
		cfg.Logging.Development = v.GetBool("logging.development")
	}
	// GITHUB_TOKEN is honored when nothing more specific is set.
	if cfg.GitHub.Token == "" {
		cfg.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}
	return cfg.Validate()
}

const defaultTemplate = `github:
  api_base_url: https://api.github.com
  raw_base_url: https://raw.githubusercontent.com

checks:
  timeout_seconds: 10
  max_concurrency: 1
  # verifier_url: https://verifier.example.com/check

roadmap:
  paths:
    - docs/roadmap.yml
    - docs/roadmap.yaml
    - docs/roadmap.json
    - roadmap.yml
    - roadmap.json
  default_branch: main

server:
  addr: 127.0.0.1:8080
  base_path: /v0

logging:
  level: info
  development: false
`
