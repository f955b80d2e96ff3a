// Package config loads hftoken settings from an optional YAML file and the
// process environment. Environment values win over the file, the file wins
// over built-in defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultHubURL       = "https://huggingface.co"
	DefaultInferenceURL = "https://api-inference.huggingface.co"
	DefaultConfigPath   = "hftoken.yaml"
	DefaultProbePrompt  = "Hello, this is a token check."
)

// DefaultModels are probed when nothing else is configured.
var DefaultModels = []string{
	"google/flan-t5-xl",
	"stabilityai/stable-diffusion-xl-base-1.0",
	"openai/whisper-large-v3",
}

// tokenEnvKeys are consulted in order; the first non-empty one is used.
var tokenEnvKeys = []string{"HUGGINGFACE_TOKEN", "HUGGINGFACE_API_KEY", "HF_TOKEN"}

type Config struct {
	// Credential
	Token string

	// Endpoints
	HubURL       string
	InferenceURL string

	// Checks
	Models         []string
	ProbeModel     string // empty disables the inference probe
	ProbePrompt    string
	ProbeMaxTokens int
	CheckUsage     bool

	// Timeouts
	LookupTimeout    time.Duration
	InferenceTimeout time.Duration

	// Client-side request budget (0 = unlimited)
	RateLimitPerMinute int

	// History settings
	HistoryPath    string
	HistoryTTLDays int

	// App settings
	ConfigPath string
	Debug      bool
	LogFormat  string
}

// fileConfig is the YAML layout:
//
//	hub_url: https://huggingface.co
//	models:
//	  - google/flan-t5-xl
//	probe:
//	  model: google/flan-t5-xl
//	  max_new_tokens: 50
type fileConfig struct {
	HubURL       string   `yaml:"hub_url"`
	InferenceURL string   `yaml:"inference_url"`
	Models       []string `yaml:"models"`
	Probe        *struct {
		Model        *string `yaml:"model"`
		Prompt       string  `yaml:"prompt"`
		MaxNewTokens int     `yaml:"max_new_tokens"`
	} `yaml:"probe"`
	Usage              *bool  `yaml:"usage"`
	LookupTimeout      string `yaml:"lookup_timeout"`
	InferenceTimeout   string `yaml:"inference_timeout"`
	RateLimitPerMinute *int   `yaml:"rate_limit_per_minute"`
}

func defaults() *Config {
	return &Config{
		HubURL:             DefaultHubURL,
		InferenceURL:       DefaultInferenceURL,
		Models:             append([]string(nil), DefaultModels...),
		ProbeModel:         DefaultModels[0],
		ProbePrompt:        DefaultProbePrompt,
		ProbeMaxTokens:     50,
		CheckUsage:         true,
		LookupTimeout:      10 * time.Second,
		InferenceTimeout:   30 * time.Second,
		RateLimitPerMinute: 30,
		HistoryTTLDays:     30,
		ConfigPath:         DefaultConfigPath,
		LogFormat:          "text",
	}
}

// Load builds the configuration. An explicit path that does not exist is an
// error; the default path is optional.
func Load(path string) (*Config, error) {
	cfg := defaults()

	explicit := path != ""
	if !explicit {
		path = getEnvOrDefault("HFTOKEN_CONFIG", DefaultConfigPath)
		explicit = os.Getenv("HFTOKEN_CONFIG") != ""
	}
	cfg.ConfigPath = path

	if err := cfg.applyFile(path, explicit); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

func (c *Config) applyFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if fc.HubURL != "" {
		c.HubURL = fc.HubURL
	}
	if fc.InferenceURL != "" {
		c.InferenceURL = fc.InferenceURL
	}
	if len(fc.Models) > 0 {
		c.Models = fc.Models
	}
	if fc.Probe != nil {
		if fc.Probe.Model != nil {
			c.ProbeModel = strings.TrimSpace(*fc.Probe.Model)
		}
		if fc.Probe.Prompt != "" {
			c.ProbePrompt = fc.Probe.Prompt
		}
		if fc.Probe.MaxNewTokens > 0 {
			c.ProbeMaxTokens = fc.Probe.MaxNewTokens
		}
	}
	if fc.Usage != nil {
		c.CheckUsage = *fc.Usage
	}
	if fc.LookupTimeout != "" {
		d, err := time.ParseDuration(fc.LookupTimeout)
		if err != nil {
			return fmt.Errorf("parse config %s: lookup_timeout: %w", path, err)
		}
		c.LookupTimeout = d
	}
	if fc.InferenceTimeout != "" {
		d, err := time.ParseDuration(fc.InferenceTimeout)
		if err != nil {
			return fmt.Errorf("parse config %s: inference_timeout: %w", path, err)
		}
		c.InferenceTimeout = d
	}
	if fc.RateLimitPerMinute != nil {
		c.RateLimitPerMinute = *fc.RateLimitPerMinute
	}
	return nil
}

func (c *Config) applyEnv() error {
	for _, key := range tokenEnvKeys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			c.Token = v
			break
		}
	}

	c.HubURL = getEnvOrDefault("HF_HUB_URL", c.HubURL)
	c.InferenceURL = getEnvOrDefault("HF_INFERENCE_URL", c.InferenceURL)

	if v := os.Getenv("HF_MODELS"); v != "" {
		c.Models = SplitList(v)
	}
	if v, ok := os.LookupEnv("HF_PROBE_MODEL"); ok {
		c.ProbeModel = strings.TrimSpace(v)
	}
	c.ProbePrompt = getEnvOrDefault("HF_PROBE_PROMPT", c.ProbePrompt)
	if v := os.Getenv("HF_PROBE_MAX_NEW_TOKENS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			c.ProbeMaxTokens = val
		}
	}
	if v := os.Getenv("HF_CHECK_USAGE"); v != "" {
		if val, err := strconv.ParseBool(v); err == nil {
			c.CheckUsage = val
		}
	}

	var err error
	if c.LookupTimeout, err = getEnvDurationOrDefault("HF_LOOKUP_TIMEOUT", c.LookupTimeout); err != nil {
		return err
	}
	if c.InferenceTimeout, err = getEnvDurationOrDefault("HF_INFERENCE_TIMEOUT", c.InferenceTimeout); err != nil {
		return err
	}

	c.RateLimitPerMinute = getEnvIntOrDefault("HF_RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)

	c.HistoryPath = getEnvOrDefault("HFTOKEN_HISTORY_PATH", c.HistoryPath)
	c.HistoryTTLDays = getEnvIntOrDefault("HFTOKEN_HISTORY_TTL_DAYS", c.HistoryTTLDays)

	if debug := os.Getenv("DEBUG"); debug == "true" {
		c.Debug = true
	}
	c.LogFormat = getEnvOrDefault("LOG_FORMAT", c.LogFormat)
	return nil
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// Validate checks everything except the token. A missing token is reported
// by the verifier so the run can explain it.
func (c *Config) Validate() error {
	if err := validateURL("hub url", c.HubURL); err != nil {
		return err
	}
	if err := validateURL("inference url", c.InferenceURL); err != nil {
		return err
	}
	if c.LookupTimeout <= 0 {
		return fmt.Errorf("lookup timeout must be positive")
	}
	if c.InferenceTimeout <= 0 {
		return fmt.Errorf("inference timeout must be positive")
	}
	if c.ProbeModel != "" && c.ProbeMaxTokens <= 0 {
		return fmt.Errorf("probe max_new_tokens must be positive")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be 'text' or 'json'")
	}
	return nil
}

func validateURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be http or https, got %q", name, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s has no host: %q", name, raw)
	}
	return nil
}
