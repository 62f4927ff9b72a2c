package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"quotelog/internal/csvsink"
	"quotelog/internal/logger"
	"quotelog/internal/provider"
)

// Input selects the provider and label source for one asset class.
type Input struct {
	Provider    string   `json:"provider" toml:"provider" yaml:"provider"`
	File        string   `json:"file" toml:"file" yaml:"file"`
	Labels      []string `json:"labels" toml:"labels" yaml:"labels"`
	SkipInvalid bool     `json:"skip_invalid" toml:"skip_invalid" yaml:"skip_invalid"`
}

// Active reports whether the input names any labels to fetch.
func (in Input) Active() bool { return len(in.Labels) > 0 || in.File != "" }

type Output struct {
	Path string `json:"path" toml:"path" yaml:"path"`
	Mode string `json:"mode" toml:"mode" yaml:"mode"`
}

// Provider holds the credential and pacing for one upstream API.
type Provider struct {
	APIKey                string `json:"api_key" toml:"api_key" yaml:"api_key"`
	Endpoint              string `json:"endpoint" toml:"endpoint" yaml:"endpoint"`
	MinRequestIntervalSec int    `json:"min_request_interval_sec" toml:"min_request_interval_sec" yaml:"min_request_interval_sec"`
	MaxRequestsPerMinute  int    `json:"max_requests_per_minute" toml:"max_requests_per_minute" yaml:"max_requests_per_minute"`
	Burst                 int    `json:"burst" toml:"burst" yaml:"burst"`
	MaxItemsPerRequest    int    `json:"max_items_per_request" toml:"max_items_per_request" yaml:"max_items_per_request"`
}

type Providers struct {
	Yahoo        Provider `json:"yahoo" toml:"yahoo" yaml:"yahoo"`
	AlphaVantage Provider `json:"alphavantage" toml:"alphavantage" yaml:"alphavantage"`
	Marketstack  Provider `json:"marketstack" toml:"marketstack" yaml:"marketstack"`
	ExchangeRate Provider `json:"exchangerate" toml:"exchangerate" yaml:"exchangerate"`
}

// Get returns the settings for kind.
func (p Providers) Get(kind provider.Kind) Provider {
	switch kind {
	case provider.Yahoo:
		return p.Yahoo
	case provider.AlphaVantage:
		return p.AlphaVantage
	case provider.Marketstack:
		return p.Marketstack
	case provider.ExchangeRate:
		return p.ExchangeRate
	}
	return Provider{}
}

type History struct {
	// Path of the SQLite database; empty disables history.
	Path string `json:"path" toml:"path" yaml:"path"`
}

type Log struct {
	Level string `json:"level" toml:"level" yaml:"level"`
}

type Config struct {
	Forex             Input     `json:"forex" toml:"forex" yaml:"forex"`
	Equity            Input     `json:"equity" toml:"equity" yaml:"equity"`
	Output            Output    `json:"output" toml:"output" yaml:"output"`
	Providers         Providers `json:"providers" toml:"providers" yaml:"providers"`
	History           History   `json:"history" toml:"history" yaml:"history"`
	Log               Log       `json:"log" toml:"log" yaml:"log"`
	RequestTimeoutSec int       `json:"request_timeout_sec" toml:"request_timeout_sec" yaml:"request_timeout_sec"`
}

func Default() Config {
	return Config{
		Forex:  Input{Provider: string(provider.AlphaVantage), File: "forex.txt"},
		Equity: Input{Provider: string(provider.AlphaVantage), File: "ticker.txt"},
		Output: Output{Path: "financial_data.csv", Mode: string(csvsink.Overwrite)},
		Providers: Providers{
			AlphaVantage: Provider{MinRequestIntervalSec: 1},
		},
		Log:               Log{Level: "info"},
		RequestTimeoutSec: 15,
	}
}

// RequestTimeout is the per-call HTTP timeout.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// Load reads the config file at path, picking the decoder by extension. With
// an empty path, config.json is used when present. Variables from a .env file
// in the working directory and then the environment override file values.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := decode(path, b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}
	applyEnv(&cfg)
	return cfg, nil
}

func decode(path string, b []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err := toml.Decode(string(b), cfg)
		return err
	case ".yaml", ".yml":
		if len(bytes.TrimSpace(b)) == 0 {
			return nil
		}
		return yaml.Unmarshal(b, cfg)
	default:
		return json.Unmarshal(b, cfg)
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ALPHA_VANTAGE_API_KEY"); v != "" {
		cfg.Providers.AlphaVantage.APIKey = v
	}
	if v := os.Getenv("MARKETSTACK_API_KEY"); v != "" {
		cfg.Providers.Marketstack.APIKey = v
	}
	if v := os.Getenv("EXCHANGERATE_API_KEY"); v != "" {
		cfg.Providers.ExchangeRate.APIKey = v
	}
	if v := os.Getenv("FOREX_PROVIDER"); v != "" {
		cfg.Forex.Provider = v
	}
	if v := os.Getenv("EQUITY_PROVIDER"); v != "" {
		cfg.Equity.Provider = v
	}
	if v := os.Getenv("OUTPUT_PATH"); v != "" {
		cfg.Output.Path = v
	}
	if v := os.Getenv("OUTPUT_MODE"); v != "" {
		cfg.Output.Mode = v
	}
	if v := os.Getenv("HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.RequestTimeoutSec = x
		}
	}
	if v := os.Getenv("ALPHA_VANTAGE_MIN_INTERVAL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Providers.AlphaVantage.MinRequestIntervalSec = x
		}
	}
}

// SplitCSV splits a comma-separated flag value, dropping empty parts.
func SplitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the settings a run needs before any request is made.
func (c Config) Validate() error {
	var errs []error

	forex, ok := provider.ParseKind(c.Forex.Provider)
	if !ok {
		errs = append(errs, fmt.Errorf("forex.provider: unknown provider %q", c.Forex.Provider))
	}
	equity, ok := provider.ParseKind(c.Equity.Provider)
	if !ok {
		errs = append(errs, fmt.Errorf("equity.provider: unknown provider %q", c.Equity.Provider))
	}
	if equity == provider.ExchangeRate {
		errs = append(errs, errors.New("equity.provider: exchangerate serves currency pairs only"))
	}

	// Only providers that will be called need a key.
	var used []provider.Kind
	if c.Forex.Active() {
		used = append(used, forex)
	}
	if c.Equity.Active() && (len(used) == 0 || used[0] != equity) {
		used = append(used, equity)
	}
	for _, k := range used {
		if (k == provider.AlphaVantage || k == provider.Marketstack) && c.Providers.Get(k).APIKey == "" {
			errs = append(errs, &provider.Error{Code: provider.CodeMissingCredential, Provider: string(k), Msg: "api key is not set"})
		}
	}

	if _, err := csvsink.ParseMode(c.Output.Mode); err != nil {
		errs = append(errs, fmt.Errorf("output.mode: %w", err))
	}
	if c.Output.Path == "" {
		errs = append(errs, errors.New("output.path is empty"))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.RequestTimeoutSec <= 0 {
		errs = append(errs, errors.New("request_timeout_sec must be positive"))
	}
	return errors.Join(errs...)
}
