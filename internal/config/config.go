// Package config loads and hot-reloads ctxproxy's runtime configuration:
// environment variables (the contract surface per the external
// interface table), an optional YAML overlay file, and an optional TOML
// provider-seed file consumed by internal/providers at startup.
package config

import (
	"fmt"
	"os"
	"strconv"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/roelfdiedericks/ctxproxy/internal/providers"

	. "github.com/roelfdiedericks/ctxproxy/internal/logging"
)

// Config is the merged runtime configuration: defaults, overlaid by an
// optional YAML file, overlaid by environment variables (highest
// priority, per the external interface contract).
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	LLM LLMConfig `yaml:"llm"`

	RequestTimeoutSeconds int `yaml:"requestTimeoutSeconds"`
	MaxRetries            int `yaml:"maxRetries"`

	Memory       MemoryConfig       `yaml:"memory"`
	Optimization OptimizationConfig `yaml:"optimization"`
	Breaker      BreakerConfig      `yaml:"breaker"`
}

// LLMConfig is the default/fallback upstream used when a request's model
// doesn't resolve to a provider-prefixed route.
type LLMConfig struct {
	BaseURL string `yaml:"baseURL"`
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
}

// MemoryConfig configures the retrieval-augmentation subsystem.
type MemoryConfig struct {
	Enabled         bool   `yaml:"enabled"`
	VectorDBPath    string `yaml:"vectorDBPath"`
	EmbeddingModel  string `yaml:"embeddingModel"`
	EmbeddingDevice string `yaml:"embeddingDevice"`
	MaxResults      int    `yaml:"maxResults"`
}

// OptimizationConfig configures the sliding-window assembler.
type OptimizationConfig struct {
	Enabled               bool `yaml:"enabled"`
	PreserveLastNMessages int  `yaml:"preserveLastNMessages"`
	MaxHistoryTokens      int  `yaml:"maxHistoryTokens"`
	SystemPromptCleanup   bool `yaml:"systemPromptCleanup"`
}

// BreakerConfig configures the default circuit breaker thresholds applied
// to every provider and the memory subsystem's own breaker.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failureThreshold"`
	RecoveryTimeout  int `yaml:"recoveryTimeoutSeconds"`
}

// LoadResult carries the merged config plus the provider seeds parsed
// from an optional TOML file, and the paths watched for hot-reload.
type LoadResult struct {
	Config        *Config
	ProviderSeeds []providers.Provider
	ConfigPath    string
	ProvidersPath string
}

// Default returns the built-in defaults, matching spec.md's documented
// behavior for every environment variable left unset.
func Default() *Config {
	return &Config{
		Host:     "0.0.0.0",
		Port:     8080,
		LogLevel: "info",
		LLM: LLMConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		RequestTimeoutSeconds: 120,
		MaxRetries:            3,
		Memory: MemoryConfig{
			Enabled:         false,
			VectorDBPath:    "./data/memory.db",
			EmbeddingModel:  "nomic-embed-text",
			EmbeddingDevice: "cpu",
			MaxResults:      3,
		},
		Optimization: OptimizationConfig{
			Enabled:               true,
			PreserveLastNMessages: 1,
			MaxHistoryTokens:      4000,
			SystemPromptCleanup:   true,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  60,
		},
	}
}

// Load builds the config from defaults, an optional YAML overlay file
// (configPath, empty to skip), and environment variables, then parses an
// optional TOML provider-seed file (providersPath, empty to skip).
func Load(configPath, providersPath string) (*LoadResult, error) {
	cfg := Default()

	if configPath != "" {
		if err := overlayYAMLFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", configPath, err)
		}
		L_info("config: loaded YAML overlay", "path", configPath)
	}

	applyEnvOverrides(cfg)

	var seeds []providers.Provider
	if providersPath != "" {
		parsed, err := loadProviderSeeds(providersPath)
		if err != nil {
			return nil, fmt.Errorf("config: load providers %s: %w", providersPath, err)
		}
		seeds = parsed
		L_info("config: loaded provider seeds", "path", providersPath, "count", len(seeds))
	}

	return &LoadResult{
		Config:        cfg,
		ProviderSeeds: seeds,
		ConfigPath:    configPath,
		ProvidersPath: providersPath,
	}, nil
}

// overlayYAMLFile deep-merges a YAML file's contents onto cfg, with the
// file taking priority over built-in defaults for any field it sets.
func overlayYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			L_debug("config: no YAML overlay file found, using defaults", "path", path)
			return nil
		}
		return err
	}

	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse YAML: %w", err)
	}

	return mergo.Merge(cfg, overlay, mergo.WithOverride)
}

// applyEnvOverrides applies the environment variable contract named in
// the external interface table. Every name is load-bearing: renaming one
// is a breaking change.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HOST"); v != "" {
		cfg.Host = v
	}
	if v, ok := envInt("PORT"); ok {
		cfg.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v, ok := envInt("REQUEST_TIMEOUT"); ok {
		cfg.RequestTimeoutSeconds = v
	}
	if v, ok := envInt("MAX_RETRIES"); ok {
		cfg.MaxRetries = v
	}
	if v, ok := envBool("MEMORY_ENABLED"); ok {
		cfg.Memory.Enabled = v
	}
	if v := os.Getenv("VECTOR_DB_PATH"); v != "" {
		cfg.Memory.VectorDBPath = v
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.Memory.EmbeddingModel = v
	}
	if v := os.Getenv("EMBEDDING_DEVICE"); v != "" {
		cfg.Memory.EmbeddingDevice = v
	}
	if v, ok := envInt("MAX_MEMORY_RESULTS"); ok {
		cfg.Memory.MaxResults = v
	}
	if v, ok := envBool("OPTIMIZATION_ENABLED"); ok {
		cfg.Optimization.Enabled = v
	}
	if v, ok := envInt("PRESERVE_LAST_N_MESSAGES"); ok {
		cfg.Optimization.PreserveLastNMessages = v
	}
	if v, ok := envInt("MAX_HISTORY_TOKENS"); ok {
		cfg.Optimization.MaxHistoryTokens = v
	}
	if v, ok := envBool("SYSTEM_PROMPT_CLEANUP"); ok {
		cfg.Optimization.SystemPromptCleanup = v
	}
	if v, ok := envInt("CIRCUIT_BREAKER_THRESHOLD"); ok {
		cfg.Breaker.FailureThreshold = v
	}
	if v, ok := envInt("CIRCUIT_BREAKER_TIMEOUT"); ok {
		cfg.Breaker.RecoveryTimeout = v
	}
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		L_warn("config: ignoring malformed integer env var", "name", name, "value", v)
		return 0, false
	}
	return n, true
}

func envBool(name string) (bool, bool) {
	v := os.Getenv(name)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		L_warn("config: ignoring malformed boolean env var", "name", name, "value", v)
		return false, false
	}
	return b, true
}

// providerSeedFile is the on-disk TOML shape for the provider seed file:
// a flat table of provider id -> settings, parallel to the template
// definitions in internal/providers but editable without a redeploy.
type providerSeedFile struct {
	Providers map[string]providerSeedEntry `toml:"providers"`
}

type providerSeedEntry struct {
	Name          string            `toml:"name"`
	BaseURL       string            `toml:"base_url"`
	APIKey        string            `toml:"api_key"`
	DefaultModel  string            `toml:"default_model"`
	Models        []string          `toml:"models"`
	TimeoutSec    int               `toml:"timeout_seconds"`
	MaxRetries    int               `toml:"max_retries"`
	ContextWindow int               `toml:"context_window"`
	Enabled       bool              `toml:"enabled"`
	Headers       map[string]string `toml:"headers"`
	ExtraBody     map[string]any    `toml:"extra_body"`
}

func loadProviderSeeds(path string) ([]providers.Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var file providerSeedFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse TOML: %w", err)
	}

	out := make([]providers.Provider, 0, len(file.Providers))
	for id, e := range file.Providers {
		p := providers.Provider{
			ID:            id,
			Name:          e.Name,
			BaseURL:       e.BaseURL,
			APIKey:        e.APIKey,
			DefaultModel:  e.DefaultModel,
			Models:        e.Models,
			TimeoutSec:    e.TimeoutSec,
			MaxRetries:    e.MaxRetries,
			ContextWindow: e.ContextWindow,
			Enabled:       e.Enabled,
			Headers:       e.Headers,
			ExtraBody:     e.ExtraBody,
		}
		if p.TimeoutSec == 0 {
			p.TimeoutSec = providers.DefaultTimeoutSec
		}
		if p.MaxRetries == 0 {
			p.MaxRetries = providers.DefaultMaxRetries
		}
		if p.ContextWindow == 0 {
			p.ContextWindow = providers.DefaultContextWindow
		}
		out = append(out, p)
	}
	return out, nil
}

// ResolveDefaultPath returns path if non-empty, otherwise the first
// candidate that exists on disk, otherwise "". Used by cmd/proxy to find
// a config/providers file without requiring explicit flags.
func ResolveDefaultPath(path string, candidates ...string) string {
	if path != "" {
		return path
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}
