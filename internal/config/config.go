// Package config provides configuration management for the gateway server.
// It handles loading and parsing YAML configuration files and provides
// structured access to application settings including the server port,
// pool tuning knobs, fallback chains, and proxy opt-ins.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Port is the network port on which the API server will listen.
	Port int `yaml:"port"`

	// Debug enables or disables debug-level logging.
	Debug bool `yaml:"debug"`

	// LoggingToFile routes log output to rotating files instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file"`

	// ProviderPoolsFilePath is the location of the persisted pool state file.
	// Overridable via the PROVIDER_POOLS_FILE_PATH environment variable.
	ProviderPoolsFilePath string `yaml:"provider-pools-file-path"`

	// ProviderFallbackChain maps a provider type to the ordered list of
	// alternate types tried when the primary has no healthy accounts.
	ProviderFallbackChain map[string][]string `yaml:"provider-fallback-chain"`

	// RequestMaxRetries is the retry budget for transient upstream failures.
	RequestMaxRetries int `yaml:"request-max-retries"`

	// RequestBaseDelayMs is the base delay for exponential backoff, in milliseconds.
	RequestBaseDelayMs int `yaml:"request-base-delay"`

	// CronNearMinutes is the token near-expiry window in minutes.
	// Overridable via the CRON_NEAR_MINUTES environment variable.
	CronNearMinutes int `yaml:"cron-near-minutes"`

	// OpenAIReasoningMaxTokens caps max_completion_tokens when translating
	// Claude thinking requests that carry no explicit max_tokens.
	OpenAIReasoningMaxTokens int `yaml:"openai-reasoning-max-tokens"`

	// UseSystemProxyGemini forwards the system proxy to Gemini adapters.
	UseSystemProxyGemini bool `yaml:"use-system-proxy-gemini"`

	// UseSystemProxyOpenAI forwards the system proxy to OpenAI adapters.
	UseSystemProxyOpenAI bool `yaml:"use-system-proxy-openai"`

	// UseSystemProxyClaude forwards the system proxy to Claude adapters.
	UseSystemProxyClaude bool `yaml:"use-system-proxy-claude"`

	// ProxyURL is the URL of an optional proxy server for outbound requests.
	ProxyURL string `yaml:"proxy-url"`

	// UsageStorePath is the location of the bbolt usage/event store.
	UsageStorePath string `yaml:"usage-store-path"`

	// Pool holds the pool manager tuning knobs.
	Pool PoolConfig `yaml:"pool"`
}

// PoolConfig groups the pool manager tuning knobs.
type PoolConfig struct {
	// MaxErrorCount is the error threshold that flips an account unhealthy.
	MaxErrorCount int `yaml:"max-error-count"`

	// HealthCheckIntervalMs is the periodic health check cadence.
	HealthCheckIntervalMs int `yaml:"health-check-interval"`

	// SaveDebounceTimeMs is the debounce window for pool state persistence.
	SaveDebounceTimeMs int `yaml:"save-debounce-time"`

	// QuickRetryIntervalMs spaces the quick-retry recovery probes.
	QuickRetryIntervalMs int `yaml:"quick-retry-interval"`

	// QuickRetryMaxCount bounds the quick-retry probe quota.
	QuickRetryMaxCount int `yaml:"quick-retry-max-count"`

	// RateLimitHealthCheckIntervalMs is the recovery probe delay after a 429.
	RateLimitHealthCheckIntervalMs int `yaml:"rate-limit-health-check-interval"`

	// StandardHealthCheckIntervalMs is the recovery probe delay once the
	// quick-retry quota is exhausted.
	StandardHealthCheckIntervalMs int `yaml:"standard-health-check-interval"`

	// AutoHealthCheckEnabled toggles the recovery scheduler entirely.
	AutoHealthCheckEnabled *bool `yaml:"auto-health-check-enabled"`
}

// LoadConfig reads a YAML configuration file from the given path, unmarshals
// it into a Config struct, applies defaults and environment overrides, and
// returns it.
func LoadConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.SetDefaults()
	config.applyEnvOverrides()
	return &config, nil
}

// SetDefaults fills in the documented default for every knob left unset.
func (c *Config) SetDefaults() {
	if c.Port == 0 {
		c.Port = 8317
	}
	if c.ProviderPoolsFilePath == "" {
		c.ProviderPoolsFilePath = "provider_pools.json"
	}
	if c.UsageStorePath == "" {
		c.UsageStorePath = "usage.db"
	}
	if c.RequestMaxRetries == 0 {
		c.RequestMaxRetries = 3
	}
	if c.RequestBaseDelayMs == 0 {
		c.RequestBaseDelayMs = 1000
	}
	if c.CronNearMinutes == 0 {
		c.CronNearMinutes = 10
	}
	if c.Pool.MaxErrorCount == 0 {
		c.Pool.MaxErrorCount = 3
	}
	if c.Pool.HealthCheckIntervalMs == 0 {
		c.Pool.HealthCheckIntervalMs = int(10 * time.Minute / time.Millisecond)
	}
	if c.Pool.SaveDebounceTimeMs == 0 {
		c.Pool.SaveDebounceTimeMs = 1000
	}
	if c.Pool.QuickRetryIntervalMs == 0 {
		c.Pool.QuickRetryIntervalMs = 10000
	}
	if c.Pool.QuickRetryMaxCount == 0 {
		c.Pool.QuickRetryMaxCount = 3
	}
	if c.Pool.RateLimitHealthCheckIntervalMs == 0 {
		c.Pool.RateLimitHealthCheckIntervalMs = int(3 * time.Hour / time.Millisecond)
	}
	if c.Pool.StandardHealthCheckIntervalMs == 0 {
		c.Pool.StandardHealthCheckIntervalMs = int(3 * time.Hour / time.Millisecond)
	}
	if c.Pool.AutoHealthCheckEnabled == nil {
		enabled := true
		c.Pool.AutoHealthCheckEnabled = &enabled
	}
}

func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("PROVIDER_POOLS_FILE_PATH"); path != "" {
		c.ProviderPoolsFilePath = path
	}
	if raw := os.Getenv("CRON_NEAR_MINUTES"); raw != "" {
		if minutes, err := strconv.Atoi(raw); err == nil && minutes > 0 {
			c.CronNearMinutes = minutes
		}
	}
}

// SaveDebounceTime returns the persistence debounce window as a duration.
func (c *Config) SaveDebounceTime() time.Duration {
	return time.Duration(c.Pool.SaveDebounceTimeMs) * time.Millisecond
}

// RequestBaseDelay returns the backoff base delay as a duration.
func (c *Config) RequestBaseDelay() time.Duration {
	return time.Duration(c.RequestBaseDelayMs) * time.Millisecond
}
