package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/egvia-interpret-server/internal/domain"
)

// Manager loads and holds the process-wide configuration using Viper.
// The configuration is immutable after load and shared read-only across
// concurrent pipeline runs.
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from file, environment, and defaults
func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/egvia/")

	viper.SetEnvPrefix("EGVIA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults plus env vars are a complete setup.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.run_deadline", "25s")

	// Retrieval defaults
	viper.SetDefault("retrieval.stage_timeout", "10s")
	viper.SetDefault("retrieval.clinvar.enabled", false)
	viper.SetDefault("retrieval.clinvar.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/")
	viper.SetDefault("retrieval.clinvar.timeout", "10s")
	viper.SetDefault("retrieval.clinvar.rate_limit", 3)
	viper.SetDefault("retrieval.clinvar.retry_count", 3)
	viper.SetDefault("retrieval.clinvar.max_records", 5)
	viper.SetDefault("retrieval.pubmed.enabled", false)
	viper.SetDefault("retrieval.pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/")
	viper.SetDefault("retrieval.pubmed.timeout", "10s")
	viper.SetDefault("retrieval.pubmed.rate_limit", 3)
	viper.SetDefault("retrieval.pubmed.retry_count", 3)
	viper.SetDefault("retrieval.pubmed.max_records", 5)

	// Cache defaults
	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.redis_url", "redis://localhost:6379")
	viper.SetDefault("cache.default_ttl", "24h")
	viper.SetDefault("cache.lru_size", 256)

	// Policy defaults
	viper.SetDefault("policy.blacklist_stems", []string{"treat", "therapy", "dose", "prescribe", "recommend"})
	viper.SetDefault("policy.conflict_rate_threshold", 0.5)
	viper.SetDefault("policy.confidence_floor", 0.35)
	viper.SetDefault("policy.max_verification_passes", 2)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetRetrievalConfig returns retrieval configuration
func (m *Manager) GetRetrievalConfig() *domain.RetrievalConfig {
	return &m.config.Retrieval
}

// GetPolicyConfig returns the gate engine policy configuration
func (m *Manager) GetPolicyConfig() *domain.PolicyConfig {
	return &m.config.Policy
}

// GetCacheConfig returns retrieval cache configuration
func (m *Manager) GetCacheConfig() *domain.CacheConfig {
	return &m.config.Cache
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.RunDeadline <= 0 {
		return fmt.Errorf("server run deadline must be positive")
	}

	if config.Retrieval.ClinVar.Enabled && config.Retrieval.ClinVar.BaseURL == "" {
		return fmt.Errorf("ClinVar base URL is required when ClinVar retrieval is enabled")
	}
	if config.Retrieval.PubMed.Enabled && config.Retrieval.PubMed.BaseURL == "" {
		return fmt.Errorf("PubMed base URL is required when PubMed retrieval is enabled")
	}

	if config.Cache.Enabled && config.Cache.RedisURL == "" && config.Cache.LRUSize <= 0 {
		return fmt.Errorf("cache requires a Redis URL or a positive LRU size")
	}

	if len(config.Policy.BlacklistStems) == 0 {
		return fmt.Errorf("policy blacklist stems must not be empty")
	}
	if config.Policy.ConflictRateThreshold <= 0 || config.Policy.ConflictRateThreshold > 1 {
		return fmt.Errorf("conflict rate threshold must be within (0,1]: %v", config.Policy.ConflictRateThreshold)
	}
	if config.Policy.ConfidenceFloor < 0 || config.Policy.ConfidenceFloor >= 1 {
		return fmt.Errorf("confidence floor must be within [0,1): %v", config.Policy.ConfidenceFloor)
	}
	if config.Policy.MaxVerificationPasses < 1 {
		return fmt.Errorf("max verification passes must be at least 1")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}
