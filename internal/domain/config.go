package domain

import "time"

// Configuration Models

// Config represents the main application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	// RunDeadline bounds one full pipeline run; a well-formed response
	// (usually an abstention) is still emitted before it expires.
	RunDeadline time.Duration `mapstructure:"run_deadline"`
}

// RetrievalConfig represents evidence retrieval configuration
type RetrievalConfig struct {
	ClinVar      SourceConfig  `mapstructure:"clinvar"`
	PubMed       SourceConfig  `mapstructure:"pubmed"`
	StageTimeout time.Duration `mapstructure:"stage_timeout"`
}

// SourceConfig represents one evidence source's client configuration
type SourceConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  int           `mapstructure:"rate_limit"`
	RetryCount int           `mapstructure:"retry_count"`
	MaxRecords int           `mapstructure:"max_records"`
}

// CacheConfig represents retrieval cache configuration
type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	RedisURL   string        `mapstructure:"redis_url"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	LRUSize    int           `mapstructure:"lru_size"`
}

// PolicyConfig represents the gate engine's process-wide immutable policy
type PolicyConfig struct {
	BlacklistStems        []string `mapstructure:"blacklist_stems"`
	ConflictRateThreshold float64  `mapstructure:"conflict_rate_threshold"`
	ConfidenceFloor       float64  `mapstructure:"confidence_floor"`
	MaxVerificationPasses int      `mapstructure:"max_verification_passes"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
