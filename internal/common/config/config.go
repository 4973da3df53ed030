// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig               `mapstructure:"app"`
	Camunda  CamundaConfig           `mapstructure:"camunda"`
	Database DatabaseConfig          `mapstructure:"database"`
	Search   SearchConfig            `mapstructure:"search"`
	Registry RegistryConfig          `mapstructure:"registry"`
	Workers  map[string]WorkerConfig `mapstructure:"workers"`
	Logging  LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RegistryConfig points at the platform activity registry artifact. The
// bias registry path lives under search; this one describes the workers
// themselves.
type RegistryConfig struct {
	ActivityPath string `mapstructure:"activity_path"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Search Pipeline Configuration ---

// SearchConfig holds every tunable of the tiered search pipeline. Caps,
// bands and thresholds are deployment policy and must never be hard-coded
// at call sites. Duration-valued fields are milliseconds.
type SearchConfig struct {
	RegistryPath        string  `mapstructure:"registry_path"`
	PerTableLimit       int     `mapstructure:"per_table_limit"`
	OverallLimit        int     `mapstructure:"overall_limit"`
	EarlyExitTarget     int     `mapstructure:"early_exit_target"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	Tier1MinBias        float64 `mapstructure:"tier1_min_bias"`
	NoLLMSubstring      bool    `mapstructure:"no_llm_substring"`
	RequestTimeout      int     `mapstructure:"request_timeout"`    // milliseconds
	StepRetryBackoff    int     `mapstructure:"step_retry_backoff"` // milliseconds
	CacheEnabled        bool    `mapstructure:"cache_enabled"`
	CacheTTL            int     `mapstructure:"cache_ttl"` // milliseconds
	MaxQueryLength      int     `mapstructure:"max_query_length"`
	WaveScoreExact      float64 `mapstructure:"wave_score_exact"`
	WaveScoreSubstring  float64 `mapstructure:"wave_score_substring"`
	WaveScoreSimilarity float64 `mapstructure:"wave_score_similarity"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
