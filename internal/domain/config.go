package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	GraphDB     GraphDBConfig     `mapstructure:"graphdb"`
	ExternalAPI ExternalAPIConfig `mapstructure:"external_api"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// GraphDBConfig represents the Neo4j connection configuration
type GraphDBConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Enabled  bool   `mapstructure:"enabled"`
}

// APIClientConfig is the shared per-collaborator client configuration.
// MinInterval is the minimum wall-clock gap between consecutive requests;
// zero disables interval limiting for that collaborator.
type APIClientConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RetryCount  int           `mapstructure:"retry_count"`
	MinInterval time.Duration `mapstructure:"min_interval"`
}

// ExternalAPIConfig groups the configuration of every collaborator client
type ExternalAPIConfig struct {
	OLS            APIClientConfig `mapstructure:"ols"`
	MeSH           APIClientConfig `mapstructure:"mesh"`
	OpenTargets    APIClientConfig `mapstructure:"opentargets"`
	ChEMBL         APIClientConfig `mapstructure:"chembl"`
	DGIdb          APIClientConfig `mapstructure:"dgidb"`
	Reactome       APIClientConfig `mapstructure:"reactome"`
	UniProt        APIClientConfig `mapstructure:"uniprot"`
	NCBIGene       APIClientConfig `mapstructure:"ncbi_gene"`
	StringDB       APIClientConfig `mapstructure:"stringdb"`
	PubMed         APIClientConfig `mapstructure:"pubmed"`
	ClinicalTrials APIClientConfig `mapstructure:"clinicaltrials"`
	WebSearch      APIClientConfig `mapstructure:"websearch"`
	LLM            LLMConfig       `mapstructure:"llm"`
}

// LLMConfig represents the optional text-generation collaborator
type LLMConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Temperature float64       `mapstructure:"temperature"`
	Enabled     bool          `mapstructure:"enabled"`
}

// CacheConfig represents the response cache configuration. Directory is the
// file-backed content-addressed store; RedisURL enables an optional hot tier.
type CacheConfig struct {
	Directory  string        `mapstructure:"directory"`
	RedisURL   string        `mapstructure:"redis_url"`
	RedisTTL   time.Duration `mapstructure:"redis_ttl"`
	MaxRetries int           `mapstructure:"max_retries"`
	PoolSize   int           `mapstructure:"pool_size"`
}

// PipelineConfig represents pipeline tuning knobs
type PipelineConfig struct {
	DataDir           string        `mapstructure:"data_dir"`
	MaxCandidates     int           `mapstructure:"max_candidates"`
	MinTargets        int           `mapstructure:"min_targets"`
	MaxTargets        int           `mapstructure:"max_targets"`
	TopPercent        float64       `mapstructure:"top_percent"`
	TargetConcurrency int           `mapstructure:"target_concurrency"`
	HTTPTimeout       time.Duration `mapstructure:"http_timeout"`
	RankingStrategy   string        `mapstructure:"ranking_strategy"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
