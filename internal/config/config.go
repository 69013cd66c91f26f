package config

import (
	"fmt"
	"strings"

	"github.com/drug-repurposing-server/internal/domain"
	"github.com/spf13/viper"
)

// Manager loads and validates the application configuration using Viper
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
	viper.AddConfigPath("/etc/repurposing-server/")

	viper.SetEnvPrefix("REPURPOSE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults and env vars cover every key
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
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "60s")
	viper.SetDefault("server.idle_timeout", "120s")

	// Graph database defaults
	viper.SetDefault("graphdb.uri", "neo4j://localhost:7687")
	viper.SetDefault("graphdb.username", "neo4j")
	viper.SetDefault("graphdb.password", "")
	viper.SetDefault("graphdb.database", "neo4j")
	viper.SetDefault("graphdb.enabled", false)

	// External collaborator defaults
	viper.SetDefault("external_api.ols.base_url", "https://www.ebi.ac.uk/ols4/api")
	viper.SetDefault("external_api.ols.timeout", "15s")
	viper.SetDefault("external_api.ols.retry_count", 3)

	viper.SetDefault("external_api.mesh.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	viper.SetDefault("external_api.mesh.timeout", "15s")
	viper.SetDefault("external_api.mesh.retry_count", 3)

	viper.SetDefault("external_api.opentargets.base_url", "https://api.platform.opentargets.org/api/v4/graphql")
	viper.SetDefault("external_api.opentargets.timeout", "30s")
	viper.SetDefault("external_api.opentargets.retry_count", 3)

	viper.SetDefault("external_api.chembl.base_url", "https://www.ebi.ac.uk/chembl/api/data")
	viper.SetDefault("external_api.chembl.timeout", "30s")
	viper.SetDefault("external_api.chembl.retry_count", 3)
	viper.SetDefault("external_api.chembl.min_interval", "3s")

	viper.SetDefault("external_api.dgidb.base_url", "https://dgidb.org/api/graphql")
	viper.SetDefault("external_api.dgidb.timeout", "20s")
	viper.SetDefault("external_api.dgidb.retry_count", 2)

	viper.SetDefault("external_api.reactome.base_url", "https://reactome.org/ContentService")
	viper.SetDefault("external_api.reactome.timeout", "15s")
	viper.SetDefault("external_api.reactome.retry_count", 2)

	viper.SetDefault("external_api.uniprot.base_url", "https://rest.uniprot.org")
	viper.SetDefault("external_api.uniprot.timeout", "10s")
	viper.SetDefault("external_api.uniprot.retry_count", 2)

	viper.SetDefault("external_api.ncbi_gene.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	viper.SetDefault("external_api.ncbi_gene.timeout", "15s")
	viper.SetDefault("external_api.ncbi_gene.retry_count", 2)

	viper.SetDefault("external_api.stringdb.base_url", "https://string-db.org/api")
	viper.SetDefault("external_api.stringdb.timeout", "10s")
	viper.SetDefault("external_api.stringdb.retry_count", 2)

	viper.SetDefault("external_api.pubmed.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	viper.SetDefault("external_api.pubmed.timeout", "30s")
	viper.SetDefault("external_api.pubmed.retry_count", 3)
	viper.SetDefault("external_api.pubmed.min_interval", "350ms")

	viper.SetDefault("external_api.clinicaltrials.base_url", "https://clinicaltrials.gov/api/v2")
	viper.SetDefault("external_api.clinicaltrials.timeout", "30s")
	viper.SetDefault("external_api.clinicaltrials.retry_count", 3)

	viper.SetDefault("external_api.websearch.base_url", "http://localhost:8888/search")
	viper.SetDefault("external_api.websearch.timeout", "30s")
	viper.SetDefault("external_api.websearch.retry_count", 3)

	viper.SetDefault("external_api.llm.base_url", "")
	viper.SetDefault("external_api.llm.model", "")
	viper.SetDefault("external_api.llm.timeout", "60s")
	viper.SetDefault("external_api.llm.temperature", 0.3)
	viper.SetDefault("external_api.llm.enabled", false)

	// Cache defaults
	viper.SetDefault("cache.directory", "./data/cache")
	viper.SetDefault("cache.redis_url", "")
	viper.SetDefault("cache.redis_ttl", "24h")
	viper.SetDefault("cache.max_retries", 3)
	viper.SetDefault("cache.pool_size", 10)

	// Pipeline defaults
	viper.SetDefault("pipeline.data_dir", "./data/runs")
	viper.SetDefault("pipeline.max_candidates", 50)
	viper.SetDefault("pipeline.min_targets", 20)
	viper.SetDefault("pipeline.max_targets", 50)
	viper.SetDefault("pipeline.top_percent", 10.0)
	viper.SetDefault("pipeline.target_concurrency", 5)
	viper.SetDefault("pipeline.http_timeout", "30s")
	viper.SetDefault("pipeline.ranking_strategy", "balanced")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetExternalAPIConfig returns external API configuration
func (m *Manager) GetExternalAPIConfig() *domain.ExternalAPIConfig {
	return &m.config.ExternalAPI
}

// GetPipelineConfig returns pipeline tuning configuration
func (m *Manager) GetPipelineConfig() *domain.PipelineConfig {
	return &m.config.Pipeline
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.GraphDB.Enabled {
		if config.GraphDB.URI == "" {
			return fmt.Errorf("graph database URI is required when graphdb is enabled")
		}
		if config.GraphDB.Username == "" {
			return fmt.Errorf("graph database username is required when graphdb is enabled")
		}
	}

	required := map[string]string{
		"OLS":            config.ExternalAPI.OLS.BaseURL,
		"MeSH":           config.ExternalAPI.MeSH.BaseURL,
		"Open Targets":   config.ExternalAPI.OpenTargets.BaseURL,
		"ChEMBL":         config.ExternalAPI.ChEMBL.BaseURL,
		"Reactome":       config.ExternalAPI.Reactome.BaseURL,
		"UniProt":        config.ExternalAPI.UniProt.BaseURL,
		"PubMed":         config.ExternalAPI.PubMed.BaseURL,
		"ClinicalTrials": config.ExternalAPI.ClinicalTrials.BaseURL,
	}
	for name, url := range required {
		if url == "" {
			return fmt.Errorf("%s base URL is required", name)
		}
	}

	if config.Cache.Directory == "" {
		return fmt.Errorf("cache directory is required")
	}
	if config.Pipeline.DataDir == "" {
		return fmt.Errorf("pipeline data directory is required")
	}
	if config.Pipeline.TopPercent <= 0 || config.Pipeline.TopPercent > 100 {
		return fmt.Errorf("invalid top_percent: %f", config.Pipeline.TopPercent)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(viper.GetString("environment")) == "production"
}
