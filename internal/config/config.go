package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration.
type Config struct {
	Version  string         `yaml:"version"`
	Server   ServerConfig   `yaml:"server"`
	GHL      GHLConfig      `yaml:"ghl"`
	Storage  StorageConfig  `yaml:"storage"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// ServerConfig contains serve-mode HTTP server configuration.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	HTTPPort        int           `yaml:"http_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
}

// GHLConfig contains the LeadConnector API credentials and identifiers.
// Secrets are normally injected via ${VAR} expansion from the environment.
type GHLConfig struct {
	BaseURL      string `yaml:"base_url"`
	APIVersion   string `yaml:"api_version"`
	CompanyID    string `yaml:"company_id"`
	AppID        string `yaml:"app_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// StorageConfig contains paths for the persisted records.
type StorageConfig struct {
	AgencyTokenPath string `yaml:"agency_token_path"`
	LocationsPath   string `yaml:"locations_path"`
	RunHistoryPath  string `yaml:"run_history_path"`
	RetentionDays   int    `yaml:"retention_days"`
}

// PipelineConfig describes the sync pipeline: which location receives which
// documents, and the optional upstream generator.
type PipelineConfig struct {
	TargetLocationID string           `yaml:"target_location_id"`
	Documents        []DocumentConfig `yaml:"documents"`
	Generator        GeneratorConfig  `yaml:"generator"`
	Interval         time.Duration    `yaml:"interval"`
	WatchDocuments   bool             `yaml:"watch_documents"`
}

// DocumentConfig pairs a local Markdown file with the custom value it feeds.
type DocumentConfig struct {
	Path        string `yaml:"path"`
	CustomValue string `yaml:"custom_value"`
}

// GeneratorConfig describes the external content-generation commands that run
// before the credential stages. Each entry is a full command line.
type GeneratorConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Dir      string   `yaml:"dir"`
	Commands []string `yaml:"commands"`
}

// TelegramConfig contains the optional run-notification settings.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.GHL.Validate(); err != nil {
		return fmt.Errorf("ghl: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	return nil
}

// Validate validates server configuration.
func (s *ServerConfig) Validate() error {
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be between 1 and 65535")
	}
	if s.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}
	return nil
}

// Validate validates the LeadConnector configuration. Stage-specific
// requirements (company id, app id, client secret) are checked by the stages
// that need them, so a partial config can still run individual commands.
func (g *GHLConfig) Validate() error {
	if g.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if g.APIVersion == "" {
		return fmt.Errorf("api_version is required")
	}
	return nil
}

// Validate validates storage configuration.
func (s *StorageConfig) Validate() error {
	if s.AgencyTokenPath == "" {
		return fmt.Errorf("agency_token_path is required")
	}
	if s.LocationsPath == "" {
		return fmt.Errorf("locations_path is required")
	}
	if s.RetentionDays < 0 {
		return fmt.Errorf("retention_days must not be negative")
	}
	return nil
}

// Validate validates pipeline configuration.
func (p *PipelineConfig) Validate() error {
	for i, doc := range p.Documents {
		if doc.Path == "" {
			return fmt.Errorf("documents[%d]: path is required", i)
		}
		if doc.CustomValue == "" {
			return fmt.Errorf("documents[%d]: custom_value is required", i)
		}
	}
	if p.Interval < 0 {
		return fmt.Errorf("interval must not be negative")
	}
	return nil
}
