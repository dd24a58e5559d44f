package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jardins/ghlsync/internal/errors"
	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is the LeadConnector API endpoint.
const DefaultBaseURL = "https://services.leadconnectorhq.com"

// DefaultAPIVersion is the value of the Version header sent on every call.
const DefaultAPIVersion = "2021-07-28"

// Loader handles configuration loading
type Loader struct {
	path   string
	mu     sync.RWMutex
	config *Config
}

// NewLoader creates a new configuration loader
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads the configuration from the file
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := os.Stat(l.path); err != nil {
		if os.IsNotExist(err) {
			return nil, &errors.ErrConfigNotFound{Path: l.path}
		}
		return nil, err
	}

	content, err := os.ReadFile(l.path)
	if err != nil {
		return nil, &errors.ErrFileRead{Path: l.path, Err: err}
	}

	content = substituteEnvVars(content)
	config, err := Parse(content)
	if err != nil {
		return nil, err
	}

	l.config = config
	return config, nil
}

// Get returns the current configuration
func (l *Loader) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// LoadFromEnv loads configuration using path from environment variable or default
func LoadFromEnv() (*Config, error) {
	path := os.Getenv("GHLSYNC_CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	loader := NewLoader(path)
	return loader.Load()
}

// MustLoad loads configuration or panics on error
func MustLoad(path string) *Config {
	loader := NewLoader(path)
	config, err := loader.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return config
}

// Parse parses configuration from a byte slice, applying defaults first.
func Parse(data []byte) (*Config, error) {
	config := Default()

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, &errors.ErrConfigParse{Err: err}
	}

	if err := config.Validate(); err != nil {
		return nil, &errors.ErrConfigValidation{Err: err}
	}

	return config, nil
}

// Default returns a configuration populated with defaults.
func Default() *Config {
	return &Config{
		Version: "1",
		Server: ServerConfig{
			Host:            "0.0.0.0",
			HTTPPort:        8319,
			ShutdownTimeout: 30 * time.Second,
			LogLevel:        "info",
		},
		GHL: GHLConfig{
			BaseURL:    DefaultBaseURL,
			APIVersion: DefaultAPIVersion,
		},
		Storage: StorageConfig{
			AgencyTokenPath: "./data/gohighlevel_token.json",
			LocationsPath:   "./data/installed_locations_data.json",
			RunHistoryPath:  "./data/ghlsync.db",
			RetentionDays:   30,
		},
		Pipeline: PipelineConfig{
			Interval: 6 * time.Hour,
		},
	}
}

func substituteEnvVars(content []byte) []byte {
	return []byte(os.ExpandEnv(string(content)))
}
