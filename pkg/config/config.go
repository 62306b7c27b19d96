package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for imgfetch
type Config struct {
	// Remote image server
	Server ServerConfig `yaml:"server" json:"server"`

	// Batch acquisition settings
	Batch BatchConfig `yaml:"batch" json:"batch"`

	// Paginated search settings
	Search SearchConfig `yaml:"search" json:"search"`

	// Output settings for exports
	Output OutputConfig `yaml:"output" json:"output"`

	// Notification preferences
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// ServerConfig holds the remote server connection settings
type ServerConfig struct {
	BaseURL string        `yaml:"base_url" json:"base_url"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// BatchConfig holds batch acquisition configuration
type BatchConfig struct {
	Cadence      time.Duration `yaml:"cadence" json:"cadence"`
	DefaultCount int           `yaml:"default_count" json:"default_count"`
	MaxCount     int           `yaml:"max_count" json:"max_count"`
	AutoExport   bool          `yaml:"auto_export" json:"auto_export"`
}

// SearchConfig holds pagination configuration
type SearchConfig struct {
	PageSize int `yaml:"page_size" json:"page_size"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory     string `yaml:"base_directory" json:"base_directory"`
	OverwriteExisting bool   `yaml:"overwrite_existing" json:"overwrite_existing"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled          bool   `yaml:"enabled" json:"enabled"`
	NotificationType string `yaml:"notification_type" json:"notification_type"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// MetricsConfig holds the optional prometheus listener
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	ListenAddress string `yaml:"listen_address" json:"listen_address"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL: "http://localhost:5000",
			Timeout: 30 * time.Second,
		},
		Batch: BatchConfig{
			Cadence:      time.Second,
			DefaultCount: 10,
			MaxCount:     50,
			AutoExport:   false,
		},
		Search: SearchConfig{
			PageSize: 12,
		},
		Output: OutputConfig{
			BaseDirectory:     "./downloads",
			OverwriteExisting: false,
		},
		Notifications: NotificationConfig{
			Enabled:          true,
			NotificationType: "terminal",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
		Metrics: MetricsConfig{
			Enabled:       false,
			ListenAddress: ":9090",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if baseURL := os.Getenv("IMGFETCH_BASE_URL"); baseURL != "" {
		c.Server.BaseURL = baseURL
	}
	if timeout := os.Getenv("IMGFETCH_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid IMGFETCH_TIMEOUT: %w", err)
		}
		c.Server.Timeout = d
	}
	if cadence := os.Getenv("IMGFETCH_CADENCE"); cadence != "" {
		d, err := time.ParseDuration(cadence)
		if err != nil {
			return fmt.Errorf("invalid IMGFETCH_CADENCE: %w", err)
		}
		c.Batch.Cadence = d
	}
	if autoExport := os.Getenv("IMGFETCH_AUTO_EXPORT"); autoExport != "" {
		c.Batch.AutoExport = strings.ToLower(autoExport) == "true"
	}
	if pageSize := os.Getenv("IMGFETCH_PAGE_SIZE"); pageSize != "" {
		val, err := strconv.Atoi(pageSize)
		if err != nil {
			return fmt.Errorf("invalid IMGFETCH_PAGE_SIZE: %w", err)
		}
		c.Search.PageSize = val
	}
	if outputDir := os.Getenv("IMGFETCH_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if notifEnabled := os.Getenv("IMGFETCH_NOTIFICATIONS_ENABLED"); notifEnabled != "" {
		c.Notifications.Enabled = strings.ToLower(notifEnabled) == "true"
	}
	if logLevel := os.Getenv("IMGFETCH_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".imgfetch.yaml",
		".imgfetch.yml",
		filepath.Join(home, ".config", "imgfetch", "config.yaml"),
		filepath.Join(home, ".config", "imgfetch", "config.yml"),
		filepath.Join(home, ".imgfetch.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.Server.BaseURL)
	if c.Server.BaseURL == "" || err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, errors.New("server base URL must be an absolute URL"))
	}
	if c.Server.Timeout <= 0 {
		errs = append(errs, errors.New("server timeout must be positive"))
	}

	if c.Batch.Cadence <= 0 {
		errs = append(errs, errors.New("batch cadence must be positive"))
	}
	if c.Batch.MaxCount <= 0 {
		errs = append(errs, errors.New("batch max count must be positive"))
	}
	if c.Batch.DefaultCount <= 0 || c.Batch.DefaultCount > c.Batch.MaxCount {
		errs = append(errs, errors.New("batch default count must be between 1 and max count"))
	}

	if c.Search.PageSize <= 0 {
		errs = append(errs, errors.New("search page size must be positive"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	validNotifTypes := map[string]bool{
		"terminal": true, "desktop": true, "none": true,
	}
	if !validNotifTypes[strings.ToLower(c.Notifications.NotificationType)] {
		errs = append(errs, errors.New("invalid notification type"))
	}

	if c.Metrics.Enabled && c.Metrics.ListenAddress == "" {
		errs = append(errs, errors.New("metrics listen address is required when metrics are enabled"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if baseURL, ok := flags["base-url"].(string); ok && baseURL != "" {
		c.Server.BaseURL = baseURL
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if cadence, ok := flags["cadence"].(time.Duration); ok && cadence > 0 {
		c.Batch.Cadence = cadence
	}
	if autoExport, ok := flags["auto-export"].(bool); ok {
		c.Batch.AutoExport = autoExport
	}
	if pageSize, ok := flags["page-size"].(int); ok && pageSize > 0 {
		c.Search.PageSize = pageSize
	}
	if enabled, ok := flags["notifications"].(bool); ok {
		c.Notifications.Enabled = enabled
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if metricsAddr, ok := flags["metrics-addr"].(string); ok && metricsAddr != "" {
		c.Metrics.Enabled = true
		c.Metrics.ListenAddress = metricsAddr
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".imgfetch.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
