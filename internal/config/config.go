package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/winprojfs/winprojfs/pkg/types"
	"github.com/winprojfs/winprojfs/pkg/utils"
)

// Configuration represents the complete bridge configuration
type Configuration struct {
	Instance      InstanceConfig     `yaml:"instance"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
	Metrics       MetricsConfig      `yaml:"metrics"`
}

// InstanceConfig represents virtualization instance settings handed to the
// driver at registration time
type InstanceConfig struct {
	// Worker thread counts the driver uses for callback delivery.
	// Zero lets the driver pick its defaults.
	PoolThreadCount       int `yaml:"pool_thread_count"`
	ConcurrentThreadCount int `yaml:"concurrent_thread_count"`

	// EnableNegativePathCache lets the driver remember NOT_FOUND answers
	// so repeated lookups of missing paths skip the provider.
	EnableNegativePathCache bool `yaml:"enable_negative_path_cache"`

	// ReadChunkSize caps the size of a single file-data write back to the
	// driver. Larger provider reads are split into chunks of this size.
	ReadChunkSize string `yaml:"read_chunk_size"`
}

// NotificationConfig selects which operation notifications the provider
// receives. The resulting mask is registered once at start and is
// immutable for the life of the registration.
type NotificationConfig struct {
	NotifyOnFileOpened               bool `yaml:"notify_on_file_opened"`
	NotifyOnFileHandleClosedModified bool `yaml:"notify_on_file_handle_closed_modified"`
	NotifyOnPreDelete                bool `yaml:"notify_on_pre_delete"`
	NotifyOnRename                   bool `yaml:"notify_on_rename"`
}

// Mask converts the toggles into the driver notification mask. Rename
// interest covers both the pre-operation check and the completion event.
func (n NotificationConfig) Mask() types.NotificationMask {
	var mask types.NotificationMask
	if n.NotifyOnFileOpened {
		mask = mask.With(types.NotifyFileOpened)
	}
	if n.NotifyOnFileHandleClosedModified {
		mask = mask.With(types.NotifyFileHandleClosedModified)
	}
	if n.NotifyOnPreDelete {
		mask = mask.With(types.NotifyPreDelete)
	}
	if n.NotifyOnRename {
		mask = mask.With(types.NotifyPreRename, types.NotifyFileRenamed)
	}
	return mask
}

// LoggingConfig represents logging settings
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// MetricsConfig represents metrics settings
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Instance: InstanceConfig{
			PoolThreadCount:         0,
			ConcurrentThreadCount:   0,
			EnableNegativePathCache: false,
			ReadChunkSize:           "1MB",
		},
		Notifications: NotificationConfig{},
		Logging: LoggingConfig{
			Level: "INFO",
			File:  "",
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Port:      9600,
			Path:      "/metrics",
			Namespace: "winprojfs",
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv loads configuration overrides from environment variables
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("WINPROJFS_LOG_LEVEL"); val != "" {
		c.Logging.Level = val
	}
	if val := os.Getenv("WINPROJFS_LOG_FILE"); val != "" {
		c.Logging.File = val
	}
	if val := os.Getenv("WINPROJFS_METRICS_ENABLED"); val != "" {
		c.Metrics.Enabled = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("WINPROJFS_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Metrics.Port = port
		}
	}
	if val := os.Getenv("WINPROJFS_READ_CHUNK_SIZE"); val != "" {
		c.Instance.ReadChunkSize = val
	}
	if val := os.Getenv("WINPROJFS_POOL_THREAD_COUNT"); val != "" {
		if count, err := strconv.Atoi(val); err == nil {
			c.Instance.PoolThreadCount = count
		}
	}
	if val := os.Getenv("WINPROJFS_NEGATIVE_PATH_CACHE"); val != "" {
		c.Instance.EnableNegativePathCache = strings.ToLower(val) == "true"
	}

	return nil
}

// ReadChunkBytes returns the parsed read chunk size in bytes.
func (c *Configuration) ReadChunkBytes() (int, error) {
	n, err := utils.ParseBytes(c.Instance.ReadChunkSize)
	if err != nil {
		return 0, fmt.Errorf("invalid read_chunk_size: %w", err)
	}
	return int(n), nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	if c.Instance.PoolThreadCount < 0 {
		return fmt.Errorf("pool_thread_count cannot be negative")
	}
	if c.Instance.ConcurrentThreadCount < 0 {
		return fmt.Errorf("concurrent_thread_count cannot be negative")
	}

	chunk, err := c.ReadChunkBytes()
	if err != nil {
		return err
	}
	if chunk <= 0 {
		return fmt.Errorf("read_chunk_size must be greater than 0")
	}

	if _, err := utils.ParseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
	}

	return nil
}
