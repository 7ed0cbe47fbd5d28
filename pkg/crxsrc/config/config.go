package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/jamesainslie/crxsrc/pkg/crxsrc/logging"
)

// EnvPrefix prefixes every environment override, as in CRXSRC_WORKERS.
const EnvPrefix = "CRXSRC"

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// S3Config configures s3:// fetches.
type S3Config struct {
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

// Config represents the application configuration.
type Config struct {
	Output    string `mapstructure:"output"`
	Workers   int    `mapstructure:"workers"`
	Preset    string `mapstructure:"preset"`
	Normalize bool   `mapstructure:"normalize"`
	Format    string `mapstructure:"format"`
	Split     struct {
		Output string `mapstructure:"output"`
	} `mapstructure:"split"`
	Cache struct {
		Enabled bool   `mapstructure:"enabled"`
		Path    string `mapstructure:"path"`
	} `mapstructure:"cache"`
	History struct {
		Enabled       bool   `mapstructure:"enabled"`
		Path          string `mapstructure:"path"`
		RetentionDays int    `mapstructure:"retention_days"`
	} `mapstructure:"history"`
	Watch struct {
		Debounce   time.Duration `mapstructure:"debounce"`
		Extensions []string      `mapstructure:"extensions"`
	} `mapstructure:"watch"`
	Fetch struct {
		ProdVersion string   `mapstructure:"prod_version"`
		S3          S3Config `mapstructure:"s3"`
	} `mapstructure:"fetch"`
	Metrics struct {
		File string `mapstructure:"file"`
	} `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("output", DefaultOutput)
	v.SetDefault("workers", DefaultWorkers)
	v.SetDefault("preset", DefaultPreset)
	v.SetDefault("normalize", true)
	v.SetDefault("format", DefaultFormat)
	v.SetDefault("split.output", DefaultSplitOutput)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", "") // Empty means CacheDir()/normalize

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "") // Empty means HistoryDir()
	v.SetDefault("history.retention_days", DefaultRetentionDays)

	v.SetDefault("watch.debounce", DefaultDebounce)
	v.SetDefault("watch.extensions", DefaultWatchExtensions)

	v.SetDefault("fetch.prod_version", DefaultProdVersion)
	v.SetDefault("fetch.s3.region", "")
	v.SetDefault("fetch.s3.endpoint", "")
	v.SetDefault("fetch.s3.use_path_style", false)

	v.SetDefault("metrics.file", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "") // Empty means DefaultLogPath()
	v.SetDefault("logging.rotation.max_size", DefaultLogMaxSize)
	v.SetDefault("logging.rotation.max_age", 14)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.components", DefaultComponentLevels)
}

// Load reads configuration into v and decodes it. When file is empty the
// config is searched for in:
//   - $XDG_CONFIG_HOME/crxsrc/config.yaml
//   - $HOME/.config/crxsrc/config.yaml
//
// Environment variables are prefixed with CRXSRC_ (e.g. CRXSRC_WORKERS,
// CRXSRC_CACHE_ENABLED). A missing config file is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, "crxsrc"))
		}
		if homeDir, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".config", "crxsrc"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, p := range []*string{&cfg.Output, &cfg.Split.Output, &cfg.Cache.Path, &cfg.History.Path, &cfg.Logging.Path, &cfg.Metrics.File} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = filepath.Join(CacheDir(), "normalize")
	}
	if cfg.History.Path == "" {
		cfg.History.Path = HistoryDir()
	}

	return &cfg, nil
}

// LoggingOptions converts the logging section into logging.Config.
func (c *Config) LoggingOptions() (logging.Config, error) {
	rot := logging.RotationConfig{
		MaxAge:     c.Logging.Rotation.MaxAge,
		MaxBackups: c.Logging.Rotation.MaxBackups,
	}
	if c.Logging.Rotation.MaxSize != "" {
		size, err := humanize.ParseBytes(c.Logging.Rotation.MaxSize)
		if err != nil {
			return logging.Config{}, fmt.Errorf("invalid logging.rotation.max_size %q: %w", c.Logging.Rotation.MaxSize, err)
		}
		rot.MaxSize = int64(size)
	}

	return logging.Config{
		Level:      c.Logging.Level,
		Path:       c.Logging.Path,
		Rotation:   rot,
		Components: c.Logging.Components,
	}, nil
}

// ConfigDir returns the configuration directory.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "crxsrc")
}

// ConfigPath returns the default config file path.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// HistoryDir returns the default run history directory.
func HistoryDir() string {
	return filepath.Join(ConfigDir(), ".history")
}

// StateDir returns $XDG_STATE_HOME/crxsrc/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "crxsrc")
}

// CacheDir returns $XDG_CACHE_HOME/crxsrc/.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, "crxsrc")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// WriteDefault writes a commented default config file to path and returns
// false without touching it when the file already exists.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to check config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(`# crxsrc configuration

# Directory unpack writes into
output: %s

# Worker pool size for extraction and module writes (0 = sized from the host)
workers: %d

# Selector preset: sweep (js, json, html; original names) or legacy (js; generic names)
preset: %s

# Reformat scripts, markup and JSON after extraction
normalize: true

# Report format: pretty, plain, json, yaml
format: %s

split:
  # Directory split writes reconstructed modules into
  output: %s

# Normalization cache
cache:
  enabled: true
  # Empty means $XDG_CACHE_HOME/crxsrc/normalize
  path: ""

# Run history for unpack and split
history:
  enabled: true
  # Empty means $XDG_CONFIG_HOME/crxsrc/.history
  path: ""
  retention_days: %d

watch:
  debounce: %s
  extensions:
    - .crx
    - .zip

fetch:
  prod_version: "%s"
  s3:
    region: ""
    endpoint: ""
    use_path_style: false

metrics:
  # Write prometheus text exposition here after each command (empty disables)
  file: ""

logging:
  # Log level: debug, info, warn, error
  level: info
  # Empty means $XDG_STATE_HOME/crxsrc/crxsrc.log
  path: ""
  rotation:
    max_size: %s
    max_age: 14       # days
    max_backups: 3
  components:
    extract: info
    normalize: info
    bundle: info
    watcher: info
    cache: warn
    tui: info
`, DefaultOutput, DefaultWorkers, DefaultPreset, DefaultFormat, DefaultSplitOutput,
		DefaultRetentionDays, DefaultDebounce, DefaultProdVersion, DefaultLogMaxSize)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("failed to write default config: %w", err)
	}
	return true, nil
}
