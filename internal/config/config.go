package config

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/vango-dev/vreconcile/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "vreconcile.json"

	// DefaultAddr is the default listen address of `vreconcile serve`.
	DefaultAddr = ":8080"

	// DefaultNamespace is the default Prometheus namespace.
	DefaultNamespace = "vreconcile"

	// DefaultHistoryPath is the default bbolt file, relative to the
	// config directory.
	DefaultHistoryPath = ".vreconcile/history.db"
)

// configNames are the accepted file names, in lookup order.
var configNames = []string{ConfigFileName, "vreconcile.yaml", "vreconcile.yml"}

// Snapshot drivers.
const (
	DriverNone = "none"
	DriverBolt = "bolt"
	DriverS3   = "s3"
)

// Config represents the complete vreconcile configuration.
type Config struct {
	// Log configures the structured logger.
	Log LogConfig `json:"log,omitempty" yaml:"log,omitempty"`

	// Metrics configures Prometheus instrumentation.
	Metrics MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`

	// Snapshot selects where render passes are recorded.
	Snapshot SnapshotConfig `json:"snapshot,omitempty" yaml:"snapshot,omitempty"`

	// Serve configures the websocket mirror.
	Serve ServeConfig `json:"serve,omitempty" yaml:"serve,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// MetricsConfig configures metrics.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// SnapshotConfig configures the pass record store.
type SnapshotConfig struct {
	// Driver is none, bolt or s3.
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"`

	// Path is the bbolt database file.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Bucket, Prefix, Region and Endpoint configure the s3 driver.
	Bucket   string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Region   string `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

// ServeConfig configures `vreconcile serve`.
type ServeConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`

	// ReadTimeout closes idle websocket clients (e.g., "60s").
	ReadTimeout string `json:"readTimeout,omitempty" yaml:"readTimeout,omitempty"`

	// AllowedOrigins lists origins accepted besides same-origin requests.
	AllowedOrigins []string `json:"allowedOrigins,omitempty" yaml:"allowedOrigins,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads configuration from the specified directory. It looks for
// vreconcile.json, then vreconcile.yaml and vreconcile.yml.
func Load(dir string) (*Config, error) {
	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("R401").
		WithDetail("No " + ConfigFileName + " found in " + dir).
		WithSuggestion("Create " + ConfigFileName + " or pass --config")
}

// LoadFile reads configuration from the specified file path. Files ending
// in .yaml or .yml are parsed as YAML, anything else as JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("R401").
				WithDetail("No config file at " + path)
		}
		return nil, errors.New("R401").Wrap(err)
	}

	cfg := &Config{}
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.New("R401").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithSuggestion("Check the file syntax")
	}

	cfg.configPath = path
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path, in YAML when the
// path ends in .yaml or .yml.
func (c *Config) SaveTo(path string) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("R401").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("R401").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}

	if c.Snapshot.Driver == "" {
		c.Snapshot.Driver = DriverNone
	}
	if c.Snapshot.Path == "" {
		c.Snapshot.Path = DefaultHistoryPath
	}
	if c.Snapshot.Region == "" {
		c.Snapshot.Region = "us-east-1"
	}

	if c.Serve.Addr == "" {
		c.Serve.Addr = DefaultAddr
	}
	if c.Serve.ReadTimeout == "" {
		c.Serve.ReadTimeout = "60s"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return errors.New("R401").
			WithDetailf("log.format must be text or json, got %q", c.Log.Format)
	}

	switch c.Snapshot.Driver {
	case DriverNone, DriverBolt:
	case DriverS3:
		if c.Snapshot.Bucket == "" {
			return errors.New("R401").
				WithDetail("snapshot.bucket is required for the s3 driver")
		}
	default:
		return errors.New("R401").
			WithDetailf("snapshot.driver must be none, bolt or s3, got %q", c.Snapshot.Driver)
	}

	if d, err := time.ParseDuration(c.Serve.ReadTimeout); err != nil || d <= 0 {
		return errors.New("R401").
			WithDetailf("serve.readTimeout must be a positive duration, got %q", c.Serve.ReadTimeout)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, errors.New("R401").
			WithDetailf("log.level must be debug, info, warn or error, got %q", s)
	}
	return level, nil
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// LogHandler returns a slog handler writing to w in the configured format.
func (c *Config) LogHandler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.Log.Format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// HistoryPath returns the absolute path of the bbolt database.
func (c *Config) HistoryPath() string {
	if filepath.IsAbs(c.Snapshot.Path) {
		return c.Snapshot.Path
	}
	return filepath.Join(c.Dir(), c.Snapshot.Path)
}

// ReadTimeout returns the websocket read timeout.
func (c *Config) ReadTimeout() time.Duration {
	d, err := time.ParseDuration(c.Serve.ReadTimeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range configNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// FindProjectRoot walks up directories to find the directory holding a
// config file.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("R401").
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the working directory or
// its nearest parent holding a config file. Without one, defaults are
// returned.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		cfg := New()
		cfg.configPath = filepath.Join(wd, ConfigFileName)
		return cfg, nil
	}

	return Load(root)
}
