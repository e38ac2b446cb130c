package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/natefinch/atomic"

	"github.com/CTAG07/acfget/pkg/templating"
	"github.com/CTAG07/acfget/pkg/wpstore"
)

// ServerConfig holds the configuration for the HTTP server.
type ServerConfig struct {
	ApiAddr      string `json:"api_addr" validate:"required,hostname_port"`
	LogLevel     string `json:"log_level" validate:"oneof=debug info warn error"`
	DataDir      string `json:"data_dir" validate:"required"`
	DatabasePath string `json:"database_path" validate:"required"`
	TemplateDir  string `json:"template_dir" validate:"required"`
	MinifyHTML   bool   `json:"minify_html"`
	MaxBodyBytes int64  `json:"max_body_bytes" validate:"gte=1024"`

	Compression CompressionConfig `json:"compression"`
}

// CompressionConfig controls gzip compression of API responses.
type CompressionConfig struct {
	Enabled bool   `json:"enabled"`
	Level   string `json:"level" validate:"oneof=none fastest default best"`
	MinSize int    `json:"min_size" validate:"gte=0"`
}

// StoreConfig selects and configures the field data source.
type StoreConfig struct {
	// Driver is "fixture" for a YAML file, or a SQL driver for a WordPress
	// database.
	Driver string `json:"driver" validate:"oneof=fixture sqlite mysql"`

	// DSN is the database data source name for the SQL drivers.
	DSN string `json:"dsn" validate:"required_unless=Driver fixture"`

	// FixturePath is the YAML file read by the fixture driver, or imported
	// into a fresh SQLite database when ImportFixture is set.
	FixturePath   string `json:"fixture_path" validate:"required_if=Driver fixture"`
	WatchFixture  bool   `json:"watch_fixture"`
	SetupSchema   bool   `json:"setup_schema"`
	ImportFixture bool   `json:"import_fixture"`

	WordPress wpstore.Config `json:"wordpress"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	Server    *ServerConfig      `json:"server_config" validate:"required"`
	Templates *templating.Config `json:"template_config" validate:"required"`
	Store     *StoreConfig       `json:"store_config" validate:"required"`
}

// DefaultServerConfig creates a server configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ApiAddr:      "localhost:7380",
		LogLevel:     "info",
		DataDir:      "./data",
		DatabasePath: "./data/acfget.db",
		TemplateDir:  "./data/templates",
		MinifyHTML:   false,
		MaxBodyBytes: 1 << 20,
		Compression: CompressionConfig{
			Enabled: true,
			Level:   "default",
			MinSize: 1024,
		},
	}
}

// DefaultStoreConfig serves the bundled fixture.
func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		Driver:       "fixture",
		FixturePath:  "./data/fixture.yaml",
		WatchFixture: true,
		WordPress:    wpstore.DefaultConfig(),
	}
}

func defaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Templates: templating.DefaultConfig(),
		Store:     DefaultStoreConfig(),
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateConfig checks every section and flattens validator errors into one
// readable message.
func validateConfig(config *Config) error {
	if err := validateStruct(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// validateStruct runs the struct tags of v and flattens any failures into a
// single error.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed '%s'", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(path string) (*Config, error) {
	config := defaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			var data []byte
			data, err = json.MarshalIndent(config, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				fmt.Printf("warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err = validateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// ConfigManager handles thread-safe access to the configuration and pushes
// template settings to the render engine.
type ConfigManager struct {
	config     *Config
	mu         sync.RWMutex
	configPath string
	logger     *slog.Logger
	engine     *templating.Engine
}

// NewConfigManager loads the config and initializes the manager.
func NewConfigManager(path string) (*ConfigManager, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return &ConfigManager{
		config:     cfg,
		configPath: path,
		logger:     slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{})),
	}, nil
}

// SetEngine registers the render engine to receive template config updates.
func (cm *ConfigManager) SetEngine(engine *templating.Engine) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.engine = engine
}

func (cm *ConfigManager) SetLogger(logger *slog.Logger) {
	cm.logger = logger
}

// Get returns a copy of the current configuration.
func (cm *ConfigManager) Get() Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return *cm.config
}

// Update validates the configuration, applies the template section to the
// engine, and saves it to disk. Store and server changes take effect on the
// next restart.
func (cm *ConfigManager) Update(newConfig Config) error {
	if err := validateConfig(&newConfig); err != nil {
		return err
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.engine != nil {
		if err := cm.engine.SetConfig(newConfig.Templates); err != nil {
			return fmt.Errorf("template configuration rejected: %w", err)
		}
	}

	*cm.config = newConfig

	data, err := json.MarshalIndent(cm.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err = atomic.WriteFile(cm.configPath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	cm.logger.Info("Configuration updated", "path", cm.configPath)
	return nil
}

// parseLogLevel maps a config level name to a slog level, defaulting to info.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
