// Package config handles application configuration loading using viper.
// Settings come from defaults, an optional YAML file, and GOSNIFF_* env vars,
// in increasing precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level application configuration.
type Config struct {
	Capture CaptureConfig `mapstructure:"capture"`
	Web     WebConfig     `mapstructure:"web"`
	Export  ExportConfig  `mapstructure:"export"`
	Log     LogConfig     `mapstructure:"log"`
}

// CaptureConfig sizes the in-memory pipeline.
type CaptureConfig struct {
	// MaxPackets is the bounded history capacity.
	MaxPackets int `mapstructure:"max_packets"`
	// DefaultFilter is applied when no filter flag is given.
	DefaultFilter string `mapstructure:"default_filter"`
	// StreamBuffer is the per-viewer fan-out channel depth.
	StreamBuffer int `mapstructure:"stream_buffer"`
}

// WebConfig addresses the web view.
type WebConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// ExportConfig locates packet export files.
type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
	// File receives log output in TUI mode, where stderr is occupied by
	// the alternate screen.
	File string `mapstructure:"file"`
}

// Load reads configuration. An empty path skips the file and uses defaults
// plus environment overrides only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GOSNIFF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("capture.max_packets", 1000)
	v.SetDefault("capture.default_filter", "")
	v.SetDefault("capture.stream_buffer", 256)
	v.SetDefault("web.host", "0.0.0.0")
	v.SetDefault("web.port", 5000)
	v.SetDefault("export.dir", "exports")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "gosniff.log")
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Capture.MaxPackets < 1 {
		return fmt.Errorf("capture.max_packets must be at least 1, got %d", c.Capture.MaxPackets)
	}
	if c.Capture.StreamBuffer < 1 {
		return fmt.Errorf("capture.stream_buffer must be at least 1, got %d", c.Capture.StreamBuffer)
	}
	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port must be between 1 and 65535, got %d", c.Web.Port)
	}
	if c.Export.Dir == "" {
		return fmt.Errorf("export.dir must not be empty")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	return nil
}
