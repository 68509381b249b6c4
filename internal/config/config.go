// Package config handles configuration for studychat.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix = "STUDYCHAT"
	// EnvHome relocates the configuration directory
	EnvHome = "STUDYCHAT_HOME"

	configFileName = "config.json"
	logFileName    = "studychat.log"
)

// MarkdownConfig configures markdown rendering options
type MarkdownConfig struct {
	Style            string `json:"style" mapstructure:"style"`                           // glamour style name or path to JSON theme
	EnableEmoji      bool   `json:"enable_emoji" mapstructure:"enable_emoji"`             // Convert :emoji: to unicode
	PreserveNewLines bool   `json:"preserve_newlines" mapstructure:"preserve_newlines"`   // Preserve original line breaks
	TableWrap        bool   `json:"table_wrap" mapstructure:"table_wrap"`                 // Enable word wrap in table cells
	InlineTableLinks bool   `json:"inline_table_links" mapstructure:"inline_table_links"` // Render links inline in tables
}

// Config represents the user configuration
type Config struct {
	ServerURL    string `json:"server_url" mapstructure:"server_url"`
	DefaultTopic string `json:"default_topic,omitempty" mapstructure:"default_topic"`
	// RequestTimeout bounds a whole exchange in seconds, streamed reply
	// included. Zero means no limit.
	RequestTimeout  int            `json:"request_timeout" mapstructure:"request_timeout"`
	Verbose         bool           `json:"verbose" mapstructure:"verbose"`
	LogLevel        string         `json:"log_level" mapstructure:"log_level"`
	LogFile         string         `json:"log_file,omitempty" mapstructure:"log_file"`
	CopyToClipboard bool           `json:"copy_to_clipboard" mapstructure:"copy_to_clipboard"`
	TUITheme        string         `json:"tui_theme,omitempty" mapstructure:"tui_theme"`
	Markdown        MarkdownConfig `json:"markdown" mapstructure:"markdown"`
}

// Timeout returns RequestTimeout as a duration
func (c Config) Timeout() time.Duration {
	if c.RequestTimeout <= 0 {
		return 0
	}
	return time.Duration(c.RequestTimeout) * time.Second
}

// DefaultMarkdownConfig returns the default markdown configuration
func DefaultMarkdownConfig() MarkdownConfig {
	return MarkdownConfig{
		Style:            "dark",
		EnableEmoji:      true,
		PreserveNewLines: true,
		TableWrap:        true,
		InlineTableLinks: false,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	configDir, _ := GetConfigDir()
	return Config{
		ServerURL:       "http://localhost:8000",
		RequestTimeout:  300,
		Verbose:         false,
		LogLevel:        "info",
		LogFile:         filepath.Join(configDir, logFileName),
		CopyToClipboard: false,
		TUITheme:        "tokyonight",
		Markdown:        DefaultMarkdownConfig(),
	}
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(EnvHome)); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, ".studychat"), nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist
func EnsureConfigDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFileName), nil
}

// newViper returns a viper instance seeded with the defaults and bound to
// STUDYCHAT_* environment variables.
func newViper(defaults Config) *viper.Viper {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server_url", defaults.ServerURL)
	v.SetDefault("default_topic", defaults.DefaultTopic)
	v.SetDefault("request_timeout", defaults.RequestTimeout)
	v.SetDefault("verbose", defaults.Verbose)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("log_file", defaults.LogFile)
	v.SetDefault("copy_to_clipboard", defaults.CopyToClipboard)
	v.SetDefault("tui_theme", defaults.TUITheme)
	v.SetDefault("markdown.style", defaults.Markdown.Style)
	v.SetDefault("markdown.enable_emoji", defaults.Markdown.EnableEmoji)
	v.SetDefault("markdown.preserve_newlines", defaults.Markdown.PreserveNewLines)
	v.SetDefault("markdown.table_wrap", defaults.Markdown.TableWrap)
	v.SetDefault("markdown.inline_table_links", defaults.Markdown.InlineTableLinks)

	return v
}

// LoadConfig loads the configuration: defaults, then the config file, then
// STUDYCHAT_* environment variables (STUDYCHAT_SERVER_URL,
// STUDYCHAT_MARKDOWN_STYLE, ...).
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	v := newViper(cfg)

	configPath, err := GetConfigPath()
	if err != nil {
		return cfg, err
	}

	if _, statErr := os.Stat(configPath); statErr == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(statErr) {
		return cfg, fmt.Errorf("failed to read config file: %w", statErr)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to decode config: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to disk
func SaveConfig(cfg Config) error {
	configDir, err := EnsureConfigDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(configDir, configFileName)

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LogLevels lists the accepted log_level values
func LogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

type setter func(cfg *Config, value string) error

var setters = map[string]setter{
	"server_url": func(cfg *Config, value string) error {
		if err := ValidateServerURL(value); err != nil {
			return err
		}
		cfg.ServerURL = strings.TrimRight(value, "/")
		return nil
	},
	"default_topic": func(cfg *Config, value string) error {
		cfg.DefaultTopic = value
		return nil
	},
	"request_timeout": func(cfg *Config, value string) error {
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("request_timeout must be a non-negative number of seconds")
		}
		cfg.RequestTimeout = n
		return nil
	},
	"verbose":           boolSetter(func(cfg *Config, b bool) { cfg.Verbose = b }),
	"copy_to_clipboard": boolSetter(func(cfg *Config, b bool) { cfg.CopyToClipboard = b }),
	"log_level": func(cfg *Config, value string) error {
		value = strings.ToLower(value)
		for _, l := range LogLevels() {
			if l == value {
				cfg.LogLevel = value
				return nil
			}
		}
		return fmt.Errorf("log_level must be one of %s", strings.Join(LogLevels(), ", "))
	},
	"log_file": func(cfg *Config, value string) error {
		cfg.LogFile = value
		return nil
	},
	"tui_theme": func(cfg *Config, value string) error {
		if value == "" {
			return fmt.Errorf("tui_theme cannot be empty")
		}
		cfg.TUITheme = value
		return nil
	},
	"markdown.style": func(cfg *Config, value string) error {
		if value == "" {
			return fmt.Errorf("markdown.style cannot be empty")
		}
		cfg.Markdown.Style = value
		return nil
	},
	"markdown.enable_emoji":       boolSetter(func(cfg *Config, b bool) { cfg.Markdown.EnableEmoji = b }),
	"markdown.preserve_newlines":  boolSetter(func(cfg *Config, b bool) { cfg.Markdown.PreserveNewLines = b }),
	"markdown.table_wrap":         boolSetter(func(cfg *Config, b bool) { cfg.Markdown.TableWrap = b }),
	"markdown.inline_table_links": boolSetter(func(cfg *Config, b bool) { cfg.Markdown.InlineTableLinks = b }),
}

func boolSetter(apply func(cfg *Config, b bool)) setter {
	return func(cfg *Config, value string) error {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("expected true or false, got %q", value)
		}
		apply(cfg, b)
		return nil
	}
}

// Keys returns the settable configuration keys, sorted
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetValue validates value and applies it to cfg under key
func SetValue(cfg *Config, key, value string) error {
	set, ok := setters[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return fmt.Errorf("unknown config key %q (valid keys: %s)", key, strings.Join(Keys(), ", "))
	}
	if err := set(cfg, strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return nil
}

// ValidateServerURL checks that raw is an absolute http(s) URL
func ValidateServerURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
