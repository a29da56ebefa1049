// Package config loads regenforce settings from defaults, an optional TOML
// file and REGENFORCE_* environment variables, in increasing precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "regenforce"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "toml"
	// EnvPrefix prefixes environment overrides, e.g. REGENFORCE_LOG_LEVEL.
	EnvPrefix = "REGENFORCE"
)

// Config is the effective configuration.
type Config struct {
	PolicyDir    string        `mapstructure:"policy_dir" toml:"policy_dir" validate:"required"`
	Snapshot     string        `mapstructure:"snapshot" toml:"snapshot"`
	Encoding     string        `mapstructure:"encoding" toml:"encoding" validate:"omitempty,oneof=UTF-8 UTF-16LE WINDOWS-1252 utf-8 utf-16le windows-1252"`
	PollInterval time.Duration `mapstructure:"poll_interval" toml:"poll_interval" validate:"min=100ms"`

	Watch   WatchConfig   `mapstructure:"watch" toml:"watch"`
	Log     LogConfig     `mapstructure:"log" toml:"log"`
	Metrics MetricsConfig `mapstructure:"metrics" toml:"metrics"`
}

// WatchConfig controls the watch command.
type WatchConfig struct {
	Poll    bool `mapstructure:"poll" toml:"poll"`
	Notify  bool `mapstructure:"notify" toml:"notify"`
	Reload  bool `mapstructure:"reload" toml:"reload"`
	Buffer  int  `mapstructure:"buffer" toml:"buffer" validate:"min=1,max=4096"`
	AutoFix bool `mapstructure:"auto_fix" toml:"auto_fix"`
}

// LogConfig mirrors logger.Options.
type LogConfig struct {
	Level  string `mapstructure:"level" toml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" toml:"format" validate:"oneof=console json"`
	Output string `mapstructure:"output" toml:"output" validate:"oneof=stderr stdout file"`
	Dir    string `mapstructure:"dir" toml:"dir"`
}

// MetricsConfig controls the Prometheus endpoint of the watch command.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
	Addr    string `mapstructure:"addr" toml:"addr" validate:"omitempty,hostname_port"`
}

// LoadOptions controls where Load looks for a config file.
type LoadOptions struct {
	// ConfigFilePath is an explicit file; it must exist.
	ConfigFilePath string
	// ConfigDirPath overrides Dir() for the default file location.
	ConfigDirPath string
}

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	policyDir := "policies"
	if dir, err := Dir(); err == nil {
		policyDir = filepath.Join(dir, "policies")
	}
	return &Config{
		PolicyDir:    policyDir,
		PollInterval: 2 * time.Second,
		Watch: WatchConfig{
			Poll:   true,
			Notify: true,
			Reload: true,
			Buffer: 16,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Addr: ":9464",
		},
	}
}

// Load builds the effective configuration and returns it with the path of
// the file it read, or "" when only defaults and environment applied.
func Load(opts LoadOptions) (*Config, string, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("policy_dir", defaults.PolicyDir)
	v.SetDefault("snapshot", defaults.Snapshot)
	v.SetDefault("encoding", defaults.Encoding)
	v.SetDefault("poll_interval", defaults.PollInterval)
	v.SetDefault("watch.poll", defaults.Watch.Poll)
	v.SetDefault("watch.notify", defaults.Watch.Notify)
	v.SetDefault("watch.reload", defaults.Watch.Reload)
	v.SetDefault("watch.buffer", defaults.Watch.Buffer)
	v.SetDefault("watch.auto_fix", defaults.Watch.AutoFix)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
	v.SetDefault("log.output", defaults.Log.Output)
	v.SetDefault("log.dir", defaults.Log.Dir)
	v.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	v.SetDefault("metrics.addr", defaults.Metrics.Addr)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath, err := findConfigFile(opts)
	if err != nil {
		return nil, "", err
	}
	if resolvedPath != "" {
		v.SetConfigFile(resolvedPath)
		v.SetConfigType(ConfigFileExt)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("failed to read config %s: %w", resolvedPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, "", err
	}
	return &cfg, resolvedPath, nil
}

func findConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", fmt.Errorf("config file not found: %s", opts.ConfigFilePath)
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir := opts.ConfigDirPath
	if cfgDir == "" {
		dir, err := Dir()
		if err != nil {
			return "", err
		}
		cfgDir = dir
	}
	if p := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt); fileExists(p) {
		return p, nil
	}
	if p := AppName + "." + ConfigFileExt; fileExists(p) {
		return p, nil
	}
	return "", nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

var validate = validator.New()

// Validate checks cfg against its field constraints.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Encode renders cfg as TOML.
func Encode(cfg *Config) (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.String(), nil
}
