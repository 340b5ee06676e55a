// Package config loads esdmd's runtime configuration from flags,
// environment variables, and an optional config file, in that precedence
// order (SPEC_FULL.md §6 expansion).
//
// A viper.Viper instance carries an env prefix, an optional config file,
// defaults applied before unmarshal, and a small validation pass over the
// transport/process knobs spec §6 names.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/esdm-project/esdmd"
)

// Config is every knob the bootstrap/supervisor/connserver layers need
// (spec §4.7, §4.8, §6).
type Config struct {
	UnprivSocketPath string        `mapstructure:"unpriv_socket"`
	PrivSocketPath   string        `mapstructure:"priv_socket"`
	MaxMsg           int           `mapstructure:"max_msg"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	DropUser         string        `mapstructure:"drop_user"`
	MetricsAddr      string        `mapstructure:"metrics_addr"`
	LogLevel         string        `mapstructure:"log_level"`
}

// Default returns the configuration used when nothing else is set (spec
// §6's named defaults).
func Default() *Config {
	return &Config{
		UnprivSocketPath: esdmd.DefaultUnprivSocket,
		PrivSocketPath:   esdmd.DefaultPrivSocket,
		MaxMsg:           esdmd.DefaultMaxMsg,
		ReadTimeout:      esdmd.DefaultReadTimeout,
		DropUser:         esdmd.DefaultDropUser,
		MetricsAddr:      esdmd.DefaultMetricsAddr,
		LogLevel:         "info",
	}
}

// Load reads configuration from configPath (if non-empty) layered under
// environment variables (ESDMD_ prefix plus the upper-cased key, e.g.
// ESDMD_MAX_MSG) and
// defaults, in viper's standard precedence (explicit Set > flag > env >
// config file > default). flags is optional; when non-nil its bound
// values take precedence over everything else, the "CLI flags highest
// priority" rule spec §6 names.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ESDMD")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	if flags != nil {
		for key, flagName := range flagBindings {
			f := flags.Lookup(flagName)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("config: bind flag --%s: %w", flagName, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// flagBindings maps each viper/mapstructure key to the dashed CLI flag
// name cmd/esdmd registers for it (spec §6's named flags).
var flagBindings = map[string]string{
	"unpriv_socket": "unpriv-socket",
	"priv_socket":   "priv-socket",
	"max_msg":       "max-msg",
	"read_timeout":  "read-timeout",
	"drop_user":     "drop-user",
	"metrics_addr":  "metrics-addr",
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("unpriv_socket", d.UnprivSocketPath)
	v.SetDefault("priv_socket", d.PrivSocketPath)
	v.SetDefault("max_msg", d.MaxMsg)
	v.SetDefault("read_timeout", d.ReadTimeout)
	v.SetDefault("drop_user", d.DropUser)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("log_level", d.LogLevel)
}

// Validate rejects configurations that would violate an invariant
// downstream code assumes (spec §3, §4.8).
func Validate(cfg *Config) error {
	if cfg.MaxMsg <= 0 {
		return fmt.Errorf("max_msg must be positive, got %d", cfg.MaxMsg)
	}
	if cfg.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be positive, got %s", cfg.ReadTimeout)
	}
	if cfg.DropUser == "" {
		return fmt.Errorf("drop_user must not be empty")
	}
	if cfg.UnprivSocketPath == "" || cfg.PrivSocketPath == "" {
		return fmt.Errorf("both unpriv_socket and priv_socket paths must be set")
	}
	if cfg.UnprivSocketPath == cfg.PrivSocketPath {
		return fmt.Errorf("unpriv_socket and priv_socket must be distinct paths")
	}
	return nil
}
