// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package config loads the mount.bcachefs configuration.
//
// Values are taken, in order of precedence, from command line flags,
// BCACHEFS_MOUNT_* environment variables, the configuration file and
// built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/siderolabs/go-bcachefs/key"
)

// EnvPrefix is the prefix of environment variables overriding configuration keys.
//
// Dots in keys become underscores: BCACHEFS_MOUNT_KEYRING_POLL_INTERVAL.
const EnvPrefix = "BCACHEFS_MOUNT"

// DefaultConfigDir is searched for mount.yaml when no configuration file is given.
var DefaultConfigDir = "/etc/bcachefs"

// Config is the complete configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Mount     MountConfig     `mapstructure:"mount"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Keyring   KeyringConfig   `mapstructure:"keyring"`
}

// LoggingConfig controls the logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

// MountConfig holds defaults for the mount itself.
type MountConfig struct {
	// KeyLocation is the policy for encrypted filesystems.
	KeyLocation key.Policy `mapstructure:"key_location" validate:"key_location"`
	// Options is the raw mount options string.
	Options string `mapstructure:"options"`
}

// DiscoveryConfig controls which block devices are probed.
type DiscoveryConfig struct {
	// Include and Exclude are glob patterns matched against device paths.
	Include []string `mapstructure:"include" validate:"dive,required"`
	Exclude []string `mapstructure:"exclude" validate:"dive,required"`

	SkipLocking bool `mapstructure:"skip_locking"`
}

// KeyringConfig controls the kernel keyring.
type KeyringConfig struct {
	KeyType      string        `mapstructure:"key_type" validate:"oneof=user logon"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":    "logging.level",
	"log-format":   "logging.format",
	"key-location": "mount.key_location",
	"options":      "mount.options",
}

// Load reads the configuration.
//
// If configPath is empty, mount.yaml in DefaultConfigDir is used when present.
// Flags which are set in flags override every other source.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)
	setupViper(v, configPath)

	if err := bindFlags(v, flags); err != nil {
		return nil, err
	}

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config

	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)

		return
	}

	v.AddConfigPath(DefaultConfigDir)
	v.SetConfigName("mount")
	v.SetConfigType("yaml")
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}

	for name, configKey := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}

		if err := v.BindPFlag(configKey, flag); err != nil {
			return fmt.Errorf("failed to bind flag %q: %w", name, err)
		}
	}

	return nil
}

func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}

		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}
