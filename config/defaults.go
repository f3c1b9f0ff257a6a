// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/siderolabs/go-bcachefs/keyring"
)

// Default values.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
	DefaultKeyType   = keyring.KeyTypeUser
)

// setDefaults registers every key with viper, environment variables are
// only looked up for known keys.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)

	v.SetDefault("mount.key_location", "")
	v.SetDefault("mount.options", "")

	v.SetDefault("discovery.include", []string{})
	v.SetDefault("discovery.exclude", []string{})
	v.SetDefault("discovery.skip_locking", false)

	v.SetDefault("keyring.key_type", DefaultKeyType)
	v.SetDefault("keyring.poll_interval", keyring.DefaultPollInterval)
}

// ApplyDefaults fills in zero values and normalizes case.
func ApplyDefaults(cfg *Config) {
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}

	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}

	if cfg.Keyring.KeyType == "" {
		cfg.Keyring.KeyType = DefaultKeyType
	}

	if cfg.Keyring.PollInterval == 0 {
		cfg.Keyring.PollInterval = keyring.DefaultPollInterval
	}
}

// Default returns the configuration used when nothing is configured.
func Default() *Config {
	cfg := &Config{}

	ApplyDefaults(cfg)

	return cfg
}
