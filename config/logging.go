// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapConfig returns the zap configuration for the logging settings.
//
// Logs go to stderr: stdout is reserved for listing output.
func (c LoggingConfig) ZapConfig() (zap.Config, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return zap.Config{}, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Sampling = nil
	cfg.Encoding = c.Format

	if c.Format == "console" {
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		cfg.DisableStacktrace = true
	}

	return cfg, nil
}

// Build creates the logger.
func (c LoggingConfig) Build() (*zap.Logger, error) {
	cfg, err := c.ZapConfig()
	if err != nil {
		return nil, err
	}

	return cfg.Build()
}
