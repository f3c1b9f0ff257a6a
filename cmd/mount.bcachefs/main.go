// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// mount.bcachefs finds the member devices of a bcachefs filesystem by UUID,
// makes sure the key of an encrypted filesystem is in the kernel keyring and
// mounts it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/siderolabs/go-bcachefs/block"
	"github.com/siderolabs/go-bcachefs/config"
	"github.com/siderolabs/go-bcachefs/internal/app"
	"github.com/siderolabs/go-bcachefs/key"
	"github.com/siderolabs/go-bcachefs/keyring"
	"github.com/siderolabs/go-bcachefs/mount"
	"github.com/siderolabs/go-bcachefs/probe"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)

	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "mount.bcachefs: %v\n", err)

		var coder interface{ ExitCode() int }
		if errors.As(err, &coder) {
			os.Exit(coder.ExitCode())
		}

		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		policy     key.Policy
		configPath string
		list       bool
	)

	flags := pflag.NewFlagSet("mount.bcachefs", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.VarP(&policy, "key-location", "k", "where the key of an encrypted filesystem comes from")
	flags.StringP("options", "o", "", "comma separated mount options")
	flags.StringVarP(&configPath, "config", "c", "", "configuration file")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (console, json)")
	flags.BoolVar(&list, "list", false, "list bcachefs filesystems and exit")
	flags.BoolP("help", "h", false, "show help")

	flags.Usage = func() {
		fmt.Fprintf(stderr, "Usage: mount.bcachefs [flags] UUID [MOUNTPOINT]\n       mount.bcachefs --list\n\nFlags:\n")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}

		return usage(err)
	}

	if help, _ := flags.GetBool("help"); help {
		flags.Usage()

		return nil
	}

	req, err := parseArgs(flags.Args(), list)
	if err != nil {
		return usage(err)
	}

	cfg, err := config.Load(configPath, flags)
	if err != nil {
		return usage(err)
	}

	req.Options = cfg.Mount.Options
	req.Policy = cfg.Mount.KeyLocation

	logger, err := cfg.Logging.Build()
	if err != nil {
		return err
	}

	defer logger.Sync() //nolint:errcheck

	return app.Run(ctx, req, deps(cfg, logger, stdout))
}

func deps(cfg *config.Config, logger *zap.Logger, stdout io.Writer) app.Deps {
	ring := keyring.New(
		keyring.WithLogger(logger),
		keyring.WithKeyType(cfg.Keyring.KeyType),
		keyring.WithPollInterval(cfg.Keyring.PollInterval),
	)

	return app.Deps{
		Logger: logger,
		Out:    stdout,
		Enumerate: func() ([]string, error) {
			return block.List(
				block.WithInclude(cfg.Discovery.Include...),
				block.WithExclude(cfg.Discovery.Exclude...),
			)
		},
		Prober: probe.New(
			probe.WithLogger(logger),
			probe.WithSkipLocking(cfg.Discovery.SkipLocking),
		),
		Resolver: key.NewResolver(ring, key.NewTerminalPrompter(), key.WithLogger(logger)),
		Mounter:  mount.New(mount.WithLogger(logger)),
	}
}
