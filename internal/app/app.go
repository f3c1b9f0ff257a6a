// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package app sequences discovery, key resolution and mounting.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siderolabs/go-bcachefs/filesystem"
	"github.com/siderolabs/go-bcachefs/key"
	"github.com/siderolabs/go-bcachefs/mount"
	"github.com/siderolabs/go-bcachefs/probe"
)

// ErrNotFound is returned when no discovered filesystem has the requested UUID.
var ErrNotFound = errors.New("filesystem not found")

// Request is a single invocation.
type Request struct {
	// UUID is the user UUID of the filesystem, ignored when List is set.
	UUID uuid.UUID
	// Mountpoint is optional; without it the key is resolved but nothing is mounted.
	Mountpoint string
	// Options is the raw mount options string.
	Options string
	Policy  key.Policy
	// List prints every discovered filesystem instead of mounting.
	List bool
}

// Resolver resolves filesystem keys.
type Resolver interface {
	Resolve(ctx context.Context, target key.Target, policy key.Policy) (key.State, error)
}

// Mounter mounts filesystems.
type Mounter interface {
	Mount(fs mount.Source, target, rawOptions string) error
}

// Deps are the collaborators of Run.
type Deps struct {
	Logger *zap.Logger
	// Out receives the listing, nothing is written to it otherwise.
	Out io.Writer

	// Enumerate returns the block devices to probe.
	Enumerate func() ([]string, error)
	Prober    probe.Prober
	Resolver  Resolver
	Mounter   Mounter
}

// Run performs the request.
//
// The key of the filesystem is always resolved before the mount is attempted.
func Run(ctx context.Context, req Request, deps Deps) error {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	paths, err := deps.Enumerate()
	if err != nil {
		return fmt.Errorf("failed to enumerate block devices: %w", err)
	}

	logger.Debug("probing block devices", zap.Int("count", len(paths)))

	registry, err := filesystem.Build(ctx, deps.Prober, paths, filesystem.WithLogger(logger))
	if err != nil {
		return err
	}

	if req.List {
		return list(logger, deps.Out, registry)
	}

	fs, ok := registry.Get(req.UUID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, req.UUID)
	}

	logger = logger.With(zap.Stringer("uuid", fs.UUID()))

	state, err := deps.Resolver.Resolve(ctx, fs, req.Policy)
	if err != nil {
		return err
	}

	if !state.Mountable() {
		return fmt.Errorf("key resolution stopped in state %s", state)
	}

	if req.Mountpoint == "" {
		logger.Info("no mountpoint given, not mounting", zap.Stringer("key_state", state))

		return nil
	}

	return deps.Mounter.Mount(fs, req.Mountpoint, req.Options)
}

func list(logger *zap.Logger, out io.Writer, registry filesystem.Registry) error {
	if out == nil {
		out = io.Discard
	}

	for _, u := range registry.UUIDs() {
		fs, _ := registry.Get(u)

		logger.Info("filesystem",
			zap.Stringer("uuid", u),
			zap.Stringp("label", fs.Label()),
			zap.Bool("encrypted", fs.Encrypted()),
			zap.Strings("devices", fs.Devices()),
		)

		if _, err := fmt.Fprintln(out, fs); err != nil {
			return err
		}
	}

	return nil
}
