// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package filesystem

import (
	"bytes"
	"context"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siderolabs/go-bcachefs/probe"
	"github.com/siderolabs/go-bcachefs/superblock"
)

// Registry maps filesystem UUIDs to filesystems.
type Registry map[uuid.UUID]*Filesystem

// Get returns the filesystem with the given UUID.
func (r Registry) Get(u uuid.UUID) (*Filesystem, bool) {
	fs, ok := r[u]

	return fs, ok
}

// UUIDs returns the UUIDs of all filesystems, sorted.
func (r Registry) UUIDs() []uuid.UUID {
	uuids := make([]uuid.UUID, 0, len(r))

	for u := range r {
		uuids = append(uuids, u)
	}

	slices.SortFunc(uuids, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})

	return uuids
}

// Options for Build.
type Options struct {
	Logger *zap.Logger
}

// Option is a functional option for Build.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// Build probes every path in order and groups the bcachefs members by UUID.
//
// Devices which can't be probed are logged and skipped. The only error
// returned is the context error if ctx is canceled.
func Build(ctx context.Context, prober probe.Prober, paths []string, opts ...Option) (Registry, error) {
	options := Options{
		Logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(&options)
	}

	registry := Registry{}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		registry.add(options.Logger, prober.Probe(path))
	}

	return registry, nil
}

func (r Registry) add(logger *zap.Logger, res probe.Result) {
	logger = logger.With(zap.String("device", res.Path))

	switch res.Status {
	case probe.StatusFound:
	case probe.StatusNotThisFilesystem:
		logger.Debug("not a bcachefs device", zap.Error(res.Reason))

		return
	default:
		logger.Warn("failed to probe device", zap.Stringer("status", res.Status), zap.Error(res.Err()))

		return
	}

	fsUUID := res.UUID()

	fs, ok := r[fsUUID]
	if !ok {
		logger.Info("found bcachefs filesystem",
			zap.Stringer("uuid", fsUUID),
			zap.Bool("encrypted", res.Encrypted()),
		)

		r[fsUUID] = New(res.Superblock, res.Path)

		return
	}

	if !sameCrypt(fs.Superblock(), res.Superblock) {
		logger.Warn("member device disagrees on encryption metadata, keeping the first one seen",
			zap.Stringer("uuid", fsUUID),
			zap.String("first_device", fs.devices[0]),
		)
	}

	logger.Debug("found bcachefs member device", zap.Stringer("uuid", fsUUID))

	fs.addDevice(res.Path)
}

func sameCrypt(a, b *superblock.Handle) bool {
	cryptA, okA := a.Crypt()
	cryptB, okB := b.Crypt()

	return okA == okB && bytes.Equal(cryptA, cryptB)
}
