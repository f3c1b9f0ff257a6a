// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package probe checks devices for a bcachefs superblock.
package probe

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siderolabs/go-bcachefs/superblock"
)

// Status is the outcome of probing a single device.
type Status int

// Probe statuses.
const (
	StatusFound Status = iota
	StatusNotThisFilesystem
	StatusUnreadable
	StatusPermissionDenied
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotThisFilesystem:
		return "not bcachefs"
	case StatusUnreadable:
		return "unreadable"
	case StatusPermissionDenied:
		return "permission denied"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Common errors.
var (
	ErrNotThisFilesystem = errors.New("not a bcachefs filesystem")
	ErrUnreadable        = errors.New("device unreadable")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrFailedLock        = errors.New("failed to acquire shared lock while probing blockdevice")
)

// Result of probing a device.
type Result struct { //nolint:govet
	Path   string
	Status Status

	// Superblock is set only for StatusFound.
	Superblock *superblock.Handle

	// Reason is the underlying cause for any other status.
	Reason error
}

// UUID of the filesystem found on the device.
func (r Result) UUID() uuid.UUID {
	if r.Superblock == nil {
		return uuid.Nil
	}

	return r.Superblock.UUID()
}

// Encrypted returns true if the superblock carries encryption metadata.
func (r Result) Encrypted() bool {
	return r.Superblock != nil && r.Superblock.Encrypted()
}

// Err returns the status as an error wrapping the matching sentinel, nil if found.
func (r Result) Err() error {
	var sentinel error

	switch r.Status {
	case StatusFound:
		return nil
	case StatusNotThisFilesystem:
		sentinel = ErrNotThisFilesystem
	case StatusPermissionDenied:
		sentinel = ErrPermissionDenied
	default:
		sentinel = ErrUnreadable
	}

	if r.Reason == nil {
		return fmt.Errorf("%s: %w", r.Path, sentinel)
	}

	return fmt.Errorf("%s: %w: %w", r.Path, sentinel, r.Reason)
}

// Prober reads a superblock from a device path.
type Prober interface {
	Probe(path string) Result
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(path string) Result

// Probe implements Prober.
func (f ProberFunc) Probe(path string) Result {
	return f(path)
}

// Options is the options for probing.
type Options struct {
	// Logger to use for logging.
	Logger *zap.Logger
	// SkipLocking blockdevices in shared mode.
	SkipLocking bool
}

// Option is an option for probing.
type Option func(*Options)

// WithLogger sets the logger for the probe.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithSkipLocking skips locking blockdevices in shared mode.
func WithSkipLocking(skip bool) Option {
	return func(o *Options) {
		o.SkipLocking = skip
	}
}

type prober struct {
	options Options
}

// New returns a Prober for local devices and image files.
func New(opts ...Option) Prober {
	p := &prober{
		options: Options{
			Logger: zap.NewNop(),
		},
	}

	for _, opt := range opts {
		opt(&p.options)
	}

	return p
}

// Probe probes a single path.
func Probe(path string, opts ...Option) Result {
	return New(opts...).Probe(path)
}

// Classify maps a failure to read the superblock to a Result.
func Classify(path string, err error) Result {
	res := Result{
		Path:   path,
		Reason: err,
	}

	switch {
	case errors.Is(err, os.ErrPermission):
		res.Status = StatusPermissionDenied
	case errors.Is(err, superblock.ErrInvalid), errors.Is(err, ErrNotThisFilesystem):
		res.Status = StatusNotThisFilesystem
	default:
		res.Status = StatusUnreadable
	}

	return res
}

func found(path string, h *superblock.Handle) Result {
	return Result{
		Path:       path,
		Status:     StatusFound,
		Superblock: h,
	}
}
