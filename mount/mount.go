// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package mount mounts bcachefs filesystems.
package mount

import (
	"errors"
	"fmt"
	"syscall"

	"go.uber.org/zap"

	"github.com/siderolabs/go-bcachefs/mountopts"
)

// FilesystemType is the kernel filesystem type.
const FilesystemType = "bcachefs"

// Mounter has the signature of mount(2) in golang.org/x/sys/unix.
type Mounter func(source, target, fstype string, flags uintptr, data string) error

// Source is something that can be mounted.
type Source interface {
	// DeviceString is the colon-separated list of member devices.
	DeviceString() string
}

// Error is returned when the mount call fails.
type Error struct { //nolint:govet
	Source string
	Target string
	Flags  uintptr
	Data   *string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to mount %s on %s: %s", e.Source, e.Target, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errno returns the OS error code, if the failure carries one.
func (e *Error) Errno() (syscall.Errno, bool) {
	var errno syscall.Errno

	ok := errors.As(e.Err, &errno)

	return errno, ok
}

// Options for the Executor.
type Options struct {
	Logger  *zap.Logger
	Mounter Mounter
}

// Option is a functional option for the Executor.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithMounter replaces the mount syscall.
func WithMounter(mounter Mounter) Option {
	return func(o *Options) {
		o.Mounter = mounter
	}
}

// Executor performs mounts.
type Executor struct {
	options Options
}

// New creates an Executor.
func New(opts ...Option) *Executor {
	options := Options{
		Logger:  zap.NewNop(),
		Mounter: defaultMounter,
	}

	for _, opt := range opts {
		opt(&options)
	}

	return &Executor{options: options}
}

// Mount mounts fs on target.
//
// The mount is attempted once, failures are returned as *Error.
func (e *Executor) Mount(fs Source, target, rawOptions string) error {
	opts := mountopts.Parse(rawOptions)
	source := fs.DeviceString()

	e.options.Logger.Info("mounting bcachefs filesystem",
		zap.String("source", source),
		zap.String("target", target),
		zap.String("flags", fmt.Sprintf("%#x", opts.Flags)),
		zap.Stringp("data", opts.Data),
	)

	if err := e.options.Mounter(source, target, FilesystemType, opts.Flags, opts.DataString()); err != nil {
		return &Error{
			Source: source,
			Target: target,
			Flags:  opts.Flags,
			Data:   opts.Data,
			Err:    err,
		}
	}

	return nil
}

// Mount is a shorthand for New(opts...).Mount(fs, target, rawOptions).
func Mount(fs Source, target, rawOptions string, opts ...Option) error {
	return New(opts...).Mount(fs, target, rawOptions)
}
