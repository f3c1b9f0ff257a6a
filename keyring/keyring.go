// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package keyring stores and looks up bcachefs keys in the kernel keyring.
package keyring

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/siderolabs/go-retry/retry"
	"go.uber.org/zap"
)

// ErrKeyNotFound is returned when the keyring has no key for the filesystem.
var ErrKeyNotFound = errors.New("key not found in keyring")

// Key types accepted by the bcachefs kernel driver.
const (
	KeyTypeUser  = "user"
	KeyTypeLogon = "logon"
)

// DefaultPollInterval is the interval between keyring lookups in Wait.
const DefaultPollInterval = time.Second

// Description returns the key description the kernel looks up for the filesystem.
func Description(fsUUID uuid.UUID) string {
	return "bcachefs:" + fsUUID.String()
}

type keyctl interface {
	search(ring int, keyType, description string) (int, error)
	add(keyType, description string, payload []byte, ring int) (int, error)
}

// Options for the Keyring.
type Options struct {
	Logger       *zap.Logger
	KeyType      string
	Ring         int
	PollInterval time.Duration

	keyctl keyctl
}

// Option is a functional option for the Keyring.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithKeyType sets the key type, KeyTypeUser by default.
func WithKeyType(keyType string) Option {
	return func(o *Options) {
		o.KeyType = keyType
	}
}

// WithRing sets the keyring keys are searched in and added to, the user keyring by default.
func WithRing(ring int) Option {
	return func(o *Options) {
		o.Ring = ring
	}
}

// WithPollInterval sets the interval between lookups in Wait.
func WithPollInterval(interval time.Duration) Option {
	return func(o *Options) {
		o.PollInterval = interval
	}
}

// Keyring is a kernel keyring.
type Keyring struct {
	options Options
}

// New returns a Keyring.
func New(opts ...Option) *Keyring {
	options := Options{
		Logger:       zap.NewNop(),
		KeyType:      KeyTypeUser,
		Ring:         defaultRing,
		PollInterval: DefaultPollInterval,
		keyctl:       sysKeyctl{},
	}

	for _, opt := range opts {
		opt(&options)
	}

	return &Keyring{options: options}
}

// Search looks up the key of the filesystem and returns its serial.
func (k *Keyring) Search(fsUUID uuid.UUID) (int, error) {
	return k.options.keyctl.search(k.options.Ring, k.options.KeyType, Description(fsUUID))
}

// Add installs the key of the filesystem and returns its serial.
//
// An existing key with the same description is updated by the kernel.
func (k *Keyring) Add(fsUUID uuid.UUID, payload []byte) (int, error) {
	description := Description(fsUUID)

	id, err := k.options.keyctl.add(k.options.KeyType, description, payload, k.options.Ring)
	if err != nil {
		return 0, err
	}

	k.options.Logger.Debug("added key to keyring",
		zap.String("description", description),
		zap.String("type", k.options.KeyType),
		zap.Int("serial", id),
	)

	return id, nil
}

// Wait blocks until the key of the filesystem shows up in the keyring.
//
// There is no timeout, Wait returns early only when ctx is canceled.
func (k *Keyring) Wait(ctx context.Context, fsUUID uuid.UUID) (int, error) {
	var id int

	k.options.Logger.Info("waiting for key in keyring", zap.String("description", Description(fsUUID)))

	err := retry.Constant(time.Duration(math.MaxInt64), retry.WithUnits(k.options.PollInterval)).RetryWithContext(ctx,
		func(context.Context) error {
			var err error

			id, err = k.Search(fsUUID)
			switch {
			case err == nil:
				return nil
			case errors.Is(err, ErrKeyNotFound):
				k.options.Logger.Debug("key not in keyring yet")

				return retry.ExpectedError(err)
			default:
				return retry.UnexpectedError(err)
			}
		},
	)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, ctxErr
	}

	if err != nil {
		return 0, err
	}

	return id, nil
}
