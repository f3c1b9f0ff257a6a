// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package key makes sure the key of an encrypted bcachefs filesystem is in
// the kernel keyring before the filesystem is mounted.
package key

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siderolabs/go-bcachefs/kdf"
	"github.com/siderolabs/go-bcachefs/keyring"
	"github.com/siderolabs/go-bcachefs/superblock"
)

// Errors.
var (
	ErrNoPolicySpecified     = errors.New("filesystem is encrypted, but no key location was specified")
	ErrEncryptedNoKeyAllowed = errors.New("filesystem is encrypted and the key location is \"fail\"")
	ErrUnsupportedKDF        = kdf.ErrUnsupportedKDF
	ErrPromptFailed          = errors.New("failed to read passphrase")
	ErrDerivationFailed      = errors.New("failed to derive key")
	ErrKeyringInstallFailed  = errors.New("failed to add key to keyring")
	ErrWaitFailed            = errors.New("failed waiting for key")
)

// Target is a filesystem which might need a key.
type Target interface {
	UUID() uuid.UUID
	Superblock() *superblock.Handle
}

// Keyring is the kernel keyring.
type Keyring interface {
	Search(fsUUID uuid.UUID) (int, error)
	Add(fsUUID uuid.UUID, payload []byte) (int, error)
	Wait(ctx context.Context, fsUUID uuid.UUID) (int, error)
}

// Options for the Resolver.
type Options struct {
	Logger *zap.Logger

	// OnTransition is called on every state change.
	OnTransition func(fsUUID uuid.UUID, from, to State)
}

// Option is a functional option for the Resolver.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithTransitionHook sets a function called on every state change.
func WithTransitionHook(hook func(fsUUID uuid.UUID, from, to State)) Option {
	return func(o *Options) {
		o.OnTransition = hook
	}
}

// Resolver drives key resolution for a filesystem.
//
// Keys are never cached by the Resolver: every call looks at the keyring again.
type Resolver struct {
	keyring  Keyring
	prompter Prompter
	options  Options
}

// NewResolver creates a Resolver.
func NewResolver(keyring Keyring, prompter Prompter, opts ...Option) *Resolver {
	r := &Resolver{
		keyring:  keyring,
		prompter: prompter,
		options: Options{
			Logger: zap.NewNop(),
		},
	}

	for _, opt := range opts {
		opt(&r.options)
	}

	return r
}

type resolution struct {
	*Resolver

	fsUUID uuid.UUID
	logger *zap.Logger
	state  State
}

func (r *resolution) transition(to State) {
	r.logger.Debug("key resolution state change", zap.Stringer("from", r.state), zap.Stringer("to", to))

	if r.options.OnTransition != nil {
		r.options.OnTransition(r.fsUUID, r.state, to)
	}

	r.state = to
}

func (r *resolution) fail(err error) (State, error) {
	r.transition(StateFailed)

	return StateFailed, err
}

func (r *resolution) resolved() (State, error) {
	r.transition(StateResolved)

	return StateResolved, nil
}

// Resolve obtains the key of target according to policy.
//
// The returned state is always terminal; the error is set only for StateFailed.
// Wait and Ask block until the key shows up or the passphrase is entered,
// or until ctx is canceled.
func (r *Resolver) Resolve(ctx context.Context, target Target, policy Policy) (State, error) {
	res := &resolution{
		Resolver: r,
		fsUUID:   target.UUID(),
		logger:   r.options.Logger.With(zap.Stringer("uuid", target.UUID()), zap.Stringer("policy", policy)),
		state:    StateNeedKey,
	}

	h := target.Superblock()

	crypt, encrypted := h.Crypt()
	if !encrypted {
		return StateNotNeeded, nil
	}

	switch policy {
	case PolicyUnspecified:
		return res.fail(ErrNoPolicySpecified)
	case PolicyFail:
		return res.fail(ErrEncryptedNoKeyAllowed)
	case PolicyWait, PolicyAsk:
	default:
		return res.fail(fmt.Errorf("%w: %s", ErrInvalidPolicy, policy))
	}

	// a key left over by an earlier attempt is good enough
	if _, err := r.keyring.Search(res.fsUUID); err == nil {
		res.logger.Info("key already in keyring")

		return res.resolved()
	} else if !errors.Is(err, keyring.ErrKeyNotFound) {
		res.logger.Warn("failed to search keyring", zap.Error(err))
	}

	if policy == PolicyWait {
		return res.wait(ctx)
	}

	return res.ask(ctx, crypt, h.InternalUUID())
}

func (r *resolution) wait(ctx context.Context) (State, error) {
	r.transition(StateWaitingOnKeyring)

	if _, err := r.keyring.Wait(ctx, r.fsUUID); err != nil {
		return r.fail(fmt.Errorf("%w: %w", ErrWaitFailed, err))
	}

	return r.resolved()
}

func (r *resolution) ask(ctx context.Context, crypt superblock.Crypt, internalUUID uuid.UUID) (State, error) {
	if !kdf.IsWrapped(crypt) {
		r.logger.Info("filesystem key is not protected by a passphrase")

		return r.resolved()
	}

	r.transition(StatePromptingUser)

	passphrase, err := r.prompter.Passphrase(ctx, "Enter passphrase: ")
	if err != nil {
		return r.fail(fmt.Errorf("%w: %w", ErrPromptFailed, err))
	}

	defer clear(passphrase)

	r.transition(StateDerivingKey)

	passphraseKey, err := kdf.Derive(crypt, passphrase)
	if err != nil {
		if errors.Is(err, kdf.ErrUnsupportedKDF) {
			return r.fail(err)
		}

		return r.fail(fmt.Errorf("%w: %w", ErrDerivationFailed, err))
	}

	defer passphraseKey.Wipe()

	if err = kdf.Verify(passphraseKey, crypt, internalUUID); err != nil {
		return r.fail(fmt.Errorf("%w: %w", ErrDerivationFailed, err))
	}

	r.transition(StateInstallingKey)

	if _, err = r.keyring.Add(r.fsUUID, passphraseKey[:]); err != nil {
		return r.fail(fmt.Errorf("%w: %w", ErrKeyringInstallFailed, err))
	}

	r.logger.Info("added key to keyring")

	return r.resolved()
}
