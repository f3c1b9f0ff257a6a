// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/siderolabs/go-bcachefs/internal/app"
)

// usageError is a command line error, reported with exit code 2.
type usageError struct {
	err error
}

func usage(err error) error {
	return &usageError{err: err}
}

func (e *usageError) Error() string {
	return e.err.Error()
}

func (e *usageError) Unwrap() error {
	return e.err
}

func (e *usageError) ExitCode() int {
	return 2
}

// parseUUID accepts a bare UUID or the UUID=<uuid> form used in fstab.
func parseUUID(s string) (uuid.UUID, error) {
	s = strings.TrimPrefix(s, "UUID=")

	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid filesystem UUID %q: %w", s, err)
	}

	return u, nil
}

func parseArgs(args []string, list bool) (app.Request, error) {
	if list {
		if len(args) > 0 {
			return app.Request{}, fmt.Errorf("unexpected argument with --list: %s", args[0])
		}

		return app.Request{List: true}, nil
	}

	switch len(args) {
	case 0:
		return app.Request{}, errors.New("filesystem UUID is required")
	case 1, 2:
	default:
		return app.Request{}, fmt.Errorf("unexpected argument: %s", args[2])
	}

	u, err := parseUUID(args[0])
	if err != nil {
		return app.Request{}, err
	}

	req := app.Request{UUID: u}

	if len(args) == 2 {
		req.Mountpoint = args[1]
	}

	return req, nil
}
