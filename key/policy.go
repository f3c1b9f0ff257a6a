// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package key

import (
	"errors"
	"fmt"
)

// Policy selects how the key of an encrypted filesystem is obtained.
type Policy int

// Policies.
const (
	// PolicyUnspecified fails for encrypted filesystems.
	PolicyUnspecified Policy = iota
	// PolicyFail refuses to mount encrypted filesystems.
	PolicyFail
	// PolicyWait waits for the key to be added to the keyring by someone else.
	PolicyWait
	// PolicyAsk prompts for the passphrase.
	PolicyAsk
)

// ErrInvalidPolicy is returned by ParsePolicy.
var ErrInvalidPolicy = errors.New("invalid key location")

// ParsePolicy parses "fail", "wait" or "ask"; the empty string is PolicyUnspecified.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "":
		return PolicyUnspecified, nil
	case "fail":
		return PolicyFail, nil
	case "wait":
		return PolicyWait, nil
	case "ask":
		return PolicyAsk, nil
	default:
		return PolicyUnspecified, fmt.Errorf("%w %q: must be one of fail, wait, ask", ErrInvalidPolicy, s)
	}
}

func (p Policy) String() string {
	switch p {
	case PolicyUnspecified:
		return ""
	case PolicyFail:
		return "fail"
	case PolicyWait:
		return "wait"
	case PolicyAsk:
		return "ask"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}

	*p = parsed

	return nil
}

// Set implements pflag.Value.
func (p *Policy) Set(s string) error {
	return p.UnmarshalText([]byte(s))
}

// Type implements pflag.Value.
func (p *Policy) Type() string {
	return "fail|wait|ask"
}
