// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package key

import "fmt"

// State of the key resolution.
type State int

// States.
const (
	StateNotNeeded State = iota
	StateNeedKey
	StateWaitingOnKeyring
	StatePromptingUser
	StateDerivingKey
	StateInstallingKey
	StateResolved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotNeeded:
		return "NotNeeded"
	case StateNeedKey:
		return "NeedKey"
	case StateWaitingOnKeyring:
		return "WaitingOnKeyring"
	case StatePromptingUser:
		return "PromptingUser"
	case StateDerivingKey:
		return "DerivingKey"
	case StateInstallingKey:
		return "InstallingKey"
	case StateResolved:
		return "Resolved"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal returns true if resolution stops in this state.
func (s State) Terminal() bool {
	return s == StateNotNeeded || s == StateResolved || s == StateFailed
}

// Mountable returns true if the filesystem can be mounted after resolution stopped in this state.
func (s State) Mountable() bool {
	return s == StateNotNeeded || s == StateResolved
}
