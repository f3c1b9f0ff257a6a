// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package key

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Prompter reads a passphrase from the user.
type Prompter interface {
	Passphrase(ctx context.Context, prompt string) ([]byte, error)
}

// TerminalPrompter prompts on Out and reads the passphrase from In.
//
// If In is a terminal, echo is disabled while reading.
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer
}

// NewTerminalPrompter prompts on stderr and reads stdin.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{
		In:  os.Stdin,
		Out: os.Stderr,
	}
}

type readResult struct {
	passphrase []byte
	err        error
}

// Passphrase implements Prompter.
//
// The trailing line terminator is stripped. Reading is abandoned when ctx is canceled.
func (p *TerminalPrompter) Passphrase(ctx context.Context, prompt string) ([]byte, error) {
	fmt.Fprint(p.Out, prompt) //nolint:errcheck

	ch := make(chan readResult, 1)

	go func() {
		ch <- p.read()
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			clear(res.passphrase)

			return nil, res.err
		}

		return bytes.TrimRight(res.passphrase, "\r\n"), nil
	}
}

func (p *TerminalPrompter) read() readResult {
	if fd := int(p.In.Fd()); term.IsTerminal(fd) {
		passphrase, err := term.ReadPassword(fd)
		fmt.Fprintln(p.Out) //nolint:errcheck

		return readResult{passphrase, err}
	}

	passphrase, err := bufio.NewReader(p.In).ReadBytes('\n')
	if err == io.EOF && len(passphrase) > 0 {
		err = nil
	}

	return readResult{passphrase, err}
}
