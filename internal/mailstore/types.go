/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package mailstore

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	ErrInvalidAddress = errors.New("mailstore: invalid address")
	ErrInvalidLimit   = errors.New("mailstore: negative result limit")
	ErrInvalidMail    = errors.New("mailstore: invalid mail")

	// ErrCorruptHistory is returned by Replay when the entries could not
	// have been produced by Submit.
	ErrCorruptHistory = errors.New("mailstore: corrupt history")
)

// Mail is a single message between two addresses. Two Mails with the same
// fields that were submitted separately are still different mails.
type Mail struct {
	From    string
	To      string
	Content string
}

func (m Mail) String() string {
	return fmt.Sprintf("%s -> %s: %q", m.From, m.To, m.Content)
}

// Validate checks the mail against the submission contract.
func (m Mail) Validate() error {
	if err := ValidateAddress(m.From); err != nil {
		return fmt.Errorf("from: %w", err)
	}
	if err := ValidateAddress(m.To); err != nil {
		return fmt.Errorf("to: %w", err)
	}
	if m.Content == "" {
		return fmt.Errorf("%w: empty content", ErrInvalidMail)
	}
	return nil
}

// Entry is a Mail as accepted by the store. ID is unique and orders all
// entries; Read only ever changes from false to true.
type Entry struct {
	ID   uint64
	Mail Mail
	Read bool
}

// MaxAddressLength bounds an address in bytes. It keeps addresses well
// inside the line limit of the message headers they travel in.
const MaxAddressLength = 255

// ValidateAddress rejects empty or overlong addresses and addresses
// containing whitespace or control characters.
func ValidateAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	if len(addr) > MaxAddressLength {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrInvalidAddress, len(addr), MaxAddressLength)
	}
	if strings.IndexFunc(addr, func(r rune) bool {
		return unicode.IsControl(r) || unicode.IsSpace(r)
	}) >= 0 {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return nil
}

func validateLimit(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}
	return nil
}
