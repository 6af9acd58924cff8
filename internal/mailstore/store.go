/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package mailstore indexes relayed mail per address and answers the
// history queries clients make.
//
// A Store is not safe for concurrent use. The relay owns a single Store
// from its dispatcher goroutine, which handles one request at a time.
package mailstore

import (
	"fmt"
	"sort"
)

type Store struct {
	clock     Clock
	history   []*Entry
	mailboxes map[string]*Mailbox
}

func NewStore() *Store {
	return &Store{
		mailboxes: make(map[string]*Mailbox),
	}
}

func (s *Store) mailboxFor(addr string) *Mailbox {
	mb, ok := s.mailboxes[addr]
	if !ok {
		mb = newMailbox(addr)
		s.mailboxes[addr] = mb
	}
	return mb
}

// Submit accepts a new mail, gives it the next sequence ID and files it in
// the sender's and recipient's mailboxes.
func (s *Store) Submit(mail Mail) (Entry, error) {
	if err := mail.Validate(); err != nil {
		return Entry{}, err
	}
	e := &Entry{
		ID:   s.clock.Next(),
		Mail: mail,
	}
	s.record(e)
	return *e, nil
}

// record is the path shared by Submit and Replay.
func (s *Store) record(e *Entry) {
	s.history = append(s.history, e)
	s.mailboxFor(e.Mail.From).recordSent(e)
	s.mailboxFor(e.Mail.To).recordReceived(e)
}

func (s *Store) Sent(addr string, n int) ([]Mail, error) {
	if err := validateQuery(addr, n); err != nil {
		return nil, err
	}
	return s.mailboxFor(addr).LastSent(n), nil
}

func (s *Store) Received(addr string, n int) ([]Mail, error) {
	if err := validateQuery(addr, n); err != nil {
		return nil, err
	}
	return s.mailboxFor(addr).LastReceived(n), nil
}

func (s *Store) All(addr string, n int) ([]Mail, error) {
	if err := validateQuery(addr, n); err != nil {
		return nil, err
	}
	return s.mailboxFor(addr).LastAll(n), nil
}

func (s *Store) Unread(addr string) ([]Mail, error) {
	if err := ValidateAddress(addr); err != nil {
		return nil, err
	}
	return s.mailboxFor(addr).TakeUnread(), nil
}

func (s *Store) Correspondence(addr, other string, n int) ([]Mail, error) {
	if err := validateQuery(addr, n); err != nil {
		return nil, err
	}
	if err := ValidateAddress(other); err != nil {
		return nil, fmt.Errorf("other: %w", err)
	}
	return s.mailboxFor(addr).CorrespondenceWith(other, n), nil
}

func (s *Store) Contacts(addr string) ([]string, error) {
	if err := ValidateAddress(addr); err != nil {
		return nil, err
	}
	return s.mailboxFor(addr).Contacts(), nil
}

// Reset discards all mail and mailboxes.
func (s *Store) Reset() {
	s.clock.reset()
	s.history = nil
	s.mailboxes = make(map[string]*Mailbox)
}

// History returns a copy of every accepted entry in sequence order.
func (s *Store) History() []Entry {
	history := make([]Entry, 0, len(s.history))
	for _, e := range s.history {
		history = append(history, *e)
	}
	return history
}

// Replay rebuilds the store from a saved history. Entries go through the
// same path as Submit but keep their IDs and read flags. On error the store
// is left empty.
func (s *Store) Replay(history []Entry) error {
	s.Reset()
	var last uint64
	for i := range history {
		e := history[i]
		if e.ID <= last {
			s.Reset()
			return fmt.Errorf("%w: entry %d has ID %d after ID %d", ErrCorruptHistory, i, e.ID, last)
		}
		if err := e.Mail.Validate(); err != nil {
			s.Reset()
			return fmt.Errorf("%w: entry %d: %s", ErrCorruptHistory, i, err)
		}
		last = e.ID
		s.record(&e)
	}
	s.clock.Advance(last)
	return nil
}

func (s *Store) Len() int {
	return len(s.history)
}

// Addresses returns every address with a mailbox, sorted. Queries create
// empty mailboxes, so this includes addresses that only ever asked.
func (s *Store) Addresses() []string {
	addrs := make([]string, 0, len(s.mailboxes))
	for addr := range s.mailboxes {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}

// Mailbox returns the mailbox for addr, if one exists, without creating it.
func (s *Store) Mailbox(addr string) (*Mailbox, bool) {
	mb, ok := s.mailboxes[addr]
	return mb, ok
}

func validateQuery(addr string, n int) error {
	if err := ValidateAddress(addr); err != nil {
		return err
	}
	return validateLimit(n)
}
