/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package mailstore

import (
	"sort"
)

// Mailbox indexes the mail one address has sent and received. Every index
// holds pointers into the store's history, so marking an entry read through
// one index is visible through all of them.
type Mailbox struct {
	owner          string
	sent           []*Entry
	inbox          []*Entry
	unread         map[uint64]*Entry
	correspondence map[string][]*Entry
}

func newMailbox(owner string) *Mailbox {
	return &Mailbox{
		owner:          owner,
		unread:         make(map[uint64]*Entry),
		correspondence: make(map[string][]*Entry),
	}
}

func (mb *Mailbox) Owner() string {
	return mb.owner
}

func (mb *Mailbox) recordSent(e *Entry) {
	mb.sent = append(mb.sent, e)
	mb.thread(e.Mail.To, e)
}

func (mb *Mailbox) recordReceived(e *Entry) {
	mb.inbox = append(mb.inbox, e)
	if !e.Read {
		mb.unread[e.ID] = e
	}
	if e.Mail.From != e.Mail.To {
		mb.thread(e.Mail.From, e)
	}
}

// thread adds the entry to the bucket for the other party. Mail to self is
// never threaded, so the owner is never one of its own contacts.
func (mb *Mailbox) thread(other string, e *Entry) {
	if other == mb.owner {
		return
	}
	mb.correspondence[other] = append(mb.correspondence[other], e)
}

func (mb *Mailbox) markRead(e *Entry) {
	e.Read = true
	delete(mb.unread, e.ID)
}

// TakeUnread returns all unread mail, newest first, and marks it read.
func (mb *Mailbox) TakeUnread() []Mail {
	entries := make([]*Entry, 0, len(mb.unread))
	for _, e := range mb.unread {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ID > entries[j].ID
	})
	mails := make([]Mail, 0, len(entries))
	for _, e := range entries {
		mb.markRead(e)
		mails = append(mails, e.Mail)
	}
	return mails
}

// LastSent returns up to n of the most recently sent mails, newest first.
// Read state is left alone, including for mail sent to self.
func (mb *Mailbox) LastSent(n int) []Mail {
	entries := newestFirst(mb.sent, n)
	mails := make([]Mail, 0, len(entries))
	for _, e := range entries {
		mails = append(mails, e.Mail)
	}
	return mails
}

// LastReceived returns up to n of the most recently received mails, newest
// first, and marks them read.
func (mb *Mailbox) LastReceived(n int) []Mail {
	return mb.collect(newestFirst(mb.inbox, n))
}

// LastAll returns up to n of the most recent mails sent or received, newest
// first. Mail to self is in both sent and inbox but is returned once.
func (mb *Mailbox) LastAll(n int) []Mail {
	entries := make([]*Entry, 0, min(n, len(mb.sent)+len(mb.inbox)))
	i, j := len(mb.sent)-1, len(mb.inbox)-1
	for len(entries) < n && (i >= 0 || j >= 0) {
		switch {
		case j < 0:
			entries = append(entries, mb.sent[i])
			i--
		case i < 0:
			entries = append(entries, mb.inbox[j])
			j--
		case mb.sent[i].ID == mb.inbox[j].ID:
			entries = append(entries, mb.sent[i])
			i--
			j--
		case mb.sent[i].ID > mb.inbox[j].ID:
			entries = append(entries, mb.sent[i])
			i--
		default:
			entries = append(entries, mb.inbox[j])
			j--
		}
	}
	return mb.collect(entries)
}

// CorrespondenceWith returns up to n of the most recent mails exchanged with
// other, newest first. Mail received from other is marked read.
func (mb *Mailbox) CorrespondenceWith(other string, n int) []Mail {
	return mb.collect(newestFirst(mb.correspondence[other], n))
}

// Contacts returns every address this mailbox has exchanged mail with,
// sorted.
func (mb *Mailbox) Contacts() []string {
	contacts := make([]string, 0, len(mb.correspondence))
	for other := range mb.correspondence {
		contacts = append(contacts, other)
	}
	sort.Strings(contacts)
	return contacts
}

// UnreadCount does not change any read state.
func (mb *Mailbox) UnreadCount() int {
	return len(mb.unread)
}

// collect returns the mails of the given entries, marking those addressed
// to the owner as read.
func (mb *Mailbox) collect(entries []*Entry) []Mail {
	mails := make([]Mail, 0, len(entries))
	for _, e := range entries {
		if e.Mail.To == mb.owner {
			mb.markRead(e)
		}
		mails = append(mails, e.Mail)
	}
	return mails
}

func newestFirst(entries []*Entry, n int) []*Entry {
	if n > len(entries) {
		n = len(entries)
	}
	out := make([]*Entry, 0, n)
	for i := len(entries) - 1; i >= len(entries)-n; i-- {
		out = append(out, entries[i])
	}
	return out
}
