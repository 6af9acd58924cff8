/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package protocol defines the requests clients send to a relay, the
// responses the relay sends back, and their encoding as MIME messages.
package protocol

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/neilalexander/yggpost/internal/mailstore"
)

// MaxPayload bounds an encoded request or response.
const MaxPayload = 1024 * 1024

var ErrMalformed = errors.New("protocol: malformed payload")

type RequestType string

const (
	SendMail          RequestType = "SEND_MAIL"
	GetSent           RequestType = "GET_SENT"
	GetIncoming       RequestType = "GET_INCOMING"
	GetAll            RequestType = "GET_ALL"
	GetCorrespondence RequestType = "GET_CORRESPONDENCE"
	GetUnread         RequestType = "GET_UNREAD"
	GetContacts       RequestType = "GET_CONTACTS"
)

func (t RequestType) Valid() bool {
	switch t {
	case SendMail, GetSent, GetIncoming, GetAll, GetCorrespondence, GetUnread, GetContacts:
		return true
	}
	return false
}

// HasAmount reports whether requests of this type carry a result limit.
func (t RequestType) HasAmount() bool {
	switch t {
	case GetSent, GetIncoming, GetAll, GetCorrespondence:
		return true
	}
	return false
}

// Request is sent by a client. The sender of a SEND_MAIL request is the
// transport address it arrived from, so only the recipient is carried.
type Request struct {
	ID      string
	Type    RequestType
	To      string
	Content string
	Other   string
	Amount  int
}

func newRequest(t RequestType) *Request {
	return &Request{
		ID:   uuid.NewString(),
		Type: t,
	}
}

func NewSendMail(to, content string) *Request {
	r := newRequest(SendMail)
	r.To, r.Content = to, content
	return r
}

func NewGetSent(n int) *Request {
	r := newRequest(GetSent)
	r.Amount = n
	return r
}

func NewGetIncoming(n int) *Request {
	r := newRequest(GetIncoming)
	r.Amount = n
	return r
}

func NewGetAll(n int) *Request {
	r := newRequest(GetAll)
	r.Amount = n
	return r
}

func NewGetCorrespondence(other string, n int) *Request {
	r := newRequest(GetCorrespondence)
	r.Other, r.Amount = other, n
	return r
}

func NewGetUnread() *Request {
	return newRequest(GetUnread)
}

func NewGetContacts() *Request {
	return newRequest(GetContacts)
}

// Validate checks the parts of the request that do not depend on the
// sender's address.
func (r *Request) Validate() error {
	if !r.Type.Valid() {
		return fmt.Errorf("%w: unknown request type %q", ErrMalformed, r.Type)
	}
	switch r.Type {
	case SendMail:
		if err := mailstore.ValidateAddress(r.To); err != nil {
			return fmt.Errorf("to: %w", err)
		}
		if r.Content == "" {
			return fmt.Errorf("%w: empty content", mailstore.ErrInvalidMail)
		}
	case GetCorrespondence:
		if err := mailstore.ValidateAddress(r.Other); err != nil {
			return fmt.Errorf("other: %w", err)
		}
	}
	if r.Type.HasAmount() && r.Amount < 0 {
		return fmt.Errorf("%w: %d", mailstore.ErrInvalidLimit, r.Amount)
	}
	return nil
}

// Response answers every request type except SEND_MAIL. Error is set when
// the request was rejected.
type Response struct {
	ID       string
	Type     RequestType
	Mails    []mailstore.Mail
	Contacts []string
	Error    string
}

func (r *Response) Err() error {
	if r.Error == "" {
		return nil
	}
	return &RejectedError{Reason: r.Error}
}

// RejectedError is returned to a client whose request the relay refused.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return "request rejected: " + e.Reason
}
