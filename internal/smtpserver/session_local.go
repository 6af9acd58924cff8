/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package smtpserver

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-smtp"
	"github.com/neilalexander/yggpost/internal/utils"
)

type SessionLocal struct {
	backend *Backend
	state   *smtp.ConnectionState
	from    string
	rcpt    []string
}

func (s *SessionLocal) Mail(from string, opts smtp.MailOptions) error {
	s.rcpt = s.rcpt[:0]

	addr, err := utils.ParseAddress(from)
	if err != nil {
		return fmt.Errorf("utils.ParseAddress: %w", err)
	}

	if addr != s.backend.Sender.Address() {
		return fmt.Errorf("not allowed to send outgoing mail as %s", from)
	}

	s.from = addr
	return nil
}

func (s *SessionLocal) Rcpt(to string) error {
	addr, err := utils.ParseAddress(to)
	if err != nil {
		return fmt.Errorf("utils.ParseAddress: %w", err)
	}
	for _, rcpt := range s.rcpt {
		if rcpt == addr {
			return nil
		}
	}
	s.rcpt = append(s.rcpt, addr)
	return nil
}

func (s *SessionLocal) Data(r io.Reader) error {
	if s.from == "" {
		return fmt.Errorf("no sender given")
	}

	m, err := message.Read(r)
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return fmt.Errorf("message.Read: %w", err)
	}

	content, err := messageContent(m)
	if err != nil {
		return fmt.Errorf("messageContent: %w", err)
	}

	for _, rcpt := range s.rcpt {
		if err := s.backend.Sender.SendMail(rcpt, content); err != nil {
			return fmt.Errorf("s.backend.Sender.SendMail: %w", err)
		}
		s.backend.Log.Println("Sent mail to", rcpt)
	}

	return nil
}

func (s *SessionLocal) Reset() {
	s.rcpt = s.rcpt[:0]
	s.from = ""
}

func (s *SessionLocal) Logout() error {
	return nil
}

// messageContent is the text a mail carries: the subject line, if any,
// followed by the first text part.
func messageContent(m *message.Entity) (string, error) {
	var b strings.Builder
	if subject := m.Header.Get("Subject"); subject != "" {
		b.WriteString(subject)
		b.WriteString("\n\n")
	}
	body, err := textBody(m)
	if err != nil {
		return "", err
	}
	b.WriteString(strings.TrimRight(body, "\r\n"))
	return b.String(), nil
}

func textBody(e *message.Entity) (string, error) {
	if mr := e.MultipartReader(); mr != nil {
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return "", nil
			} else if err != nil && !message.IsUnknownCharset(err) {
				return "", fmt.Errorf("mr.NextPart: %w", err)
			}
			if text, err := textBody(part); err != nil || text != "" {
				return text, err
			}
		}
	}
	if t, _, _ := e.Header.ContentType(); t != "" && !strings.HasPrefix(t, "text/") {
		return "", nil
	}
	body, err := io.ReadAll(e.Body)
	if err != nil {
		return "", fmt.Errorf("io.ReadAll: %w", err)
	}
	return string(body), nil
}
