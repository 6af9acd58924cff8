/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package smtpserver accepts mail from local mail clients and hands it to
// the relay.
package smtpserver

import (
	"fmt"
	"log"

	"github.com/emersion/go-smtp"
)

// Sender posts mail to the relay as one address.
type Sender interface {
	Address() string
	SendMail(to, content string) error
}

// Authenticator checks the gateway password.
type Authenticator interface {
	ConfigTryPassword(password string) (bool, error)
}

type Backend struct {
	Log    *log.Logger
	Auth   Authenticator
	Sender Sender
}

func (b *Backend) Login(state *smtp.ConnectionState, username, password string) (smtp.Session, error) {
	if authed, err := b.Auth.ConfigTryPassword(password); err != nil {
		b.Log.Printf("Failed to authenticate SMTP user %q due to error: %s", username, err)
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	} else if !authed {
		b.Log.Printf("Failed to authenticate SMTP user %q\n", username)
		return nil, smtp.ErrAuthRequired
	}
	defer b.Log.Printf("Authenticated SMTP user %q\n", username)
	return &SessionLocal{
		backend: b,
		state:   state,
	}, nil
}

func (b *Backend) AnonymousLogin(state *smtp.ConnectionState) (smtp.Session, error) {
	return nil, smtp.ErrAuthRequired
}
