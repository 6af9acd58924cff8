/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package smtpserver

import (
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// NewSMTPServer returns a submission server on addr that only accepts
// mail from clients that log in with the gateway password.
func NewSMTPServer(backend *Backend, addr, domain string, maxMessageBytes int) *smtp.Server {
	server := smtp.NewServer(backend)
	server.Addr = addr
	server.Domain = domain
	server.MaxMessageBytes = maxMessageBytes
	server.MaxRecipients = 50
	server.AllowInsecureAuth = true
	server.EnableAuth(sasl.Login, func(conn *smtp.Conn) sasl.Server {
		return sasl.NewLoginServer(func(username, password string) error {
			state := conn.State()
			session, err := backend.Login(&state, username, password)
			if err != nil {
				return err
			}
			conn.SetSession(session)
			return nil
		})
	})
	return server
}
