/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package transport

import (
	"errors"
)

// ErrClosed is returned by Receive once the transport has been closed.
var ErrClosed = errors.New("transport: closed")

// Transport delivers whole payloads between named endpoints, reliably and
// in order for any one pair of endpoints.
type Transport interface {
	// Address is the name other endpoints use to reach this one.
	Address() string
	Send(destination string, payload []byte) error
	// Receive blocks until a payload arrives or the transport is closed.
	Receive() (source string, payload []byte, err error)
	Close() error
}
