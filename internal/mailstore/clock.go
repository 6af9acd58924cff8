/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package mailstore

import "math"

// Clock hands out mail sequence IDs. The zero value starts at 1.
// Not goroutine-safe: only the dispatcher goroutine submits mail.
type Clock struct {
	last uint64
}

// Next returns an ID strictly greater than any ID returned before.
func (c *Clock) Next() uint64 {
	if c.last == math.MaxUint64 {
		panic("mailstore: sequence clock exhausted")
	}
	c.last++
	return c.last
}

// Advance makes sure the next ID handed out is greater than past.
func (c *Clock) Advance(past uint64) {
	if past > c.last {
		c.last = past
	}
}

func (c *Clock) Last() uint64 {
	return c.last
}

func (c *Clock) reset() {
	c.last = 0
}
