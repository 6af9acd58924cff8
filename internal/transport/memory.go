/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package transport

import (
	"fmt"
	"sync"
)

// Network connects in-process endpoints. It is used by tests and by
// programs that embed a relay and its clients in one process.
type Network struct {
	mutex     sync.Mutex
	endpoints map[string]*MemoryTransport
}

func NewNetwork() *Network {
	return &Network{
		endpoints: make(map[string]*MemoryTransport),
	}
}

// Endpoint creates a transport reachable as address. An address can be
// reused once its previous endpoint has been closed.
func (n *Network) Endpoint(address string) (*MemoryTransport, error) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	if _, ok := n.endpoints[address]; ok {
		return nil, fmt.Errorf("address %q already in use", address)
	}
	t := &MemoryTransport{
		network: n,
		address: address,
		queue:   newFIFOQueue(),
		closed:  make(chan struct{}),
	}
	n.endpoints[address] = t
	return t, nil
}

func (n *Network) lookup(address string) (*MemoryTransport, bool) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	t, ok := n.endpoints[address]
	return t, ok
}

func (n *Network) remove(t *MemoryTransport) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	if n.endpoints[t.address] == t {
		delete(n.endpoints, t.address)
	}
}

type MemoryTransport struct {
	network *Network
	address string
	queue   *fifoQueue
	once    sync.Once
	closed  chan struct{}
}

func (t *MemoryTransport) Address() string {
	return t.address
}

func (t *MemoryTransport) Send(destination string, payload []byte) error {
	select {
	case <-t.closed:
		return ErrClosed
	default:
	}
	dest, ok := t.network.lookup(destination)
	if !ok {
		return fmt.Errorf("no endpoint at %q", destination)
	}
	data := make([]byte, len(payload))
	copy(data, payload)
	dest.queue.push(packet{
		source:  t.address,
		payload: data,
	})
	return nil
}

func (t *MemoryTransport) Receive() (string, []byte, error) {
	for {
		if p, ok := t.queue.pop(); ok {
			return p.source, p.payload, nil
		}
		select {
		case <-t.closed:
			return "", nil, ErrClosed
		case <-t.queue.wait():
		}
	}
}

func (t *MemoryTransport) Close() error {
	t.once.Do(func() {
		close(t.closed)
		t.network.remove(t)
	})
	return nil
}
