/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package yggpost

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/neilalexander/yggpost/internal/dispatcher"
	"github.com/neilalexander/yggpost/internal/mailstore"
	"github.com/neilalexander/yggpost/internal/storage"
	"github.com/neilalexander/yggpost/internal/transport"
)

var (
	ErrRunning    = errors.New("yggpost: relay is running")
	ErrNotRunning = errors.New("yggpost: relay is not running")
)

// Relay serves one identity's mail over a transport. Its history is
// restored from the backend on Start and captured again on Stop.
type Relay struct {
	Log      *log.Logger
	Identity string
	Backend  storage.Backend
	// Meter defaults to the global meter provider.
	Meter metric.Meter

	mutex      sync.Mutex
	transport  transport.Transport
	dispatcher *dispatcher.Dispatcher
	done       chan error
}

func (r *Relay) gateway() *storage.Gateway {
	return &storage.Gateway{
		Identity: r.Identity,
		Backend:  r.Backend,
		Log:      r.Log,
	}
}

// Start restores the relay's history and serves requests arriving on t
// until Stop. The relay takes ownership of t.
func (r *Relay) Start(ctx context.Context, t transport.Transport) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.done != nil {
		return ErrRunning
	}

	store := mailstore.NewStore()
	gateway := r.gateway()
	count, err := gateway.Restore(ctx, store)
	if err != nil {
		return fmt.Errorf("gateway.Restore: %w", err)
	}

	meter := r.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter("github.com/neilalexander/yggpost")
	}
	d, err := dispatcher.NewDispatcher(r.Log, t, store, gateway, meter)
	if err != nil {
		return fmt.Errorf("dispatcher.NewDispatcher: %w", err)
	}

	r.Log.Printf("Restored %d mails, serving on %s\n", count, t.Address())
	r.transport, r.dispatcher = t, d
	r.done = make(chan error, 1)
	go func(done chan<- error) {
		done <- d.Run()
	}(r.done)
	return nil
}

// Stop closes the transport and waits for the history to be saved.
func (r *Relay) Stop() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.done == nil {
		return ErrNotRunning
	}
	r.Log.Println("Shutting down")
	if err := r.transport.Close(); err != nil {
		r.Log.Println("Failed to close transport:", err)
	}
	err := <-r.done
	r.transport, r.dispatcher, r.done = nil, nil, nil
	return err
}

// Clean erases the saved history so the next Start begins empty.
func (r *Relay) Clean(ctx context.Context) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.done != nil {
		return ErrRunning
	}
	return r.gateway().Erase(ctx)
}

// Running reports whether the relay is between Start and Stop.
func (r *Relay) Running() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.done != nil
}

// State reports what the dispatcher is doing. A stopped relay is idle.
func (r *Relay) State() dispatcher.State {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.dispatcher == nil {
		return dispatcher.StateIdle
	}
	return r.dispatcher.State()
}
