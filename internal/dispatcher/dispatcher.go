/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package dispatcher runs the relay's request loop. One goroutine receives
// a request, applies it to the store and replies before receiving the next,
// so the store needs no locking.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"

	"github.com/neilalexander/yggpost/internal/mailstore"
	"github.com/neilalexander/yggpost/internal/protocol"
	"github.com/neilalexander/yggpost/internal/storage"
	"github.com/neilalexander/yggpost/internal/transport"
)

type State int32

const (
	StateIdle State = iota
	StateHandling
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHandling:
		return "handling"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

type Dispatcher struct {
	Log       *log.Logger
	Transport transport.Transport
	Store     *mailstore.Store
	Gateway   *storage.Gateway
	state     atomic.Int32
	requests  metric.Int64Counter
	rejected  metric.Int64Counter
}

// NewDispatcher counts requests with instruments from meter, which may be
// a no-op meter.
func NewDispatcher(log *log.Logger, t transport.Transport, store *mailstore.Store, gateway *storage.Gateway, meter metric.Meter) (*Dispatcher, error) {
	d := &Dispatcher{
		Log:       log,
		Transport: t,
		Store:     store,
		Gateway:   gateway,
	}
	var err error
	d.requests, err = meter.Int64Counter("yggpost.requests",
		metric.WithDescription("Requests handled by the relay"))
	if err != nil {
		return nil, fmt.Errorf("meter.Int64Counter(requests): %w", err)
	}
	d.rejected, err = meter.Int64Counter("yggpost.rejected",
		metric.WithDescription("Requests rejected by the relay"))
	if err != nil {
		return nil, fmt.Errorf("meter.Int64Counter(rejected): %w", err)
	}
	return d, nil
}

func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

// Run handles requests until the transport is closed, then saves a
// snapshot of the store. A failed snapshot is returned as an error.
func (d *Dispatcher) Run() error {
	for {
		source, payload, err := d.Transport.Receive()
		if errors.Is(err, transport.ErrClosed) {
			break
		} else if err != nil {
			d.Log.Println("Failed to receive request:", err)
			continue
		}
		d.state.Store(int32(StateHandling))
		d.step(source, payload)
		d.state.Store(int32(StateIdle))
	}
	if err := d.Gateway.Capture(context.Background(), d.Store); err != nil {
		return fmt.Errorf("d.Gateway.Capture: %w", err)
	}
	return nil
}

func (d *Dispatcher) step(source string, payload []byte) {
	req, err := protocol.DecodeRequest(payload)
	if err != nil {
		d.Log.Printf("Failed to decode request from %s due to error: %s", source, err)
		d.count(d.rejected, "")
		// Reply if there is enough of the request to route an answer to.
		if req != nil && req.ID != "" && req.Type.Valid() && req.Type != protocol.SendMail {
			d.reply(source, &protocol.Response{
				ID:    req.ID,
				Type:  req.Type,
				Error: err.Error(),
			})
		}
		return
	}
	if resp := d.Handle(source, req); resp != nil {
		d.reply(source, resp)
	}
}

func (d *Dispatcher) reply(destination string, resp *protocol.Response) {
	data, err := protocol.EncodeResponse(resp)
	if err != nil {
		d.Log.Printf("Failed to encode response for %s due to error: %s", destination, err)
		return
	}
	if err := d.Transport.Send(destination, data); err != nil {
		d.Log.Printf("Failed to send response to %s due to error: %s", destination, err)
	}
}

// Handle applies one request from source to the store. It returns nil for
// SEND_MAIL, which is never answered.
func (d *Dispatcher) Handle(source string, req *protocol.Request) *protocol.Response {
	d.count(d.requests, req.Type)
	err := req.Validate()
	if err == nil {
		err = mailstore.ValidateAddress(source)
	}
	if err != nil {
		return d.reject(source, req, err)
	}

	resp := &protocol.Response{
		ID:   req.ID,
		Type: req.Type,
	}
	switch req.Type {
	case protocol.SendMail:
		var entry mailstore.Entry
		entry, err = d.Store.Submit(mailstore.Mail{
			From:    source,
			To:      req.To,
			Content: req.Content,
		})
		if err == nil {
			d.Log.Printf("Stored mail %d from %s to %s\n", entry.ID, source, req.To)
			return nil
		}
	case protocol.GetSent:
		resp.Mails, err = d.Store.Sent(source, req.Amount)
	case protocol.GetIncoming:
		resp.Mails, err = d.Store.Received(source, req.Amount)
	case protocol.GetAll:
		resp.Mails, err = d.Store.All(source, req.Amount)
	case protocol.GetCorrespondence:
		resp.Mails, err = d.Store.Correspondence(source, req.Other, req.Amount)
	case protocol.GetUnread:
		resp.Mails, err = d.Store.Unread(source)
	case protocol.GetContacts:
		resp.Contacts, err = d.Store.Contacts(source)
	}
	if err != nil {
		return d.reject(source, req, err)
	}
	return resp
}

// reject answers a refused query with the reason. Refused mail is only
// logged, since SEND_MAIL has no response.
func (d *Dispatcher) reject(source string, req *protocol.Request, err error) *protocol.Response {
	d.count(d.rejected, req.Type)
	d.Log.Printf("Rejected %s request from %s: %s\n", req.Type, source, err)
	if req.Type == protocol.SendMail {
		return nil
	}
	return &protocol.Response{
		ID:    req.ID,
		Type:  req.Type,
		Error: err.Error(),
	}
}

func (d *Dispatcher) count(counter metric.Int64Counter, t protocol.RequestType) {
	counter.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("type", string(t)),
	))
}
