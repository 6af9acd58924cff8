/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package client talks to a relay on behalf of one address.
package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/neilalexander/yggpost/internal/mailstore"
	"github.com/neilalexander/yggpost/internal/protocol"
	"github.com/neilalexander/yggpost/internal/transport"
)

// Client sends requests to a relay and matches the responses to them by
// request ID. It is safe for concurrent use.
type Client struct {
	log       *log.Logger
	transport transport.Transport
	server    string
	mutex     sync.Mutex
	pending   map[string]chan *protocol.Response
	done      chan struct{}
}

// NewClient takes ownership of t and starts receiving responses from
// server on it.
func NewClient(log *log.Logger, t transport.Transport, server string) *Client {
	c := &Client{
		log:       log,
		transport: t,
		server:    server,
		pending:   make(map[string]chan *protocol.Response),
		done:      make(chan struct{}),
	}
	go c.receive()
	return c
}

// Address is the address the relay knows this client by.
func (c *Client) Address() string {
	return c.transport.Address()
}

func (c *Client) Close() error {
	err := c.transport.Close()
	<-c.done
	return err
}

func (c *Client) receive() {
	defer close(c.done)
	for {
		source, payload, err := c.transport.Receive()
		if errors.Is(err, transport.ErrClosed) {
			return
		} else if err != nil {
			c.log.Println("Failed to receive response:", err)
			continue
		}
		if source != c.server {
			c.log.Println("Ignoring payload from unexpected sender", source)
			continue
		}
		resp, err := protocol.DecodeResponse(payload)
		if err != nil {
			c.log.Println("Failed to decode response:", err)
			continue
		}
		c.mutex.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mutex.Unlock()
		if !ok {
			c.log.Println("Ignoring response to unknown request", resp.ID)
			continue
		}
		ch <- resp
	}
}

func (c *Client) send(req *protocol.Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	data, err := protocol.EncodeRequest(req)
	if err != nil {
		return fmt.Errorf("protocol.EncodeRequest: %w", err)
	}
	if err := c.transport.Send(c.server, data); err != nil {
		return fmt.Errorf("c.transport.Send: %w", err)
	}
	return nil
}

func (c *Client) query(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	ch := make(chan *protocol.Response, 1)
	c.mutex.Lock()
	c.pending[req.ID] = ch
	c.mutex.Unlock()
	defer func() {
		c.mutex.Lock()
		delete(c.pending, req.ID)
		c.mutex.Unlock()
	}()

	if err := c.send(req); err != nil {
		return nil, err
	}
	select {
	case resp := <-ch:
		if resp.Type != req.Type {
			return nil, fmt.Errorf("%w: %s response to %s request", protocol.ErrMalformed, resp.Type, req.Type)
		}
		return resp, resp.Err()
	case <-c.done:
		return nil, transport.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) mails(ctx context.Context, req *protocol.Request) ([]mailstore.Mail, error) {
	resp, err := c.query(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Mails, nil
}

// SendMail hands a mail to the relay. The relay does not answer, so a nil
// error only means the mail was sent.
func (c *Client) SendMail(to, content string) error {
	return c.send(protocol.NewSendMail(to, content))
}

func (c *Client) Sent(ctx context.Context, n int) ([]mailstore.Mail, error) {
	return c.mails(ctx, protocol.NewGetSent(n))
}

func (c *Client) Incoming(ctx context.Context, n int) ([]mailstore.Mail, error) {
	return c.mails(ctx, protocol.NewGetIncoming(n))
}

func (c *Client) All(ctx context.Context, n int) ([]mailstore.Mail, error) {
	return c.mails(ctx, protocol.NewGetAll(n))
}

func (c *Client) Correspondence(ctx context.Context, other string, n int) ([]mailstore.Mail, error) {
	return c.mails(ctx, protocol.NewGetCorrespondence(other, n))
}

func (c *Client) Unread(ctx context.Context) ([]mailstore.Mail, error) {
	return c.mails(ctx, protocol.NewGetUnread())
}

func (c *Client) Contacts(ctx context.Context) ([]string, error) {
	resp, err := c.query(ctx, protocol.NewGetContacts())
	if err != nil {
		return nil, err
	}
	return resp.Contacts, nil
}
