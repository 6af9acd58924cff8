/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/emersion/go-message"

	"github.com/neilalexander/yggpost/internal/mailstore"
)

const (
	headerRequest  = "Yggpost-Request"
	headerResponse = "Yggpost-Response"
	headerID       = "Yggpost-Id"
	headerOther    = "Yggpost-Other"
	headerAmount   = "Yggpost-Amount"
	headerError    = "Yggpost-Error"
)

func textHeader(h *message.Header) {
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "base64")
}

func EncodeRequest(r *Request) ([]byte, error) {
	var h message.Header
	h.Set(headerRequest, string(r.Type))
	h.Set(headerID, r.ID)
	switch r.Type {
	case SendMail:
		h.Set("To", r.To)
	case GetCorrespondence:
		h.Set(headerOther, r.Other)
	}
	if r.Type.HasAmount() {
		h.Set(headerAmount, strconv.Itoa(r.Amount))
	}
	textHeader(&h)

	var b bytes.Buffer
	w, err := message.CreateWriter(&b, h)
	if err != nil {
		return nil, fmt.Errorf("message.CreateWriter: %w", err)
	}
	if _, err := io.WriteString(w, r.Content); err != nil {
		return nil, fmt.Errorf("w.Write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("w.Close: %w", err)
	}
	return b.Bytes(), nil
}

func DecodeRequest(data []byte) (*Request, error) {
	e, err := readEntity(data)
	if err != nil {
		return nil, err
	}
	r := &Request{
		ID:   e.Header.Get(headerID),
		Type: RequestType(e.Header.Get(headerRequest)),
	}
	if !r.Type.Valid() {
		return r, fmt.Errorf("%w: unknown request type %q", ErrMalformed, r.Type)
	}
	if r.Type.HasAmount() {
		if r.Amount, err = strconv.Atoi(e.Header.Get(headerAmount)); err != nil {
			return r, fmt.Errorf("%w: amount: %s", ErrMalformed, err)
		}
	}
	switch r.Type {
	case SendMail:
		r.To = e.Header.Get("To")
		content, err := io.ReadAll(e.Body)
		if err != nil {
			return r, fmt.Errorf("%w: body: %s", ErrMalformed, err)
		}
		r.Content = string(content)
	case GetCorrespondence:
		r.Other = e.Header.Get(headerOther)
	}
	return r, nil
}

func EncodeResponse(r *Response) ([]byte, error) {
	var h message.Header
	h.Set(headerResponse, string(r.Type))
	h.Set(headerID, r.ID)
	if r.Error != "" {
		h.Set(headerError, r.Error)
	}
	h.SetContentType("multipart/mixed", nil)

	var b bytes.Buffer
	w, err := message.CreateWriter(&b, h)
	if err != nil {
		return nil, fmt.Errorf("message.CreateWriter: %w", err)
	}
	for _, m := range r.Mails {
		var ph message.Header
		ph.Set("From", m.From)
		ph.Set("To", m.To)
		textHeader(&ph)
		if err := writePart(w, ph, m.Content); err != nil {
			return nil, err
		}
	}
	if len(r.Contacts) > 0 {
		var ph message.Header
		textHeader(&ph)
		if err := writePart(w, ph, strings.Join(r.Contacts, "\n")); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("w.Close: %w", err)
	}
	return b.Bytes(), nil
}

func writePart(w *message.Writer, h message.Header, body string) error {
	pw, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("w.CreatePart: %w", err)
	}
	if _, err := io.WriteString(pw, body); err != nil {
		return fmt.Errorf("pw.Write: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("pw.Close: %w", err)
	}
	return nil
}

func DecodeResponse(data []byte) (*Response, error) {
	e, err := readEntity(data)
	if err != nil {
		return nil, err
	}
	r := &Response{
		ID:    e.Header.Get(headerID),
		Type:  RequestType(e.Header.Get(headerResponse)),
		Error: e.Header.Get(headerError),
	}
	if !r.Type.Valid() || r.Type == SendMail {
		return nil, fmt.Errorf("%w: unknown response type %q", ErrMalformed, r.Type)
	}
	mr := e.MultipartReader()
	if mr == nil {
		return nil, fmt.Errorf("%w: response is not multipart", ErrMalformed)
	}
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("%w: part: %s", ErrMalformed, err)
		}
		body, err := io.ReadAll(p.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: part body: %s", ErrMalformed, err)
		}
		if r.Type == GetContacts {
			r.Contacts = append(r.Contacts, strings.Fields(string(body))...)
			continue
		}
		r.Mails = append(r.Mails, mailstore.Mail{
			From:    p.Header.Get("From"),
			To:      p.Header.Get("To"),
			Content: string(body),
		})
	}
	return r, nil
}

func readEntity(data []byte) (*message.Entity, error) {
	if len(data) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit", ErrMalformed, len(data))
	}
	e, err := message.Read(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err)
	}
	return e, nil
}
