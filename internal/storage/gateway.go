/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package storage

import (
	"context"
	"fmt"
	"log"

	"github.com/neilalexander/yggpost/internal/mailstore"
	"github.com/neilalexander/yggpost/internal/storage/types"
)

// Gateway moves a store's history in and out of a backend.
type Gateway struct {
	Identity string
	Backend  Backend
	Log      *log.Logger
}

// Restore loads the last snapshot into the store, replacing its contents,
// and returns the number of entries replayed. A missing snapshot leaves the
// store empty and is not an error.
func (g *Gateway) Restore(ctx context.Context, store *mailstore.Store) (int, error) {
	records, ok, err := g.Backend.Load(ctx, g.Identity)
	if err != nil {
		return 0, fmt.Errorf("g.Backend.Load: %w", err)
	}
	if !ok {
		store.Reset()
		g.Log.Printf("No snapshot found for %q, starting empty\n", g.Identity)
		return 0, nil
	}
	history := make([]mailstore.Entry, 0, len(records))
	for _, r := range records {
		history = append(history, mailstore.Entry{
			ID: r.ID,
			Mail: mailstore.Mail{
				From:    r.From,
				To:      r.To,
				Content: r.Content,
			},
			Read: r.Read,
		})
	}
	if err := store.Replay(history); err != nil {
		return 0, fmt.Errorf("store.Replay: %w", err)
	}
	g.Log.Printf("Restored %d mail(s) for %q\n", len(history), g.Identity)
	return len(history), nil
}

// Capture saves the store's full history as the snapshot for this identity.
func (g *Gateway) Capture(ctx context.Context, store *mailstore.Store) error {
	history := store.History()
	records := make([]types.Record, 0, len(history))
	for _, e := range history {
		records = append(records, types.Record{
			ID:      e.ID,
			From:    e.Mail.From,
			To:      e.Mail.To,
			Content: e.Mail.Content,
			Read:    e.Read,
		})
	}
	if err := g.Backend.Save(ctx, g.Identity, records); err != nil {
		return fmt.Errorf("g.Backend.Save: %w", err)
	}
	g.Log.Printf("Saved %d mail(s) for %q\n", len(records), g.Identity)
	return nil
}

func (g *Gateway) Erase(ctx context.Context) error {
	if err := g.Backend.Erase(ctx, g.Identity); err != nil {
		return fmt.Errorf("g.Backend.Erase: %w", err)
	}
	return nil
}
