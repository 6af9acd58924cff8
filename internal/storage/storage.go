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

	"github.com/neilalexander/yggpost/internal/storage/types"
)

// Backend keeps one history snapshot per relay identity.
type Backend interface {
	// Save replaces any previous snapshot for the identity.
	Save(ctx context.Context, identity string, records []types.Record) error
	// Load returns false if no snapshot has been saved yet.
	Load(ctx context.Context, identity string) ([]types.Record, bool, error)
	// Erase succeeds if there is nothing to erase.
	Erase(ctx context.Context, identity string) error
	Close() error
}
