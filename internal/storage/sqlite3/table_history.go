/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/neilalexander/yggpost/internal/storage/types"
)

type TableHistory struct {
	db             *sql.DB
	writer         *Writer
	selectSnapshot *sql.Stmt
	selectRecords  *sql.Stmt
	insertSnapshot *sql.Stmt
	insertRecord   *sql.Stmt
	deleteSnapshot *sql.Stmt
}

const historySchema = `
	CREATE TABLE IF NOT EXISTS snapshots (
		identity 	TEXT NOT NULL,
		entries 	INTEGER NOT NULL,
		saved 		INTEGER NOT NULL,
		PRIMARY KEY(identity)
	);

	CREATE TABLE IF NOT EXISTS history (
		identity 	TEXT NOT NULL,
		id 			INTEGER NOT NULL,
		sender 		TEXT NOT NULL,
		recipient 	TEXT NOT NULL,
		content 	TEXT NOT NULL,
		read 		BOOLEAN NOT NULL DEFAULT 0, -- returned by a read-marking query
		PRIMARY KEY(identity, id),
		FOREIGN KEY (identity) REFERENCES snapshots(identity) ON DELETE CASCADE
	);
`

const selectSnapshotStmt = `
	SELECT entries FROM snapshots WHERE identity = $1
`

const selectRecordsStmt = `
	SELECT id, sender, recipient, content, read FROM history
	WHERE identity = $1
	ORDER BY id
`

const insertSnapshotStmt = `
	INSERT INTO snapshots (identity, entries, saved) VALUES($1, $2, $3)
`

const insertRecordStmt = `
	INSERT INTO history (identity, id, sender, recipient, content, read) VALUES($1, $2, $3, $4, $5, $6)
`

const deleteSnapshotStmt = `
	DELETE FROM snapshots WHERE identity = $1
`

func NewTableHistory(db *sql.DB, writer *Writer) (*TableHistory, error) {
	t := &TableHistory{
		db:     db,
		writer: writer,
	}
	_, err := db.Exec(historySchema)
	if err != nil {
		return nil, fmt.Errorf("db.Exec: %w", err)
	}
	t.selectSnapshot, err = db.Prepare(selectSnapshotStmt)
	if err != nil {
		return nil, fmt.Errorf("db.Prepare(selectSnapshotStmt): %w", err)
	}
	t.selectRecords, err = db.Prepare(selectRecordsStmt)
	if err != nil {
		return nil, fmt.Errorf("db.Prepare(selectRecordsStmt): %w", err)
	}
	t.insertSnapshot, err = db.Prepare(insertSnapshotStmt)
	if err != nil {
		return nil, fmt.Errorf("db.Prepare(insertSnapshotStmt): %w", err)
	}
	t.insertRecord, err = db.Prepare(insertRecordStmt)
	if err != nil {
		return nil, fmt.Errorf("db.Prepare(insertRecordStmt): %w", err)
	}
	t.deleteSnapshot, err = db.Prepare(deleteSnapshotStmt)
	if err != nil {
		return nil, fmt.Errorf("db.Prepare(deleteSnapshotStmt): %w", err)
	}
	return t, nil
}

func (t *TableHistory) Save(ctx context.Context, identity string, records []types.Record) error {
	return t.writer.Do(t.db, nil, func(txn *sql.Tx) error {
		if _, err := txn.StmtContext(ctx, t.deleteSnapshot).ExecContext(ctx, identity); err != nil {
			return fmt.Errorf("t.deleteSnapshot.Exec: %w", err)
		}
		if _, err := txn.StmtContext(ctx, t.insertSnapshot).ExecContext(ctx, identity, len(records), time.Now().Unix()); err != nil {
			return fmt.Errorf("t.insertSnapshot.Exec: %w", err)
		}
		insert := txn.StmtContext(ctx, t.insertRecord)
		for _, r := range records {
			if _, err := insert.ExecContext(ctx, identity, int64(r.ID), r.From, r.To, r.Content, r.Read); err != nil {
				return fmt.Errorf("t.insertRecord.Exec(%d): %w", r.ID, err)
			}
		}
		return nil
	})
}

func (t *TableHistory) Load(ctx context.Context, identity string) ([]types.Record, bool, error) {
	var entries int
	err := t.selectSnapshot.QueryRowContext(ctx, identity).Scan(&entries)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("t.selectSnapshot.QueryRow: %w", err)
	}
	rows, err := t.selectRecords.QueryContext(ctx, identity)
	if err != nil {
		return nil, false, fmt.Errorf("t.selectRecords.Query: %w", err)
	}
	defer rows.Close()
	records := make([]types.Record, 0, entries)
	for rows.Next() {
		var id int64
		var r types.Record
		if err := rows.Scan(&id, &r.From, &r.To, &r.Content, &r.Read); err != nil {
			return nil, false, fmt.Errorf("rows.Scan: %w", err)
		}
		r.ID = uint64(id)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("rows.Err: %w", err)
	}
	if len(records) != entries {
		return nil, false, fmt.Errorf("snapshot for %q has %d of %d entries", identity, len(records), entries)
	}
	return records, true, nil
}

func (t *TableHistory) Erase(ctx context.Context, identity string) error {
	return t.writer.Do(t.db, nil, func(txn *sql.Tx) error {
		_, err := txn.StmtContext(ctx, t.deleteSnapshot).ExecContext(ctx, identity)
		return err
	})
}
