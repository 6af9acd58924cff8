/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package sqlite3

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/atomic"
)

type SQLite3Storage struct {
	*TableConfig
	*TableHistory
	db     *sql.DB
	writer *Writer
}

func NewSQLite3Storage(filename string) (*SQLite3Storage, error) {
	db, err := sql.Open("sqlite3", "file:"+filename+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	s := &SQLite3Storage{
		db:     db,
		writer: NewWriter(),
	}
	s.TableConfig, err = NewTableConfig(db, s.writer)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("NewTableConfig: %w", err)
	}
	s.TableHistory, err = NewTableHistory(db, s.writer)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("NewTableHistory: %w", err)
	}
	return s, nil
}

func (s *SQLite3Storage) Close() error {
	s.writer.Stop()
	return s.db.Close()
}

var ErrWriterStopped = errors.New("sqlite3: writer stopped")

// Writer funnels all writes through one goroutine, since SQLite only
// allows a single writer at a time.
type Writer struct {
	stopped atomic.Bool
	todo    chan writerTask
	stop    chan struct{}
	done    chan struct{}
}

type writerTask struct {
	db   *sql.DB
	txn  *sql.Tx
	f    func(txn *sql.Tx) error
	wait chan error
}

func NewWriter() *Writer {
	w := &Writer{
		todo: make(chan writerTask),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go w.run()
	return w
}

// Do runs f on the writer goroutine and returns its error. Once Stop has
// been called it returns ErrWriterStopped.
func (w *Writer) Do(db *sql.DB, txn *sql.Tx, f func(txn *sql.Tx) error) error {
	task := writerTask{
		db:   db,
		txn:  txn,
		f:    f,
		wait: make(chan error, 1),
	}
	select {
	case w.todo <- task:
	case <-w.stop:
		return ErrWriterStopped
	}
	return <-task.wait
}

// Stop ends the writer goroutine and waits for it to exit. A task already
// handed over is finished first.
func (w *Writer) Stop() {
	if w.stopped.CompareAndSwap(false, true) {
		close(w.stop)
	}
	<-w.done
}

func (w *Writer) run() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case task := <-w.todo:
			task.wait <- w.handle(task)
		}
	}
}

func (w *Writer) handle(task writerTask) error {
	switch {
	case task.db != nil && task.txn != nil:
		return task.f(task.txn)
	case task.db != nil:
		txn, err := task.db.Begin()
		if err != nil {
			return fmt.Errorf("db.Begin: %w", err)
		}
		if err = task.f(txn); err != nil {
			_ = txn.Rollback()
			return err
		}
		return txn.Commit()
	default:
		return task.f(nil)
	}
}
