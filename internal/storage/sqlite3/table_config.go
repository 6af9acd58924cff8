package sqlite3

import (
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

type TableConfig struct {
	db     *sql.DB
	writer *Writer
	get    *sql.Stmt
	set    *sql.Stmt
}

const configSchema = `
	CREATE TABLE IF NOT EXISTS config (
		key 		TEXT NOT NULL,
		value 		TEXT NOT NULL,
		PRIMARY KEY(key)
	);
`

const configGet = `
	SELECT value FROM config WHERE key = $1
`

const configSet = `
	INSERT OR REPLACE INTO config (key, value) VALUES($1, $2)
`

func NewTableConfig(db *sql.DB, writer *Writer) (*TableConfig, error) {
	t := &TableConfig{
		db:     db,
		writer: writer,
	}
	_, err := db.Exec(configSchema)
	if err != nil {
		return nil, fmt.Errorf("db.Exec: %w", err)
	}
	t.get, err = db.Prepare(configGet)
	if err != nil {
		return nil, fmt.Errorf("db.Prepare(get): %w", err)
	}
	t.set, err = db.Prepare(configSet)
	if err != nil {
		return nil, fmt.Errorf("db.Prepare(set): %w", err)
	}
	return t, nil
}

func (t *TableConfig) ConfigGet(key string) (string, error) {
	var value string
	err := t.get.QueryRow(key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (t *TableConfig) ConfigSet(key, value string) error {
	return t.writer.Do(t.db, nil, func(txn *sql.Tx) error {
		_, err := txn.Stmt(t.set).Exec(key, value)
		return err
	})
}

func (t *TableConfig) ConfigSetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("bcrypt.GenerateFromPassword: %w", err)
	}
	if err := t.ConfigSet("password", string(hash)); err != nil {
		return fmt.Errorf("t.ConfigSet: %w", err)
	}
	return nil
}

// ConfigTryPassword reports false without error if no password is set.
func (t *TableConfig) ConfigTryPassword(password string) (bool, error) {
	hash, err := t.ConfigGet("password")
	if err != nil {
		return false, fmt.Errorf("t.ConfigGet: %w", err)
	}
	if hash == "" {
		return false, nil
	}
	err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}
