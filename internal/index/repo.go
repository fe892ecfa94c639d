package index

import (
	"database/sql"
	"errors"
	"fmt"
)

// Contains reports whether a document path has an index entry.
func (db *DB) Contains(path string) (bool, error) {
	var one int
	err := db.conn.QueryRow(`SELECT 1 FROM docs WHERE path = ?`, path).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("index: contains %s: %w", path, err)
	}
	return true, nil
}

// Insert adds a document body under path. Insert-if-absent: an existing
// entry is left untouched.
func (db *DB) Insert(path, body string) error {
	ok, err := db.Contains(path)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if _, err := db.conn.Exec(`INSERT INTO docs (path, body) VALUES (?, ?)`, path, body); err != nil {
		return fmt.Errorf("index: insert %s: %w", path, err)
	}
	return nil
}

// Refresh replaces the indexed body for path, inserting if absent. Used by
// the watcher when a file changes on disk while serving.
func (db *DB) Refresh(path, body string) error {
	if _, err := db.conn.Exec(`DELETE FROM docs WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: refresh delete %s: %w", path, err)
	}
	if _, err := db.conn.Exec(`INSERT INTO docs (path, body) VALUES (?, ?)`, path, body); err != nil {
		return fmt.Errorf("index: refresh insert %s: %w", path, err)
	}
	return nil
}

// Delete removes the index entry for path, if any.
func (db *DB) Delete(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM docs WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete %s: %w", path, err)
	}
	return nil
}

// Body returns the indexed body for path. The second return reports whether
// an entry exists.
func (db *DB) Body(path string) (string, bool, error) {
	var body string
	err := db.conn.QueryRow(`SELECT body FROM docs WHERE path = ?`, path).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("index: body %s: %w", path, err)
	}
	return body, true, nil
}
