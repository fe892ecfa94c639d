//go:build sqlite_fts5

package index

import (
	"database/sql"
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// snippetRadius is the token window around the first match in a snippet.
const snippetRadius = 24

func initSchema(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS docs USING fts5(
			path UNINDEXED,
			body
		);
	`)
	return err
}

// Search performs an FTS5 term query ranked by BM25, windowing each snippet
// around the first match with the given highlight delimiters.
func (db *DB) Search(query string, limit int, openDelim, closeDelim string) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := db.conn.Query(`
		SELECT path, snippet(docs, 1, ?, ?, '…', ?)
		FROM docs WHERE docs MATCH ?
		ORDER BY rank
		LIMIT ?
	`, openDelim, closeDelim, snippetRadius, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchHit
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.Path, &h.Snippet); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// IsQuerySyntaxErr reports whether the search backend rejected the query
// string itself, as opposed to an I/O or schema failure.
func IsQuerySyntaxErr(err error) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) && serr.Code == sqlite3.ErrError
}
