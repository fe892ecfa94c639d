//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initSchema(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS docs (
			path TEXT PRIMARY KEY,
			body TEXT NOT NULL DEFAULT ''
		);
	`)
	return err
}

// Search performs a LIKE-based scan (fallback when FTS5 is not compiled in):
// no ranking, first 200 characters of the body as the snippet.
func (db *DB) Search(query string, limit int, _, _ string) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := db.conn.Query(`
		SELECT path, substr(body, 1, 200)
		FROM docs WHERE body LIKE ?
		ORDER BY path
		LIMIT ?
	`, "%"+query+"%", limit)
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

// IsQuerySyntaxErr always reports false: LIKE accepts any query string.
func IsQuerySyntaxErr(error) bool { return false }
