package index

import (
	"encoding/json"
	"fmt"
)

// PageRow represents a row in the pages table.
type PageRow struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Emoji     string   `json:"emoji"`
	Category  string   `json:"category"`
	Checksum  string   `json:"-"`
	Tags      []string `json:"tags"`
	UpdatedAt int64    `json:"updatedAt"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	PageID  string `json:"pageId"`
	Title   string `json:"title"`
	Emoji   string `json:"emoji"`
	Snippet string `json:"snippet"`
}

// UpsertPage inserts or replaces a page, its FTS entry and its outgoing
// wikilinks within a transaction.
func (db *DB) UpsertPage(p PageRow, body string, links []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if p.Tags == nil {
		p.Tags = []string{}
	}
	tagsJSON, _ := json.Marshal(p.Tags)

	_, err = tx.Exec(`
		INSERT INTO pages (id, title, emoji, category, checksum, tags, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title      = excluded.title,
			emoji      = excluded.emoji,
			category   = excluded.category,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, p.ID, p.Title, p.Emoji, p.Category, p.Checksum, string(tagsJSON), body, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert page: %w", err)
	}

	if err := ftsUpsert(tx, p.ID, p.Title, body, p.Tags); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM links WHERE source = ?`, p.ID); err != nil {
		return fmt.Errorf("index: clear links: %w", err)
	}
	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target, type) VALUES (?, ?, 'wikilink')`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range links {
			if _, err := stmt.Exec(p.ID, target); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeletePage removes a page, its FTS entry and its outgoing links.
func (db *DB) DeletePage(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, id)
	if _, err := tx.Exec(`DELETE FROM pages WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete page: %w", err)
	}

	return tx.Commit()
}

// AllChecksums returns the stored checksum of every indexed page.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM pages`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

// Backlinks returns the ids of pages whose blocks link to page id's title.
func (db *DB) Backlinks(id string) ([]string, error) {
	rows, err := db.conn.Query(`
		SELECT DISTINCT l.source
		FROM links l
		JOIN pages p ON p.title = l.target COLLATE NOCASE
		WHERE p.id = ? AND l.source != p.id
		ORDER BY l.source
	`, id)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
