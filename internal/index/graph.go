package index

import "fmt"

// GraphNode is a page in the knowledge graph.
type GraphNode struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Emoji    string `json:"emoji"`
	Category string `json:"category"`
}

// GraphLink is a resolved wikilink between two pages.
type GraphLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// Graph returns every indexed page and every wikilink whose target title
// matches an indexed page. Unresolved links are left out.
func (db *DB) Graph() ([]GraphNode, []GraphLink, error) {
	rows, err := db.conn.Query(`SELECT id, title, emoji, category FROM pages ORDER BY id`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph nodes: %w", err)
	}
	nodes := []GraphNode{}
	for rows.Next() {
		var n GraphNode
		if err := rows.Scan(&n.ID, &n.Title, &n.Emoji, &n.Category); err != nil {
			rows.Close()
			return nil, nil, err
		}
		nodes = append(nodes, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	rows, err = db.conn.Query(`
		SELECT DISTINCT l.source, p.id, l.type
		FROM links l
		JOIN pages p ON p.title = l.target COLLATE NOCASE
		WHERE p.id != l.source
		ORDER BY l.source, p.id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph links: %w", err)
	}
	defer rows.Close()
	links := []GraphLink{}
	for rows.Next() {
		var l GraphLink
		if err := rows.Scan(&l.Source, &l.Target, &l.Type); err != nil {
			return nil, nil, err
		}
		links = append(links, l)
	}
	return nodes, links, rows.Err()
}
