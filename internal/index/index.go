package index

// PageIndex is the read side the page service depends on. Consumers should
// depend on this interface rather than on *DB.
type PageIndex interface {
	Search(query string, limit int) ([]SearchResult, error)
	Graph() ([]GraphNode, []GraphLink, error)
	Backlinks(pageID string) ([]string, error)
}

// Verify *DB satisfies PageIndex at compile time.
var _ PageIndex = (*DB)(nil)
