package workspace

// Event kinds published with every snapshot.
const (
	EventPageCreated       = "page.created"
	EventPageUpdated       = "page.updated"
	EventPageDeleted       = "page.deleted"
	EventPageActivated     = "page.activated"
	EventBlockCreated      = "block.created"
	EventBlockUpdated      = "block.updated"
	EventBlockDeleted      = "block.deleted"
	EventWorkspaceRestored = "workspace.restored"
)

// Event describes the transition that produced a snapshot. PageID and
// BlockID are empty when they do not apply.
type Event struct {
	Kind    string `json:"kind"`
	PageID  string `json:"pageId,omitempty"`
	BlockID string `json:"blockId,omitempty"`
}

// Structural reports whether the event changed the set of pages or their
// titles and tags, as opposed to block content or the active pointer.
func (e Event) Structural() bool {
	switch e.Kind {
	case EventPageCreated, EventPageUpdated, EventPageDeleted, EventWorkspaceRestored:
		return true
	}
	return false
}
