package workspace

import (
	"time"

	"github.com/starford/edrak/internal/models"
)

// Ids of the seed workspace.
const (
	SeedPageID    = "p1"
	SeedHeadingID = "welcome-1"
	SeedTextID    = "welcome-2"
)

// Seed returns the workspace used when no persisted snapshot can be loaded:
// one welcome page holding a heading and a paragraph.
func Seed(now time.Time) *models.Workspace {
	ts := now.UnixMilli()
	ws := models.NewWorkspace()
	ws.Blocks[SeedHeadingID] = models.Block{
		ID:      SeedHeadingID,
		Type:    models.BlockHeading1,
		Content: "Welcome to Edrak",
	}
	ws.Blocks[SeedTextID] = models.Block{
		ID:      SeedTextID,
		Type:    models.BlockText,
		Content: "This is your second brain. Start writing down your ideas and linking them together.",
	}
	ws.Pages[SeedPageID] = models.Page{
		ID:        SeedPageID,
		Title:     "My first notes",
		Emoji:     "🚀",
		Category:  models.CategoryProjects,
		Blocks:    []string{SeedHeadingID, SeedTextID},
		CreatedAt: ts,
		UpdatedAt: ts,
		Tags:      []string{"welcome", "getting-started"},
	}
	ws.ActivePageID = models.Ptr(SeedPageID)
	return ws
}
