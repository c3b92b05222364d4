package index

import (
	"log/slog"

	"github.com/starford/edrak/internal/checksum"
	"github.com/starford/edrak/internal/models"
	"github.com/starford/edrak/internal/parser"
)

// Sync brings the index up to date with a workspace snapshot:
//   - new/changed pages are upserted
//   - pages no longer in the snapshot are deleted from the index
//
// A page counts as changed when the checksum over its fields and its block
// contents differs from the stored one.
func Sync(db *DB, ws *models.Workspace, logger *slog.Logger) error {
	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	for id, page := range ws.Pages {
		blocks := ws.PageBlocks(id)
		cs := checksum.Of(struct {
			Page   models.Page    `json:"page"`
			Blocks []models.Block `json:"blocks"`
		}{page, blocks})
		if checksums[id] == cs {
			continue
		}

		body := ws.PageText(id)
		row := PageRow{
			ID:        id,
			Title:     page.Title,
			Emoji:     page.Emoji,
			Category:  string(page.Category),
			Checksum:  cs,
			Tags:      page.Tags,
			UpdatedAt: page.UpdatedAt,
		}
		if err := db.UpsertPage(row, body, parser.ExtractLinks(body)); err != nil {
			logger.Warn("sync: index failed", slog.String("page_id", id), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("page_id", id))
		}
	}

	for id := range checksums {
		if _, ok := ws.Pages[id]; ok {
			continue
		}
		if err := db.DeletePage(id); err != nil {
			logger.Warn("sync: delete failed", slog.String("page_id", id), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: removed stale", slog.String("page_id", id))
		}
	}

	return nil
}
