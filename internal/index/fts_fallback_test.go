//go:build !sqlite_fts5

package index

import "testing"

func TestSearch_WildcardsAreLiteral(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertPage(PageRow{ID: "w1", Title: "Budget"}, "saved 50% this month", nil)
	_ = db.UpsertPage(PageRow{ID: "w2", Title: "Notes"}, "saved 500 euros", nil)
	_ = db.UpsertPage(PageRow{ID: "w3", Title: "snake_case"}, "naming", nil)
	_ = db.UpsertPage(PageRow{ID: "w4", Title: "snakeXcase"}, "naming", nil)

	results, err := db.Search("50%", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].PageID != "w1" {
		t.Errorf("50%% results = %+v", results)
	}

	results, _ = db.Search("snake_case", 10)
	if len(results) != 1 || results[0].PageID != "w3" {
		t.Errorf("snake_case results = %+v", results)
	}
}
