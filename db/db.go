package db

import (
	"database/sql"
	"fmt"

	"headlines/models"
)

// Archive keeps ingested entries in SQLite, one row per article. Entry
// UUIDs change with every ingestion run, so rows are keyed by EntryKey.
type Archive struct {
	db *sql.DB
}

// Open connects to an archive created by Migrate
func Open(database string) (*Archive, error) {
	db, err := connection(database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

var entryColumns = []string{
	"uuid",
	"feed_title",
	"title",
	"summary",
	"link",
	"published",
	"guid",
	"author",
	"categories",
}

// EntryKey identifies an article across ingestion runs: its GUID, else its
// link, else its feed and title.
func EntryKey(entry models.Entry) string {
	switch {
	case entry.GUID != "":
		return entry.GUID
	case entry.Link != "":
		return entry.Link
	default:
		return entry.FeedTitle + "\n" + entry.Title
	}
}
