package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"headlines/models"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// Save stores entries that are not archived yet and returns how many rows
// were added. An entry is already archived when a row with the same UUID or
// the same EntryKey exists.
func (a *Archive) Save(ctx context.Context, entries []models.Entry) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	archivedAt := time.Now().Unix()
	inserted := 0
	for _, entry := range entries {
		sql, args, err := insertEntry(entry, archivedAt)
		if err != nil {
			return 0, err
		}

		res, err := tx.ExecContext(ctx, sql, args...)
		if err != nil {
			return 0, fmt.Errorf("insert error: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	log.WithFields(log.Fields{
		"entries":  len(entries),
		"inserted": inserted,
	}).Info("Archived entries")

	return inserted, nil
}

func insertEntry(entry models.Entry, archivedAt int64) (string, []interface{}, error) {
	categories, err := json.Marshal(entry.Categories)
	if err != nil {
		return "", nil, fmt.Errorf("encode categories: %w", err)
	}
	if entry.Categories == nil {
		categories = []byte("[]")
	}

	var published interface{}
	if entry.HasPublished() {
		published = entry.Published.Unix()
	}

	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertIgnoreInto("entries").
		Cols(append(entryColumns, "entry_key", "archived_at")...).
		Values(
			entry.UUID,
			entry.FeedTitle,
			entry.Title,
			entry.Summary,
			entry.Link,
			published,
			entry.GUID,
			entry.Author,
			string(categories),
			EntryKey(entry),
			archivedAt,
		)

	sql, args := ib.Build()
	return sql, args, nil
}
