package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"headlines/models"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
)

// Recent returns archived entries, newest first. Entries without a
// publication date come last.
func (a *Archive) Recent(ctx context.Context, limit int) ([]models.Entry, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(entryColumns...).From("entries")
	sb.OrderBy("published IS NULL", "published DESC", "archived_at DESC", "uuid")
	sb.Limit(limit)

	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	entries := []models.Entry{}
	for rows.Next() {
		var (
			entry      models.Entry
			published  sql.NullInt64
			categories string
		)
		if err := rows.Scan(
			&entry.UUID,
			&entry.FeedTitle,
			&entry.Title,
			&entry.Summary,
			&entry.Link,
			&published,
			&entry.GUID,
			&entry.Author,
			&categories,
		); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		if published.Valid {
			t := time.Unix(published.Int64, 0).UTC()
			entry.Published = &t
		}
		if err := json.Unmarshal([]byte(categories), &entry.Categories); err != nil {
			return nil, fmt.Errorf("decode categories of %s: %w", entry.UUID, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return entries, nil
}

// Count returns the number of archived entries
func (a *Archive) Count(ctx context.Context) (int, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("COUNT(*)").From("entries")
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	var count int
	if err := a.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count error: %w", err)
	}
	return count, nil
}
