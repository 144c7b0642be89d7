package db

import (
	"context"
	"fmt"
	"time"

	sb "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// Tidy removes archived entries published before cutoff. Entries without a
// publication date are kept.
func (a *Archive) Tidy(ctx context.Context, cutoff time.Time) (int64, error) {
	deleteEntries := sb.NewDeleteBuilder()
	deleteEntries.DeleteFrom("entries").Where(deleteEntries.LessThan("published", cutoff.Unix()))
	sql, args := deleteEntries.BuildWithFlavor(sb.SQLite)

	log.WithFields(log.Fields{
		"sql":  sql,
		"args": args,
	}).Info("Tidying archive")

	res, err := a.db.ExecContext(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("delete error: %w", err)
	}
	return res.RowsAffected()
}
