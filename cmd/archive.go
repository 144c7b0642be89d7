package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"headlines/db"
	"headlines/docdb"
	"headlines/models"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const (
	storeSQLite = "sqlite"
	storeNDJSON = "ndjson"

	archiveCollection = "entries"
)

func archiveCmd() *cli.Command {
	return &cli.Command{
		Name:  "archive",
		Usage: "Archive the entries of the last ingestion run",
		Description: `Reads the entry log written by the last ingestion run and stores
		every entry that is not archived yet.

		The sqlite store keeps entries in the configured database, running
		migrations first. The ndjson store appends them to a line-delimited
		JSON document collection instead.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "store",
				Aliases: []string{"s"},
				Value:   storeSQLite,
				Usage:   "Archive backend: sqlite or ndjson",
				EnvVars: []string{"HEADLINES_STORE"},
			},
			&cli.StringFlag{
				Name:    "documents",
				Value:   "archive",
				Usage:   "Directory of the ndjson document store",
				EnvVars: []string{"HEADLINES_DOCUMENTS"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			entries, err := readEntryLog(cfg.LogPath)
			if err != nil {
				return err
			}

			var archived int
			switch store := ctx.String("store"); store {
			case storeSQLite:
				archived, err = archiveSQLite(ctx, cfg.ArchivePath, entries)
			case storeNDJSON:
				archived, err = archiveDocuments(ctx.String("documents"), entries)
			default:
				return fmt.Errorf("unknown store %q, expected %s or %s", store, storeSQLite, storeNDJSON)
			}
			if err != nil {
				return err
			}

			log.WithFields(log.Fields{
				"store":    ctx.String("store"),
				"logged":   len(entries),
				"archived": archived,
			}).Info("Archived entries")
			return nil
		},
	}
}

// readEntryLog loads the entry log through the document store. The log file
// is a collection named after the file.
func readEntryLog(path string) ([]models.Entry, error) {
	if filepath.Ext(path) != ".ndjson" {
		return nil, fmt.Errorf("entry log %q must have the .ndjson extension", path)
	}
	store, err := docdb.Open(filepath.Dir(path))
	if err != nil {
		return nil, err
	}

	docs, err := store.Read(strings.TrimSuffix(filepath.Base(path), ".ndjson"))
	if err != nil {
		return nil, fmt.Errorf("read entry log: %w", err)
	}

	entries := make([]models.Entry, 0, len(docs))
	for i, doc := range docs {
		entry, err := toEntry(doc)
		if err != nil {
			return nil, fmt.Errorf("entry log line %d: %w", i+1, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func toEntry(doc docdb.Document) (models.Entry, error) {
	var entry models.Entry
	data, err := json.Marshal(doc)
	if err != nil {
		return entry, err
	}
	err = json.Unmarshal(data, &entry)
	return entry, err
}

func archiveSQLite(ctx *cli.Context, path string, entries []models.Entry) (int, error) {
	if err := db.Migrate(path); err != nil {
		return 0, fmt.Errorf("migrate archive: %w", err)
	}
	archive, err := db.Open(path)
	if err != nil {
		return 0, err
	}
	defer archive.Close()

	return archive.Save(ctx.Context, entries)
}

func archiveDocuments(dir string, entries []models.Entry) (int, error) {
	store, err := docdb.Open(dir)
	if err != nil {
		return 0, err
	}

	archived := 0
	for _, entry := range entries {
		// Every run draws new UUIDs for the same articles
		written, err := store.Write(archiveCollection, entry, "uuid")
		if err != nil {
			return archived, err
		}
		if written {
			archived++
		}
	}
	return archived, nil
}

func recentCmd() *cli.Command {
	return &cli.Command{
		Name:  "recent",
		Usage: "Print the most recent archived entries",
		Description: `Prints the most recent entries of the SQLite archive, newest first,
as one JSON object per line.`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "count",
				Value: 20,
				Usage: "Number of entries to print",
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			archive, err := db.Open(cfg.ArchivePath)
			if err != nil {
				return err
			}
			defer archive.Close()

			entries, err := archive.Recent(ctx.Context, ctx.Int("count"))
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(ctx.App.Writer)
			encoder.SetEscapeHTML(false)
			for _, entry := range entries {
				if err := encoder.Encode(entry); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
