package cmd

import (
	"time"

	"headlines/db"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func tidyCmd() *cli.Command {
	return &cli.Command{
		Name:  "tidy",
		Usage: "Tidy up the archive",
		Description: `Tidy up the archive by removing entries that are old.

		Removes entries published more than the given number of days ago.
		Entries without a publication date are kept.`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "days",
				Value:   90,
				Usage:   "Remove entries published more than this many days ago",
				EnvVars: []string{"HEADLINES_TIDY_DAYS"},
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

			cutoff := time.Now().AddDate(0, 0, -ctx.Int("days"))
			removed, err := archive.Tidy(ctx.Context, cutoff)
			if err != nil {
				return err
			}

			log.WithFields(log.Fields{
				"database": cfg.ArchivePath,
				"cutoff":   cutoff.Format(time.RFC3339),
				"removed":  removed,
			}).Info("Tidied archive")
			return nil
		},
	}
}
