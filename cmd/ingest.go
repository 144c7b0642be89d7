package cmd

import (
	"encoding/json"

	"github.com/urfave/cli/v2"
)

func ingestCmd() *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Run one ingestion and print the most recent entries",
		Description: `Fetches every configured feed once and prints the most recent
entries, newest first.

Returns each entry as a JSON object on a single line. Use a tool like jq to
process the output. The full entry log is written to the configured log path.

Prints all other log messages to stderr.`,
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			pipeline, err := newPipeline(cfg)
			if err != nil {
				return err
			}

			_, entries, err := pipeline.Ingest(ctx.Context, cfg.Feeds, cfg.Limit)
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
