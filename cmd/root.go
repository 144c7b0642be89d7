package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "headlines",
		Usage: "A news page built from RSS and Atom feeds",
		Description: `Fetches a configured list of RSS and Atom feeds, strips markup from
		the entry summaries and shows the most recent entries on a web page.

		Every ingestion run rewrites a line-delimited JSON log holding all
		fetched entries. The log can be archived to SQLite or to a plain
		document store.

		Flags can generally be set via environment variables, e.g.:

		--config => HEADLINES_CONFIG=config/headlines.toml
		--port => HEADLINES_PORT=3000
		`,
		Flags: globalFlags(),
		Before: func(ctx *cli.Context) error {
			return setupLogging(ctx.String("log-level"), ctx.String("log-format"))
		},
		Commands: []*cli.Command{
			serveCmd(),
			ingestCmd(),
			archiveCmd(),
			recentCmd(),
			migrateCmd(),
			rollbackCmd(),
			tidyCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return cli.ShowAppHelp(ctx)
		},
	}
}

// Execute runs the command line application and exits non-zero on failure
func Execute() {
	// A missing .env file is fine, the environment may be set elsewhere
	_ = godotenv.Load()

	if err := RootApp().Run(os.Args); err != nil {
		log.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}

func setupLogging(level string, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)

	switch strings.ToLower(format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}
