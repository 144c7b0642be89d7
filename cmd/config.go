package cmd

import (
	"errors"
	"os"

	"headlines/config"
	"headlines/feeds"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const defaultConfigPath = "config/headlines.toml"

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Value:   defaultConfigPath,
			Usage:   "Path to the TOML configuration file",
			EnvVars: []string{"HEADLINES_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level: trace, debug, info, warn or error",
			EnvVars: []string{"HEADLINES_LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format: text or json",
			EnvVars: []string{"HEADLINES_LOG_FORMAT"},
		},
		&cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"l"},
			Usage:   "Number of entries returned by an ingestion run",
			EnvVars: []string{"HEADLINES_LIMIT"},
		},
		&cli.StringFlag{
			Name:    "log-path",
			Usage:   "Where ingestion runs write their entry log",
			EnvVars: []string{"HEADLINES_LOG_PATH"},
		},
		&cli.StringFlag{
			Name:    "database",
			Aliases: []string{"d"},
			Usage:   "SQLite archive file location",
			EnvVars: []string{"HEADLINES_DATABASE"},
		},
		&cli.DurationFlag{
			Name:    "fetch-timeout",
			Usage:   "Upper bound for fetching a single feed",
			EnvVars: []string{"HEADLINES_FETCH_TIMEOUT"},
		},
		&cli.StringFlag{
			Name:    "user-agent",
			Usage:   "User-Agent header sent to feed servers",
			EnvVars: []string{"HEADLINES_USER_AGENT"},
		},
		&cli.StringFlag{
			Name:    "missing-published",
			Usage:   "How entries without a publication date are handled: error or earliest",
			EnvVars: []string{"HEADLINES_MISSING_PUBLISHED"},
		},
	}
}

// loadConfig reads the configuration file and applies flag overrides. The
// default file is optional, an explicitly given one is not.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	path := ctx.String("config")
	if !ctx.IsSet("config") {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			log.WithField("config", path).Debug("No configuration file, using defaults")
			path = ""
		}
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if ctx.IsSet("limit") {
		cfg.Limit = ctx.Int("limit")
	}
	if ctx.IsSet("log-path") {
		cfg.LogPath = ctx.String("log-path")
	}
	if ctx.IsSet("database") {
		cfg.ArchivePath = ctx.String("database")
	}
	if ctx.IsSet("fetch-timeout") {
		cfg.FetchTimeout = config.Duration{Duration: ctx.Duration("fetch-timeout")}
	}
	if ctx.IsSet("user-agent") {
		cfg.UserAgent = ctx.String("user-agent")
	}
	if ctx.IsSet("missing-published") {
		cfg.MissingPublished = ctx.String("missing-published")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"config":  path,
		"feeds":   len(cfg.Feeds),
		"limit":   cfg.Limit,
		"logPath": cfg.LogPath,
	}).Debug("Configuration loaded")

	return cfg, nil
}

func newPipeline(cfg *config.Config) (*feeds.Pipeline, error) {
	policy, err := feeds.ParseMissingDatePolicy(cfg.MissingPublished)
	if err != nil {
		return nil, err
	}

	parser := feeds.NewGofeedParser(nil, cfg.FetchTimeout.Duration, cfg.UserAgent)
	return feeds.NewPipeline(parser, feeds.FileLog(cfg.LogPath), feeds.Options{
		FetchTimeout: cfg.FetchTimeout.Duration,
		MissingDates: policy,
	}), nil
}
