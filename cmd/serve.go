package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"headlines/server"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the news page",
		Description: `Starts the headlines HTTP server.

		The home page shows a static message. Every request to the feed page
		runs a full ingestion of the configured feeds and renders the most
		recent entries. The same result is available as JSON on /feed.json.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "hostname",
				Aliases: []string{"n"},
				Usage:   "The hostname the server listens on",
				EnvVars: []string{"HEADLINES_HOSTNAME"},
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   3000,
				Usage:   "Port to listen on",
				EnvVars: []string{"HEADLINES_PORT"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			pipeline, err := newPipeline(cfg)
			if err != nil {
				return err
			}

			app := server.Server(&server.ServerConfig{
				Ingester: pipeline,
				Sources:  cfg.Feeds,
				Limit:    cfg.Limit,
				Home:     cfg.Home,
			})

			// Graceful shutdown
			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigs)

			go func() {
				<-sigs
				log.Info("Gracefully shutting down...")
				if err := app.ShutdownWithTimeout(60 * time.Second); err != nil {
					log.WithError(err).Error("Shutdown failed")
				}
			}()

			address := fmt.Sprintf("%s:%d", ctx.String("hostname"), ctx.Int("port"))
			log.WithFields(log.Fields{
				"address": address,
				"feeds":   len(cfg.Feeds),
			}).Info("Starting server")

			if err := app.Listen(address); err != nil {
				return err
			}
			log.Info("Done!")
			return nil
		},
	}
}
