/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"varsle/config"
	"varsle/db"
	"varsle/feed"
	"varsle/notify"
	"varsle/scheduler"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Log all fresh feed entries to the command line",
		Description: `Runs the poll loop without posting to webhooks and logs every
fresh entry to the command line instead.

Can be used if you want to collect new entries from your registered feeds
by passing the output to a file or another application.

Returns each notification as a JSON object on a single line. Use a tool like jq
to process the output.

Prints all other log messages to stderr.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config/varsle.toml",
				Usage:   "Path to the configuration file",
				EnvVars: []string{"VARSLE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "database",
				Aliases: []string{"d"},
				Usage:   "SQLite database file location, overrides the config file",
				EnvVars: []string{"VARSLE_DATABASE"},
			},
		},
		Action: func(ctx *cli.Context) error {
			// Disable logging to stdout
			log.SetOutput(os.Stderr)

			cfg, err := config.LoadConfig(ctx.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			database := cfg.Database
			if ctx.String("database") != "" {
				database = ctx.String("database")
			}
			if database == "" {
				database = "varsle.db"
			}

			if err := db.Migrate(database); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}

			store, err := db.NewDB(database)
			if err != nil {
				return err
			}
			defer store.Close()

			sched := scheduler.New(
				store,
				store,
				feed.NewParser(),
				notify.NewStream(os.Stdout),
				cfg.Directory(),
				cfg.TickInterval(),
				cfg.Workers,
			)

			fmt.Fprintln(os.Stderr, "Watching feeds...")
			sched.Start(ctx.Context)

			c := make(chan os.Signal, 1)
			signal.Notify(c, os.Interrupt, syscall.SIGTERM)
			<-c

			fmt.Fprintln(os.Stderr, "Stopping watch")
			sched.Stop()
			return nil
		},
	}
}
