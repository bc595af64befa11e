/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "varsle",
		Usage: "A feed notifier for chat channels",
		Description: `Varsle polls RSS and Atom feeds and notifies chat channels
		about new entries via webhooks.

		Feeds are registered per channel in an SQLite database. On every
		scheduler tick varsle fetches each registered feed, records entries
		it has not seen for that channel before, and posts a notification
		for each fresh entry. An entry is delivered at most once per channel.

		Flags can generally be set via environment variables, e.g.:

		--database => VARSLE_DATABASE=varsle.db
		--port => VARSLE_PORT=8080
		`,
		Commands: []*cli.Command{
			serveCmd(),
			watchCmd(),
			feedsCmd(),
			analyzeCmd(),
			migrateCmd(),
			rollbackCmd(),
			tidyCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
