/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"varsle/db"

	"github.com/urfave/cli/v2"
)

func tidyCmd() *cli.Command {
	return &cli.Command{
		Name:  "tidy",
		Usage: "Tidy up the database",
		Description: `Tidy up the database by removing delivery records that are old.

		Remove delivery records that are older than 90 days from the database.
		This is to keep the database size down; delivered entries that far back
		no longer appear in their feeds, so removing them cannot cause a
		duplicate notification.

		With --channel or --feed the command instead purges all delivery
		records scoped to that channel or feed registration; --channel also
		deactivates the channel's feed rows, keeping the registration history
		around for later reactivation.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database",
				Aliases: []string{"d"},
				Value:   "varsle.db",
				Usage:   "SQLite database file location",
				EnvVars: []string{"VARSLE_DATABASE"},
			},
			&cli.StringFlag{
				Name:  "channel",
				Usage: "Purge all delivery records and feed rows for this channel id",
			},
			&cli.StringFlag{
				Name:  "feed",
				Usage: "Purge delivery records for this feed identity (requires --channel)",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Purge every delivery record regardless of age",
			},
		},
		Action: func(ctx *cli.Context) error {
			database := ctx.String("database")
			fmt.Println("Database configured: ", database)

			channel := ctx.String("channel")
			feed := ctx.String("feed")

			if ctx.Bool("all") {
				store, err := db.NewDB(database)
				if err != nil {
					return err
				}
				defer store.Close()

				deleted, err := store.PurgeEntries(ctx.Context)
				if err != nil {
					return err
				}
				fmt.Printf("Deleted %d delivery records\n", deleted)
				return nil
			}

			if feed != "" {
				if channel == "" {
					return fmt.Errorf("--feed requires --channel")
				}
				store, err := db.NewDB(database)
				if err != nil {
					return err
				}
				defer store.Close()

				deleted, err := store.DeleteEntriesByFeed(ctx.Context, feed, channel)
				if err != nil {
					return err
				}
				fmt.Printf("Deleted %d delivery records\n", deleted)
				return nil
			}

			if channel != "" {
				store, err := db.NewDB(database)
				if err != nil {
					return err
				}
				defer store.Close()

				entries, err := store.DeleteEntriesByChannel(ctx.Context, channel)
				if err != nil {
					return err
				}
				feeds, err := store.SoftDeleteFeedsByChannel(ctx.Context, channel)
				if err != nil {
					return err
				}
				fmt.Printf("Deleted %d delivery records and deactivated %d feeds\n", entries, feeds)
				return nil
			}

			deleted, err := db.Tidy(database)
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d delivery records\n", deleted)
			return nil
		},
	}
}
