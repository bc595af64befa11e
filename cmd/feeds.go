/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"varsle/db"
	"varsle/feed"
	"varsle/models"

	"github.com/cqroot/prompt"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
)

func feedsCmd() *cli.Command {
	return &cli.Command{
		Name:  "feeds",
		Usage: "Manage feed registrations",
		Description: `Manage the feeds registered for notification channels.

		Feeds are registered per channel: the same feed can be registered in
		several channels and each channel gets its own delivery history.`,
		Subcommands: []*cli.Command{
			feedsAddCmd(),
			feedsListCmd(),
			feedsRemoveCmd(),
		},
	}
}

func databaseFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "database",
		Aliases: []string{"d"},
		Value:   "varsle.db",
		Usage:   "SQLite database file location",
		EnvVars: []string{"VARSLE_DATABASE"},
	}
}

func feedsAddCmd() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Register a feed for a channel",
		ArgsUsage: "<url>",
		Description: `Registers a feed for a channel.

		The url may be a feed address or a page address: when the address does
		not parse as a feed, the page is fetched and its advertised RSS link
		is used instead. The feed is fetched once up front so broken addresses
		are rejected at registration time.`,
		Flags: []cli.Flag{
			databaseFlag(),
			&cli.StringFlag{
				Name:     "channel",
				Usage:    "Channel id to register the feed for",
				Required: true,
			},
		},
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 1 {
				return errors.New("expected exactly one feed url argument")
			}
			addr := feed.NormalizeURL(ctx.Args().First())
			channel := ctx.String("channel")

			parser := feed.NewParser()

			parsed, _, err := parser.Fetch(ctx.Context, addr)
			if err != nil {
				// Maybe a page address, look for an advertised feed link
				client := &http.Client{Timeout: 30 * time.Second}
				discovered, derr := feed.DiscoverFeedURL(ctx.Context, client, addr)
				if derr != nil {
					return fmt.Errorf("could not fetch feed at %s: %w", addr, err)
				}
				addr = discovered
				parsed, _, err = parser.Fetch(ctx.Context, addr)
				if err != nil {
					return fmt.Errorf("could not fetch discovered feed at %s: %w", addr, err)
				}
			}

			if err := db.Migrate(ctx.String("database")); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
			store, err := db.NewDB(ctx.String("database"))
			if err != nil {
				return err
			}
			defer store.Close()

			parsed.ChannelID = channel
			inserted, err := store.InsertFeed(ctx.Context, parsed)
			if err != nil {
				return err
			}

			if !inserted {
				// Reactivate if the registration existed but was removed
				if err := store.UpdateFeed(ctx.Context, parsed); err != nil {
					return err
				}
				fmt.Printf("Feed %q was already registered for channel %s\n", parsed.Title, channel)
				return nil
			}

			fmt.Printf("Registered feed %q for channel %s\n", parsed.Title, channel)
			return nil
		},
	}
}

func feedsListCmd() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List registered feeds",
		Flags: []cli.Flag{
			databaseFlag(),
			&cli.StringFlag{
				Name:  "channel",
				Usage: "Only list feeds for this channel id",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Include deactivated feeds",
			},
		},
		Action: func(ctx *cli.Context) error {
			store, err := db.NewDB(ctx.String("database"))
			if err != nil {
				return err
			}
			defer store.Close()

			onlyActive := !ctx.Bool("all")
			feeds, err := store.ListFeedsByChannel(ctx.Context, ctx.String("channel"), onlyActive)
			if err != nil {
				return err
			}

			if len(feeds) == 0 {
				fmt.Println("No feeds registered")
				return nil
			}

			for _, f := range feeds {
				status := "active"
				if !f.Active {
					status = "inactive"
				}
				fmt.Printf("%s\t%s\t%q\t%s\n", f.ChannelID, status, f.Title, f.AtomLink)
			}
			return nil
		},
	}
}

func feedsRemoveCmd() *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Usage:     "Remove a feed registration from a channel",
		ArgsUsage: "[feed identity]",
		Description: `Removes a feed registration from a channel.

		The feed row is deactivated rather than deleted, and the channel's
		delivery records for the feed are swept so a re-registration starts
		with a clean history. When no feed identity argument is given the
		channel's active feeds are listed for interactive selection.`,
		Flags: []cli.Flag{
			databaseFlag(),
			&cli.StringFlag{
				Name:     "channel",
				Usage:    "Channel id to remove the feed from",
				Required: true,
			},
		},
		Action: func(ctx *cli.Context) error {
			channel := ctx.String("channel")

			store, err := db.NewDB(ctx.String("database"))
			if err != nil {
				return err
			}
			defer store.Close()

			atomLink := ctx.Args().First()
			if atomLink == "" {
				feeds, err := store.ListFeedsByChannel(ctx.Context, channel, true)
				if err != nil {
					return err
				}
				if len(feeds) == 0 {
					fmt.Println("No feeds registered for channel", channel)
					return nil
				}

				choices := lo.Map(feeds, func(f models.Feed, _ int) string {
					return fmt.Sprintf("%s (%s)", f.Title, f.AtomLink)
				})
				choice, err := prompt.New().Ask("Remove which feed?").Choose(choices)
				if err != nil {
					return err
				}
				idx := lo.IndexOf(choices, choice)
				atomLink = feeds[idx].AtomLink
			}

			if err := store.SoftDeleteFeed(ctx.Context, atomLink, channel); err != nil {
				return err
			}
			deleted, err := store.DeleteEntriesByFeed(ctx.Context, atomLink, channel)
			if err != nil {
				return err
			}

			fmt.Printf("Removed feed %s from channel %s, swept %d delivery records\n", atomLink, channel, deleted)
			return nil
		},
	}
}
