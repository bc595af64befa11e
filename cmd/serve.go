/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"varsle/config"
	"varsle/db"
	"varsle/feed"
	"varsle/notify"
	"varsle/scheduler"
	"varsle/server"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the varsle notifier",
		Description: `Starts the varsle scheduler and HTTP server.

		Launches the HTTP server on the specified or default port and starts
		the poll loop. On every tick the configured servers and channels are
		reconciled into the SQLite database, every registered feed is fetched,
		and channels are notified about entries not delivered before.`,
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
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the HTTP server, overrides the config file",
				EnvVars: []string{"VARSLE_PORT"},
			},
		},
		Action: func(ctx *cli.Context) error {
			fmt.Println("Starting varsle...")

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

			port := cfg.Port
			if ctx.Int("port") != 0 {
				port = ctx.Int("port")
			}
			if port == 0 {
				port = 8080
			}

			if err := db.Migrate(database); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}

			store, err := db.NewDB(database)
			if err != nil {
				return err
			}
			defer store.Close()

			parser := feed.NewParser()
			notifier := notify.NewWebhook(cfg.WebhookURLs(), cfg.Colors())

			sched := scheduler.New(
				store,
				store,
				parser,
				notifier,
				cfg.Directory(),
				cfg.TickInterval(),
				cfg.Workers,
			)

			app := server.Server(&server.ServerConfig{
				DB:               store,
				SchedulerRunning: sched.IsRunning,
			})

			// Graceful shutdown
			c := make(chan os.Signal, 1)
			signal.Notify(c, os.Interrupt, syscall.SIGTERM)
			var wg sync.WaitGroup

			go func() {
				<-c
				fmt.Println("Gracefully shutting down...")
				app.ShutdownWithTimeout(60 * time.Second)
				defer wg.Add(-2) // Decrement the waitgroup counter by 2 after shutdown of server and scheduler
				sched.Stop()
			}()

			sched.Start(ctx.Context)

			go func() {
				fmt.Println("Starting server...")
				if err := app.Listen(fmt.Sprintf(":%d", port)); err != nil {
					log.Panic(err)
				}
			}()

			// Wait for both the server and scheduler to shutdown
			wg.Add(2)
			wg.Wait()

			fmt.Println("Done!")
			return nil
		},
	}
}
