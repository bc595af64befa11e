/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"varsle/analyze"
	"varsle/config"
	"varsle/feed"

	"github.com/urfave/cli/v2"
)

func analyzeCmd() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Generate a digest of a feed's recent entries",
		ArgsUsage: "<url>",
		Description: `Fetches a feed and generates a readable digest of its most
		recent entries using the configured model.

		The url may be a feed address or a page address advertising one, as
		with feeds add. The feed is only read; nothing is registered or
		recorded. The digest is printed to stdout and generation failures are
		folded into the output text, so the command always produces something
		postable.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config/varsle.toml",
				Usage:   "Path to the configuration file",
				EnvVars: []string{"VARSLE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "API key for the generation model",
				EnvVars: []string{"GEMINI_API_KEY"},
			},
		},
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 1 {
				return errors.New("expected exactly one feed url argument")
			}

			cfg, err := config.LoadConfig(ctx.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			template, err := cfg.PromptTemplate()
			if err != nil {
				return err
			}

			addr := feed.NormalizeURL(ctx.Args().First())
			parser := feed.NewParser()

			_, entries, err := parser.Fetch(ctx.Context, addr)
			if err != nil {
				// Maybe a page address, look for an advertised feed link
				client := &http.Client{Timeout: 30 * time.Second}
				discovered, derr := feed.DiscoverFeedURL(ctx.Context, client, addr)
				if derr != nil {
					return fmt.Errorf("could not fetch feed at %s: %w", addr, err)
				}
				_, entries, err = parser.Fetch(ctx.Context, discovered)
				if err != nil {
					return fmt.Errorf("could not fetch discovered feed at %s: %w", discovered, err)
				}
			}

			analyzer := analyze.NewAnalyzer(
				analyze.NewGemini(ctx.String("api-key"), cfg.Analysis.Model),
				template,
				cfg.Analysis.Entries,
			)

			fmt.Println(analyzer.Digest(ctx.Context, entries))
			return nil
		},
	}
}
