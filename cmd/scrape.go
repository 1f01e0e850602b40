package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/eventscope/internal/model"
	"github.com/sells-group/eventscope/internal/resilience"
)

var scrapeSkipIndex bool

var scrapeCmd = &cobra.Command{
	Use:   "scrape <url>",
	Short: "Scrape one event URL, store it, and index it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		url := args[0]

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		scraper, err := env.Registry.For(url)
		if err != nil {
			return err
		}

		retryCfg := resilience.FixedDelay(cfg.Scrape.MaxRetries, cfg.Scrape.RetryDelay)
		retryCfg.OnRetry = resilience.RetryLogger(scraper.Platform(), "scrape")
		event, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*model.Event, error) {
			return scraper.Scrape(ctx, url)
		})
		if err != nil {
			return eris.Wrapf(err, "scrape %s", url)
		}

		stored, err := env.Store.CreateEvent(ctx, *event)
		if err != nil {
			return eris.Wrap(err, "store event")
		}

		if env.Pipeline != nil && !scrapeSkipIndex {
			if err := env.Pipeline.IngestEvent(ctx, stored); err != nil {
				zap.L().Warn("event stored but not indexed", zap.Error(err))
			} else if err := env.Store.MarkEventIndexed(ctx, stored.ID); err != nil {
				return eris.Wrap(err, "mark indexed")
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stored)
	},
}

func init() {
	scrapeCmd.Flags().BoolVar(&scrapeSkipIndex, "skip-index", false, "store the event without indexing it")
	rootCmd.AddCommand(scrapeCmd)
}
