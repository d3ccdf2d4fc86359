package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ternarybob/usagebar/internal/app"
	"github.com/ternarybob/usagebar/internal/models"
	"github.com/ternarybob/usagebar/internal/services/credentials"
	"github.com/ternarybob/usagebar/internal/services/fetcher"
	"github.com/ternarybob/usagebar/internal/services/presentation"
)

var (
	fetchOut        string
	fetchHeadful    bool
	fetchScreenshot string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch usage once and print the raw document",
	Long: `Runs a single fetch with the saved credentials, outside the scheduler, and
prints the usage document as JSON. Useful for diagnosing challenge pages.`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOut, "out", "o", "", "Write the usage document to a file instead of stdout")
	fetchCmd.Flags().BoolVar(&fetchHeadful, "headful", false, "Show the browser window")
	fetchCmd.Flags().StringVar(&fetchScreenshot, "screenshot", "", "Save a PNG of the page when the fetch fails")
}

// newFetcher builds a standalone fetcher on the chromedp launcher
func newFetcher(cfg fetcher.Config) *fetcher.Service {
	return fetcher.NewService(cfg, nil, logger)
}

func runFetch(cmd *cobra.Command, args []string) error {
	store := credentials.NewFileStore(config.Storage.CredentialsPath, logger)
	bundle, ok := store.Load()
	if !ok {
		return credentials.ErrConfigMissing
	}

	cfg := app.FetcherConfig(config)
	cfg.ScreenshotPath = fetchScreenshot
	if fetchHeadful {
		cfg.Headless = false
	}

	ctx, cancel := contextWithFetchTimeout(cmd)
	defer cancel()

	snap, err := newFetcher(cfg).Fetch(ctx, bundle)
	if err != nil {
		return err
	}

	var pretty any
	if err := json.Unmarshal(snap.Raw(), &pretty); err != nil {
		return err
	}
	data, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}

	if fetchOut != "" {
		if err := os.WriteFile(fetchOut, append(data, '\n'), 0644); err != nil {
			return fmt.Errorf("failed to write usage document: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s written to %s\n", summarize(snap), fetchOut)
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func contextWithFetchTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), config.Scheduler.FetchTimeoutDuration())
}

func summarize(snap *models.UsageSnapshot) string {
	return presentation.Title(snap)
}
