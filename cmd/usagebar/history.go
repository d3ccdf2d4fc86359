package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/usagebar/internal/interfaces"
	"github.com/ternarybob/usagebar/internal/services/presentation"
	"github.com/ternarybob/usagebar/internal/storage/badger"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent successful fetches",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of records to show")
}

// openHistory opens the history database. history is nil when it is disabled.
func openHistory() (interfaces.HistoryStorage, func(), error) {
	if !config.Storage.History.Enabled {
		return nil, func() {}, nil
	}
	manager, err := badger.NewManager(logger, &config.Storage.History)
	if err != nil {
		return nil, func() {}, err
	}
	return manager.HistoryStorage(), func() {
		if err := manager.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close history database")
		}
	}, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	history, closeHistory, err := openHistory()
	if err != nil {
		return fmt.Errorf("history unavailable (is `usagebar serve` running?): %w", err)
	}
	if history == nil {
		return errors.New("history is disabled in the configuration")
	}
	defer closeHistory()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	records, err := history.List(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No history recorded yet")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FETCHED\t5-HOUR\t7-DAY\tOPUS (7-DAY)")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			r.FetchedAt.Local().Format("2006-01-02 15:04:05"),
			presentation.FormatPercent(r.FiveHour),
			presentation.FormatPercent(r.SevenDay),
			presentation.FormatPercent(r.SevenDayOpus))
	}
	return w.Flush()
}
