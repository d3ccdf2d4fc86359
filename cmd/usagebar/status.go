package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/usagebar/internal/services/credentials"
	"github.com/ternarybob/usagebar/internal/services/presentation"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the saved credential summary",
	Long:  `Prints where credentials are stored and which cookies and headers they carry. Values are never printed.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	store := credentials.NewFileStore(config.Storage.CredentialsPath, logger)

	fmt.Fprintf(out, "Credentials:  %s\n", store.Path())

	bundle, ok := store.Load()
	if !ok {
		if store.Exists() {
			fmt.Fprintln(out, "Status:       invalid (run `usagebar set-curl` again)")
		} else {
			fmt.Fprintln(out, "Status:       not configured (run `usagebar set-curl`)")
		}
		return nil
	}

	fmt.Fprintln(out, "Status:       configured")
	fmt.Fprintf(out, "Organization: %s\n", bundle.OrganizationID)
	fmt.Fprintf(out, "Cookies:      %s\n", strings.Join(bundle.CookieNames(), ", "))
	if names := bundle.HeaderNames(); len(names) > 0 {
		fmt.Fprintf(out, "Headers:      %s\n", strings.Join(names, ", "))
	}
	if !bundle.UpdatedAt.IsZero() {
		fmt.Fprintf(out, "Saved:        %s\n", bundle.UpdatedAt.Local().Format(time.RFC1123))
	}
	fmt.Fprintf(out, "Schedule:     %s\n", config.Scheduler.Interval)
	fmt.Fprintf(out, "Endpoint:     %s/api/organizations/%s/usage\n",
		strings.TrimRight(config.Browser.BaseURL, "/"), bundle.OrganizationID)
	fmt.Fprintf(out, "Last fetch:   %s\n", lastFetch(cmd.Context()))

	return nil
}

// lastFetch reads the newest history record, when history is available
func lastFetch(ctx context.Context) string {
	history, closeHistory, err := openHistory()
	if err != nil || history == nil {
		return "N/A"
	}
	defer closeHistory()

	records, err := history.List(ctx, 1)
	if err != nil || len(records) == 0 {
		return "N/A"
	}
	r := records[0]
	return fmt.Sprintf("%s (5h %s, 7d %s)",
		presentation.FormatTime(r.FetchedAt),
		presentation.FormatPercent(r.FiveHour),
		presentation.FormatPercent(r.SevenDay))
}
