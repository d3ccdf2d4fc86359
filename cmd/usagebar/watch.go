package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/usagebar/internal/app"
	"github.com/ternarybob/usagebar/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show live usage in the terminal",
	Long:  `Runs the usage monitor in-process and shows the quota windows with reset countdowns. Press r to refresh and q to quit.`,
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	application, err := app.New(config, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	if err := application.MonitorService.Start(); err != nil {
		return fmt.Errorf("failed to start monitor: %w", err)
	}

	return tui.Run(application.MonitorService, time.Second)
}
