package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ternarybob/usagebar/internal/app"
	"github.com/ternarybob/usagebar/internal/services/credentials"
	"github.com/ternarybob/usagebar/internal/services/curl"
)

const maxCurlInput = 256 * 1024

var setCurlVerify bool

var setCurlCmd = &cobra.Command{
	Use:   "set-curl [file]",
	Short: "Save credentials from a copied curl command",
	Long: `Parses a "Copy as cURL" command for the usage request and saves its cookies,
organization id and headers. The command is read from the file argument, or
from stdin when no file is given or the file is "-".`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSetCurl,
}

func init() {
	setCurlCmd.Flags().BoolVar(&setCurlVerify, "verify", false, "Fetch usage once with the saved credentials")
}

func runSetCurl(cmd *cobra.Command, args []string) error {
	raw, err := readCurlInput(cmd, args)
	if err != nil {
		return err
	}

	store := credentials.NewFileStore(config.Storage.CredentialsPath, logger)
	settings := credentials.NewService(curl.NewParser(config.Browser.CookieDomain), store, logger)

	result := settings.SaveCurlSettings(raw)
	if !result.Success {
		return errors.New(result.Error)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Credentials saved to %s\n", store.Path())

	if !setCurlVerify {
		return nil
	}

	bundle, ok := store.Load()
	if !ok {
		return credentials.ErrConfigMissing
	}

	ctx, cancel := contextWithFetchTimeout(cmd)
	defer cancel()

	usage := newFetcher(app.FetcherConfig(config))
	snap, err := usage.Fetch(ctx, bundle)
	if err != nil {
		return fmt.Errorf("credentials saved but the usage fetch failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Verified: %s\n", summarize(snap))
	return nil
}

func readCurlInput(cmd *cobra.Command, args []string) (string, error) {
	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to open curl command file: %w", err)
		}
		defer f.Close()
		in = f
	}

	data, err := io.ReadAll(io.LimitReader(in, maxCurlInput+1))
	if err != nil {
		return "", fmt.Errorf("failed to read curl command: %w", err)
	}
	if len(data) > maxCurlInput {
		return "", fmt.Errorf("curl command exceeds %d bytes", maxCurlInput)
	}
	return string(data), nil
}
