// Package scan implements the tamper scan command.
package scan

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gojosatorou999/jalscan-sih/internal/analysis"
	"github.com/gojosatorou999/jalscan-sih/internal/conf"
)

// Command creates the scan command for batch tamper analysis.
func Command(settings *conf.Settings) *cobra.Command {
	var siteID string
	var window time.Duration

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Score recent readings for tampering",
		Long:  "Run the tamper rules over every reading submitted within the window, persist the detections and print a per-site summary as JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.ScanTamper(cmd.Context(), settings, siteID, window)
		},
	}

	cmd.Flags().StringVar(&siteID, "site", "", "Site ID to scan (empty for all active sites)")
	cmd.Flags().DurationVar(&window, "window", 24*time.Hour, "How far back to scan readings")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		fmt.Printf("error binding flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}
