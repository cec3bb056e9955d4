// Package assess implements the one-shot site evaluation command.
package assess

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gojosatorou999/jalscan-sih/internal/analysis"
	"github.com/gojosatorou999/jalscan-sih/internal/conf"
)

// Command creates the assess command for a single evaluation cycle.
func Command(settings *conf.Settings) *cobra.Command {
	var siteID string

	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Run one evaluation cycle",
		Long:  "Evaluate flood risk once for a single site or for every active site, print the results as JSON and exit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.AssessOnce(cmd.Context(), settings, siteID)
		},
	}

	cmd.Flags().StringVar(&siteID, "site", "", "Site ID to evaluate (empty for all active sites)")

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the assess command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().IntVar(&settings.Risk.HorizonHours, "horizon", viper.GetInt("risk.horizonhours"), "Forward-looking horizon of the verdict in hours")
	cmd.Flags().DurationVar(&settings.Risk.InferenceTimeout, "timeout", viper.GetDuration("risk.inferencetimeout"), "Classifier inference timeout")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}
	return nil
}
