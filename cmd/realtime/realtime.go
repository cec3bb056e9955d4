// Package realtime implements the continuous evaluation command.
package realtime

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gojosatorou999/jalscan-sih/internal/analysis"
	"github.com/gojosatorou999/jalscan-sih/internal/conf"
)

// Command creates a new command for continuous risk evaluation.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realtime",
		Short: "Evaluate flood risk continuously",
		Long:  "Start evaluating every active site on the configured interval, publishing verdicts and anomaly events as they are produced.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.Realtime(cmd.Context(), settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the realtime command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().IntVar(&settings.Realtime.Interval, "interval", viper.GetInt("realtime.interval"), "Evaluation interval in seconds")
	cmd.Flags().BoolVar(&settings.Realtime.MQTT.Enabled, "mqtt", viper.GetBool("realtime.mqtt.enabled"), "Publish verdicts and events over MQTT")
	cmd.Flags().StringVar(&settings.Realtime.MQTT.Broker, "broker", viper.GetString("realtime.mqtt.broker"), "MQTT broker URL (tcp://host:port)")
	cmd.Flags().BoolVar(&settings.Realtime.Telemetry.Enabled, "telemetry", viper.GetBool("realtime.telemetry.enabled"), "Enable Prometheus telemetry endpoint")
	cmd.Flags().StringVar(&settings.Realtime.Telemetry.Listen, "listen", viper.GetString("realtime.telemetry.listen"), "Listen address and port of telemetry endpoint")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}
	return nil
}
