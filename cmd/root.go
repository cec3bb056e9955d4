package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gojosatorou999/jalscan-sih/cmd/assess"
	"github.com/gojosatorou999/jalscan-sih/cmd/realtime"
	"github.com/gojosatorou999/jalscan-sih/cmd/scan"
	"github.com/gojosatorou999/jalscan-sih/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "jalscan",
		Short: "JalScan flood risk inference engine",
	}

	setupFlags(rootCmd, settings)

	subcommands := []*cobra.Command{
		assess.Command(settings),
		realtime.Command(settings),
		scan.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags configures the global flags shared by every subcommand.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Risk.ArtifactPath, "model", viper.GetString("risk.artifactpath"), "Path to the model artifact (empty for the embedded default)")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		cobra.CheckErr(err)
	}
}
