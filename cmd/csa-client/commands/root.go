package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "csa-client",
	Short: "Play shogi on CSA protocol servers with a USI engine",
	Long: `csa-client connects to a CSA protocol shogi server (Floodgate style),
plays the configured number of games with a USI engine and an optional
opening book, and records every finished game as a CSV row and a CSA file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command. Errors are returned unprinted.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

func SetVersionInfo(v, c, d string) {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}
