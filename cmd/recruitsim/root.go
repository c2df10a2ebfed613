package main

import (
	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "recruitsim",
	Short: "Patria Grande recruitment simulation",
	Long: `recruitsim drives the settlement recruitment core of Patria Grande.

Available commands:
  serve      Run the tick engine and the HTTP API
  scenario   Replay the recruitment walkthrough headless and print the results`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file loaded before the environment is parsed")
}
