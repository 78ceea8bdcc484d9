package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:     "castellan",
	Short:   "Security-assistant chat service",
	Version: version,
	Long: `castellan relays chat messages to a conversational AI backend and
fans proactive security alerts out to active conversations.`,
}

func main() {
	// A local .env is optional; real deployments use the environment.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.AddCommand(serveCmd, stopCmd, statusCmd, alertCmd, notifyCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
