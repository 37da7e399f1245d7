// Package cmd implements the lessonmate CLI using cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"
const logo = "🎹"

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "lessonmate",
	Short: logo + " lessonmate - assistant for a private music teacher",
	Long: logo + ` lessonmate - a personal assistant that answers questions about
stocks, lesson scheduling, payments, and anything else, by routing each
request to a specialised agent.`,
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version

	rootCmd.AddCommand(onboardCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(syncCmd)
}
