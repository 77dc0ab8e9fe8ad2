package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pallav-m/surya-isolation/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "surya-isolation",
	Short: "Document understanding service and CLI",
	Long: `surya-isolation exposes four document understanding tasks (text
detection, text recognition, layout analysis, table structure recognition)
over HTTP and as a batch CLI.

The models behind the tasks are opaque predictors; this tool handles the
plumbing: image loading, task dispatch, result serialization and the
service endpoints.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
