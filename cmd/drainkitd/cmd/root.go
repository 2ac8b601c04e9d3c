package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "drainkitd",
	Short: "HTTP job server with orchestrator-aware graceful termination",
	Long: `drainkitd serves an HTTP job API backed by a worker pool and shuts
down the way container orchestrators expect: on SIGTERM it stops
accepting connections immediately, drains in-flight work within a
graceful timeout, then forcefully interrupts whatever is left within a
second, shorter timeout.`,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the program using cobra.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
