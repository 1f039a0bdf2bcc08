package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "serverlist",
	Short: "serverlist - registry of peer game servers",
	Long: `serverlist keeps named connection records for peer game servers,
polls their status and exposes add/rm/ls over HTTP and the command line.

Configuration is read from SERVERLIST_* environment variables.`,
	Example: `  # Run the HTTP surface and the status poller
  serverlist serve

  # Manage the list directly against the configured backend
  serverlist servers add lobby 10.0.0.5 19133 --rcon-port=19134 # main lobby
  serverlist servers ls
  serverlist srv rm lobby`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(serversCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
