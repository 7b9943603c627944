package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"frequency/config"
)

var rootCmd = &cobra.Command{
	Use:   "frequency",
	Short: "Shortwave radio narrative game server",
	Long: `frequency serves a simulated shortwave band over a websocket.

Players tune and scan the dial, talk to characters over push-to-talk and
decode signals. Without MONGODB_URI the server runs in demo mode on an
in-memory store seeded from the built-in catalog.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.Load()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, seedCmd, voicesCmd, morseCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
