package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var version = "dev"

type globals struct {
	server string
	room   string
	name   string
	token  string
}

func main() {
	g := &globals{}
	rootCmd := &cobra.Command{
		Use:   "venuectl",
		Short: "Command line client for the venue room server",
		Long: `venuectl talks to a running venue server.

It can list rooms, log in as host, follow a room's live events
and post chat messages.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&g.server, "server", envOr("VENUE_SERVER", "http://localhost:8080"), "server base URL")
	rootCmd.PersistentFlags().StringVarP(&g.room, "room", "r", "main", "room name")
	rootCmd.PersistentFlags().StringVarP(&g.name, "name", "n", "", "display name")
	rootCmd.PersistentFlags().StringVar(&g.token, "token", os.Getenv("VENUE_HOST_TOKEN"), "host token")

	rootCmd.AddCommand(
		roomsCmd(g),
		loginCmd(g),
		hashCmd(),
		watchCmd(g),
		chatCmd(g),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
