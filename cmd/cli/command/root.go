package command

// root.go defines the root command for the accounthub CLI.
// set up the global flags here.

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var apiURL string // Global flag for API server URL

// newRootCmd builds the base command with every subcommand attached.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "accounthub",
		Short: "accounthub - account management from the command line",
		Long: `accounthub talks to the account API. It can:
- Register a new account
- Log in and keep tokens in the OS keyring
- Show and update the logged in account

Use "accounthub command --help" to see all available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flags = available to all subcommands
	defaultAPI := os.Getenv("ACCOUNTHUB_API")
	if defaultAPI == "" {
		defaultAPI = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", defaultAPI, "API server URL")

	rootCmd.AddCommand(newAccountCmd())
	return rootCmd
}

// Execute builds the command tree and runs it.
// This is called by main.main().
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "✗", err) // Print error to standard error
		os.Exit(1)
	}
}
