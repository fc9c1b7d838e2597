// Command bedrud is a terminal client for a Bedrud meeting server.
//
// It keeps the session in two places: the runtime directory (until reboot) and, when
// --remember is given, the durable tier (a file under the user config directory or
// Redis). Every command restores that session and refreshes it when needed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
	appName = "bedrud"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Bedrud meeting client",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `bedrud talks to the Bedrud REST API: it signs in, keeps the session
tokens fresh and calls the room and admin endpoints.

Configuration is read from --config, CONFIG_PATH, ./bedrud.yaml or BEDRUD_* variables.`,
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVarP(&a.output, "output", "o", "yaml", "Output format (yaml, json)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override the configured log level")

	cmd.AddCommand(
		loginCmd(a),
		registerCmd(a),
		oauthCmd(a),
		logoutCmd(a),
		tokenCmd(a),
		whoamiCmd(a),
		statusCmd(a),
		roomsCmd(a),
		adminCmd(a),
		loadtestCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)

	return cmd
}
