// Package main is the entry point for the mi-webhook CLI.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielfernandez00/mi-webhook/internal/config"
	"github.com/danielfernandez00/mi-webhook/internal/core"
	"github.com/danielfernandez00/mi-webhook/pkg/app"

	// Compiled-in modules.
	_ "github.com/danielfernandez00/mi-webhook/internal/fulfillment"
	_ "github.com/danielfernandez00/mi-webhook/internal/gateway"
	_ "github.com/danielfernandez00/mi-webhook/modules/memory/sqlite"
	_ "github.com/danielfernandez00/mi-webhook/modules/provider/openai_compatible"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mi-webhook",
		Short:         "Dialogflow fulfillment webhook backed by an OpenAI-compatible model",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), startCmd(), configCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mi-webhook %s (commit: %s, built: %s)\n", version, commit, date)
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, mod := range core.GetModules() {
				fmt.Fprintf(out, "  %s\n", mod.ID)
			}
		},
	}
}

func startCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the webhook with all configured modules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			envFile, _ := cmd.Flags().GetString("env-file")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			return app.Run(app.RunParams{
				ConfigPath: cfgPath,
				EnvFile:    envFile,
				DataDir:    dataDir,
				Version:    version,
				Commit:     commit,
				Date:       date,
			})
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	cmd.Flags().String("env-file", ".env", "Dotenv file loaded before the configuration")
	cmd.Flags().String("data-dir", "", "Override the persistent data directory")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration and provision every module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkConfig(cmd.OutOrStdout(), args[0])
		},
	})
	return cmd
}

// checkConfig loads and provisions every configured module without
// starting any of them. Module data goes to a scratch directory.
func checkConfig(out io.Writer, path string) error {
	cfg, err := app.LoadConfig(path)
	if err != nil {
		return err
	}

	scratch, err := os.MkdirTemp("", "mi-webhook-check-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(scratch) }()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	appCtx := core.NewAppContext(logger, scratch).WithModuleConfigs(cfg.Modules)

	application := core.NewApp(appCtx)
	ids := config.Resolve(cfg)
	if err := application.LoadModules(ids); err != nil {
		return err
	}

	fmt.Fprintf(out, "Configuration OK (%d modules)\n", len(ids))
	for _, id := range ids {
		fmt.Fprintf(out, "  %s\n", id)
	}
	return nil
}
