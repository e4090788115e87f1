// Package cli implements the consolectl command line.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/pulsarconsole/internal/app"
)

var (
	flagAPIURL    string
	flagWSURL     string
	flagStore     string
	flagDatabase  string
	flagRedisAddr string
	flagProfile   string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	application *app.Application
)

// NewRootCmd creates the root cobra command for the consolectl CLI.
func NewRootCmd() *cobra.Command {
	cfg := app.LoadConfig()

	root := &cobra.Command{
		Use:   "consolectl",
		Short: "Pulsar console session client",
		Long:  "consolectl logs in to a Pulsar console backend, manages the session and follows its realtime change feed.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flagDebug {
				flagLogLevel = "debug"
			}

			cfg.APIURL = flagAPIURL
			cfg.WSURL = flagWSURL
			if cfg.WSURL == "" {
				cfg.WSURL = app.DeriveWSURL(cfg.APIURL)
			}
			cfg.CredentialStore = flagStore
			cfg.DatabaseFile = flagDatabase
			cfg.RedisAddr = flagRedisAddr
			cfg.Profile = flagProfile
			cfg.LogLevel = flagLogLevel
			cfg.LogFormat = flagLogFormat

			a, err := app.New(cmd.Context(), cfg, app.WithLogOutput(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			a.Start(cmd.Context())
			application = a
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return closeApplication()
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagAPIURL, "api-url", cfg.APIURL, "Console API base URL (or CONSOLE_API_URL env)")
	root.PersistentFlags().StringVar(&flagWSURL, "ws-url", os.Getenv("CONSOLE_WS_URL"), "Realtime endpoint, derived from --api-url when empty (or CONSOLE_WS_URL env)")
	root.PersistentFlags().StringVar(&flagStore, "store", cfg.CredentialStore, "Credential store: sqlite, redis or memory (or CONSOLE_CREDENTIAL_STORE env)")
	root.PersistentFlags().StringVar(&flagDatabase, "db", cfg.DatabaseFile, "SQLite credential file (or CONSOLE_DATABASE_FILE env)")
	root.PersistentFlags().StringVar(&flagRedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for the redis store (or CONSOLE_REDIS_ADDR env)")
	root.PersistentFlags().StringVar(&flagProfile, "profile", cfg.Profile, "Credential namespace in shared stores (or CONSOLE_PROFILE env)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")

	root.AddCommand(
		newLoginCmd(),
		newCallbackCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newSessionsCmd(),
		newCanCmd(),
		newGetCmd(),
		newWatchCmd(),
	)

	return root
}

// Execute runs the root command. The application is closed even when a
// command fails, since cobra skips post-run hooks on error.
func Execute(ctx context.Context) error {
	err := NewRootCmd().ExecuteContext(ctx)
	if cerr := closeApplication(); err == nil {
		err = cerr
	}
	return err
}

func closeApplication() error {
	if application == nil {
		return nil
	}
	err := application.Close()
	application = nil
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}
