package main

import (
	"log/slog"

	"github.com/goliatone/go-credentials/config"
	"github.com/goliatone/go-credentials/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const serviceName = "credentialsd"

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the credentials service.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   serviceName,
		Short: "Credential registration, activation and login service",
		Long: `credentialsd stores login credentials for existing accounts, sends
activation links by email and issues bearer tokens once an account is active.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

// databaseFlags mirror the database.* config keys
func databaseFlags(fs *pflag.FlagSet) {
	fs.String("database.driver", "", "database driver (sqlite or postgres)")
	fs.String("database.dsn", "", "database connection string")
}

func logFlags(fs *pflag.FlagSet) {
	fs.String("log.level", "", "log level (debug, info, warn, error)")
	fs.String("log.format", "", "log format (json or text)")
}

func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}

	logger := logging.New(logging.Options{
		Service: serviceName,
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Writer:  cmd.ErrOrStderr(),
	})

	return cfg, logger, nil
}
