// Package cmd defines the stormdesk CLI.
package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tbayops/stormdesk/internal/config"
	"github.com/tbayops/stormdesk/internal/observability"
	"go.uber.org/zap"
)

var cfgFile string

// NewRootCommand constructs a fresh command tree.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "stormdesk",
		Short:   "Stormdesk is an emergency coordination service.",
		Version: Version,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	rootCmd.AddCommand(newServeCommand())
	return rootCmd
}

// Execute runs the CLI under the given context.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// loadConfig reads the config file and environment, then initializes the
// process-wide logger.
func loadConfig() (*config.Config, error) {
	v := viper.New()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("STORMDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars apply.
	}

	cfg, err := config.NewConfigFromViper(v)
	if err != nil {
		observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "stormdesk"})
		return nil, err
	}

	observability.InitializeLogger(cfg.Logger)
	observability.GetLogger().Info("Starting stormdesk", zap.String("version", Version))
	return cfg, nil
}
