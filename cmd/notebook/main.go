package main

import (
	"errors"
	"os"

	"github.com/MarcoPoloResearchLab/notebook/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// cli carries the state shared by every subcommand.
type cli struct {
	viper   *viper.Viper
	cfgFile string
}

func newRootCommand() *cobra.Command {
	app := &cli{viper: config.NewViper()}

	rootCmd := &cobra.Command{
		Use:           "notebook",
		Short:         "Local notebook with tabs, notes and cross-window sync",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.initConfig()
		},
	}

	app.setupFlags(rootCmd)
	rootCmd.AddCommand(
		app.newTabsCommand(),
		app.newNotesCommand(),
		app.newSelectCommand(),
		app.newExportCommand(),
		app.newWatchCommand(),
	)
	return rootCmd
}

func (a *cli) setupFlags(cmd *cobra.Command) {
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("database-path", defaults.GetString(config.KeyDatabasePath), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString(config.KeyLogLevel), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().Duration("poll-interval", defaults.GetDuration(config.KeyPollInterval), "Interval between external change checks")
	cmd.PersistentFlags().Duration("persist-delay", defaults.GetDuration(config.KeyPersistDelay), "Debounce applied to persistence (0 persists immediately)")
	cmd.PersistentFlags().Duration("autosave-delay", defaults.GetDuration(config.KeyAutosaveDelay), "Quiet period before editor changes are committed")

	a.bindFlag(cmd, config.KeyDatabasePath, "database-path")
	a.bindFlag(cmd, config.KeyLogLevel, "log-level")
	a.bindFlag(cmd, config.KeyPollInterval, "poll-interval")
	a.bindFlag(cmd, config.KeyPersistDelay, "persist-delay")
	a.bindFlag(cmd, config.KeyAutosaveDelay, "autosave-delay")
}

func (a *cli) bindFlag(cmd *cobra.Command, key, flag string) {
	if err := a.viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func (a *cli) initConfig() error {
	if a.cfgFile != "" {
		a.viper.SetConfigFile(a.cfgFile)
	} else {
		a.viper.SetConfigName("notebook")
		a.viper.AddConfigPath(".")
	}

	if err := a.viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}
