package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"spark-terminal/pkg/config"
	"spark-terminal/pkg/logging"
)

// Version is reported by --version
var Version = "1.0.0"

// rootOptions holds the persistent flags shared by every subcommand
type rootOptions struct {
	verbose   bool
	logLevel  string
	configDir string
}

// environment is what a subcommand works with once flags are parsed
type environment struct {
	paths    config.Paths
	settings config.Settings
	level    string
	log      *logrus.Entry
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:               "spark-terminal",
		Short:             "A serial port terminal with saved command shortcuts",
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&opts.configDir, "config-dir", "", "directory holding settings, profiles and saved commands")

	rootCmd.AddCommand(newListCmd(opts))
	rootCmd.AddCommand(newConnectCmd(opts))
	rootCmd.AddCommand(newSendCmd(opts))
	rootCmd.AddCommand(newCommandsCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))

	return rootCmd
}

// Execute runs the command line and exits non-zero on failure
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// load resolves the app directory, reads settings.yaml and creates a logger
// writing to logOut
func (o *rootOptions) load(logOut io.Writer) (*environment, error) {
	paths, err := config.DefaultPaths(o.configDir)
	if err != nil {
		return nil, err
	}
	if err := paths.Ensure(); err != nil {
		return nil, err
	}

	settings, settingsErr := config.LoadSettings(paths.SettingsFile())

	level := o.logLevel
	if level == "" {
		level = settings.LogLevel
	}
	if level == "" {
		level = logging.DefaultLevel
	}
	if o.verbose {
		level = "debug"
	}

	log := logging.New(level, logOut)
	if settingsErr != nil {
		log.WithError(settingsErr).Warn("using default settings")
	}

	return &environment{
		paths:    paths,
		settings: settings,
		level:    level,
		log:      log,
	}, nil
}
