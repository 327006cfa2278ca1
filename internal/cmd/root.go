// Package cmd provides the CLI commands for augprov.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/hercules-team/augeasproviders/internal/config"
	_ "github.com/hercules-team/augeasproviders/internal/format/hosts"
	_ "github.com/hercules-team/augeasproviders/internal/format/sshd"
	_ "github.com/hercules-team/augeasproviders/internal/format/syslog"
	"github.com/hercules-team/augeasproviders/internal/logging"
	_ "github.com/hercules-team/augeasproviders/internal/provider/host"
	_ "github.com/hercules-team/augeasproviders/internal/provider/sshd"
	_ "github.com/hercules-team/augeasproviders/internal/provider/syslog"
	"github.com/hercules-team/augeasproviders/internal/session"
	"github.com/hercules-team/augeasproviders/internal/tree"
)

var rootCmd = &cobra.Command{
	Use:   "augprov",
	Short: "Edit configuration files through path expressions",
	Long: `augprov parses configuration files into trees, edits them through
path expressions and writes them back, changing only the lines that
were touched.

It understands /etc/hosts, sshd_config and syslog.conf, and manages
host entries, sshd settings, sshd subsystems and syslog rules as
resources.

A script file can also be run directly:

  #!/usr/bin/env augprov
  version 1
  file /etc/hosts
  set /*[canonical = 'localhost']/ipaddr 127.0.0.1`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: teardown,
}

var (
	configFile string
	rootDir    string
	logLevel   string
	noop       bool
	showDiff   bool
)

// State shared by the subcommands, built by setup.
var (
	cfg     *config.Config
	logger  *slog.Logger
	manager *session.Manager
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultFile, "Configuration file (toml, ini or yaml)")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "Directory target files are resolved against")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&noop, "noop", "n", false, "Do not write any file")
	rootCmd.PersistentFlags().BoolVar(&showDiff, "show-diff", false, "Print a unified diff of every change")

	rootCmd.AddCommand(printCmd, matchCmd, getCmd, setCmd, clearCmd, rmCmd, insCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(resourceCmd)
	rootCmd.AddCommand(configCmd)
}

// Execute runs the root command with args and returns the exit code.
func Execute(args []string) int {
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			logging.For(logger, logging.SubsystemCLI).Error("command failed", "error", err)
		} else {
			fmt.Fprintf(os.Stderr, "augprov: %v\n", err)
		}
		return 1
	}
	return 0
}

// setup loads the configuration, applies the global flags and opens a
// session manager on the configured root.
func setup(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if rootDir != "" {
		c.Root = rootDir
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	if showDiff {
		c.ShowDiff = true
	}
	if noop {
		c.SaveMode = tree.SaveNoop.String()
	}
	if err := c.Validate(); err != nil {
		return err
	}

	l, err := logging.New(c.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	opts := []session.Option{
		session.WithLogger(l),
		session.WithSaveMode(c.Mode()),
	}
	if c.ShowDiff {
		opts = append(opts, session.WithDiff(cmd.OutOrStdout()))
	}

	cfg, logger = c, l
	manager = session.NewManager(osfs.New(c.Root), opts...)
	logging.For(logger, logging.SubsystemCLI).Debug("starting",
		"command", cmd.Name(), "root", c.Root, "save_mode", c.SaveMode, "pass", manager.Pass())
	return nil
}

func teardown(cmd *cobra.Command, args []string) {
	if manager != nil {
		manager.Close()
	}
}

// IsCommand reports whether name is a subcommand of augprov.
func IsCommand(name string) bool {
	for _, c := range rootCmd.Commands() {
		if c.Name() == name || c.HasAlias(name) {
			return true
		}
	}
	return false
}
