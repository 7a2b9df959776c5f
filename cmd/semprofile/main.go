// Package main provides the semprofile binary entry point.
// semprofile loads entity profiles, assembles source records into
// knowledge-graph entities and validates them.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/c360studio/semprofile/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "semprofile"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath  string
	profilesDir string
	logLevel    string
}

func rootCmd() *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Entity profile engine",
		Long: `semprofile turns flat source records into knowledge-graph entities
shaped by declarative entity profiles.

It provides:
- Profile discovery and loading (packaged and single-file profiles)
- Statement assembly with qualifiers, references and ranks
- Validation with error, warning and suggestion severities
- Allowed-item list hydration from a SPARQL endpoint`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&flags.profilesDir, "profiles", "", "Profiles directory (overrides profiles.dir)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		listCmd(&flags),
		metadataCmd(&flags),
		validateCmd(&flags),
		renderCmd(&flags),
		publishCmd(&flags),
		hydrateCmd(&flags),
		watchCmd(&flags),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)

	return cmd
}

// newLogger configures the process-wide logger from a level name.
func newLogger(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// loadConfig loads an explicit config file, or the layered user and project
// config when none is given.
func loadConfig(flags *globalFlags, logger *slog.Logger) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFromFile(flags.configPath)
	} else {
		cfg, err = config.NewLoader(logger).Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flags.profilesDir != "" {
		cfg.Profiles.Dir = flags.profilesDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setup builds the App for a command.
func setup(flags *globalFlags) (*App, error) {
	logger := newLogger(flags.logLevel)
	cfg, err := loadConfig(flags, logger)
	if err != nil {
		return nil, err
	}
	return NewApp(cfg, logger)
}
