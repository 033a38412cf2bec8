package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/stmtimport/internal/buildinfo"
	"github.com/cleared-dev/stmtimport/internal/config"
	"github.com/cleared-dev/stmtimport/internal/logger"
)

// app is the state shared by every subcommand once the root has loaded it.
type app struct {
	dir        string
	configPath string
	logLevel   string

	root string // absolute project directory
	cfg  *config.Config
	log  zerolog.Logger
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:     "stmtimport",
		Short:   "Normalize bank statement exports into reviewed spending and revenue transactions",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.dir, "dir", ".", "project directory")
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default <dir>/"+config.FileName+")")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(newInitCommand(a))
	rootCmd.AddCommand(newSuggestCommand(a))
	rootCmd.AddCommand(newRunCommand(a))
	rootCmd.AddCommand(newServeCommand(a))

	return rootCmd
}

// load reads .env and the config file, then installs the logger in the command context.
func (a *app) load(cmd *cobra.Command) error {
	root, err := filepath.Abs(a.dir)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	a.root = root

	if err := godotenv.Load(filepath.Join(root, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	path := a.configPath
	if path == "" {
		path = filepath.Join(root, config.FileName)
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.Log.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	log, err := logger.NewWithOptions(logger.Options{
		Level:  level,
		Format: cfg.Log.Format,
		Out:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	a.log = log
	cmd.SetContext(logger.WithContext(cmd.Context(), log))
	return nil
}

// resolve makes a config path relative to the project directory.
func (a *app) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(a.root, path)
}
