package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/stmtimport/internal/config"
	"github.com/cleared-dev/stmtimport/internal/gitops"
)

func newInitCommand(a *app) *cobra.Command {
	var driver string
	var git bool
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a statement import project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				dir, err := filepath.Abs(args[0])
				if err != nil {
					return fmt.Errorf("resolving path: %w", err)
				}
				a.root = dir
			}
			cfgPath := filepath.Join(a.root, config.FileName)
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("checking config: %w", err)
			}

			cfg := config.Default()
			cfg.Ledger.Driver = driver
			if driver == config.DriverCSV {
				cfg.Ledger.Path = "journal"
			}
			cfg.Git.AutoCommit = git
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			if err := runInit(a.root, cfgPath, cfg); err != nil {
				return err
			}

			if git {
				ctx := cmd.Context()
				if !gitops.IsRepo(a.root) {
					if err := gitops.Init(ctx, a.root); err != nil {
						return err
					}
				}
				author := gitops.Author{Name: cfg.Git.AuthorName, Email: cfg.Git.AuthorEmail}
				hash, err := gitops.Commit(ctx, a.root, "init: statement import project", author,
					config.FileName, ".gitignore", filepath.Join("import", ".gitkeep"))
				if err != nil && !errors.Is(err, gitops.ErrNothingToCommit) {
					return fmt.Errorf("initial commit: %w", err)
				}
				if hash != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Initialized stmtimport project at %s (%s)\n", a.root, hash)
					return nil
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Initialized stmtimport project at %s\n", a.root)
			return nil
		},
	}

	cmd.Flags().StringVar(&driver, "ledger", config.DriverSQLite, "ledger driver (sqlite or csv)")
	cmd.Flags().BoolVar(&git, "git", false, "initialize a git repository and commit the journal after each import")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	return cmd
}

func runInit(dir, cfgPath string, cfg *config.Config) error {
	dirs := []string{
		"logs",
		"import",
		filepath.Join("import", "processed"),
	}
	if cfg.Ledger.Driver == config.DriverCSV {
		dirs = append(dirs, cfg.Ledger.Path)
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return err
	}

	gitignore := ".env\nledger.db\nimport/processed/\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "import", ".gitkeep"), []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}
	return nil
}
