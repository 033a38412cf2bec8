package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/stmtimport/internal/importer"
	"github.com/cleared-dev/stmtimport/internal/logger"
	"github.com/cleared-dev/stmtimport/internal/mapping"
	"github.com/cleared-dev/stmtimport/internal/model"
	"github.com/cleared-dev/stmtimport/internal/review"
	"github.com/cleared-dev/stmtimport/internal/runlog"
	"github.com/cleared-dev/stmtimport/internal/transform"
)

type runOptions struct {
	kind        model.Kind
	account     string
	overrides   map[string]string
	mappingFile string
	skip        []int
	doImport    bool
	out         string
}

func newRunCommand(a *app) *cobra.Command {
	var kindFlag string
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Normalize a statement file and optionally import it",
		Long: `Normalize a statement file and print the reviewed transactions.

Without a file argument every supported file in import/ is processed, and
files that were imported are moved to import/processed/.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := a.kind(kindFlag)
			if err != nil {
				return err
			}
			opts.kind = kind
			if !cmd.Flags().Changed("account") {
				opts.account = a.cfg.Account
			}

			registry := importer.DefaultRegistry()
			var files []importer.FileInfo
			fromImportDir := len(args) == 0
			if fromImportDir {
				files, err = registry.Scan(a.root)
				if err != nil {
					return err
				}
			} else {
				files = []importer.FileInfo{{Name: filepath.Base(args[0]), Path: args[0]}}
			}

			out := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintln(out, "No statement files in import/")
				return nil
			}
			if opts.out != "" && len(files) > 1 {
				return fmt.Errorf("--out needs a single statement file, found %d", len(files))
			}

			var sink review.Sink
			if opts.doImport {
				s, closeSink, err := a.sink()
				if err != nil {
					return err
				}
				defer closeSink()
				sink = s
			}

			ctx := cmd.Context()
			for _, f := range files {
				imported, err := a.runFile(ctx, out, registry, f, opts, sink)
				if err != nil {
					return err
				}
				if imported && fromImportDir {
					if err := importer.MarkProcessed(a.root, f.Name); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kindFlag, "kind", "", "transaction kind (spending or revenue)")
	cmd.Flags().StringVar(&opts.account, "account", "", "account name stamped on spending transactions")
	cmd.Flags().StringToStringVar(&opts.overrides, "map", nil, "override a column mapping, e.g. --map \"Libellé=Description\"")
	cmd.Flags().StringVar(&opts.mappingFile, "mapping-file", "", "use a saved mapping instead of the suggestions")
	cmd.Flags().IntSliceVar(&opts.skip, "skip", nil, "deselect transactions by index")
	cmd.Flags().BoolVar(&opts.doImport, "import", false, "import the selected transactions into the ledger")
	cmd.Flags().StringVar(&opts.out, "out", "", "write the reviewed batch as JSON to this file")

	return cmd
}

// runFile reviews one statement file and imports it when asked. It reports
// whether anything was imported.
func (a *app) runFile(ctx context.Context, w io.Writer, registry *importer.Registry, f importer.FileInfo, opts runOptions, sink review.Sink) (bool, error) {
	log := logger.FromContext(ctx).With().Str("file", f.Name).Logger()

	st, err := registry.AnalyzeFile(f.Path, opts.kind)
	if err != nil {
		return false, err
	}

	mappings := st.SuggestedMappings
	if opts.mappingFile != "" {
		mappings, err = mapping.LoadFile(opts.mappingFile)
		if err != nil {
			return false, err
		}
	}
	set, err := mapping.NewSet(mappings)
	if err != nil {
		return false, err
	}
	if err := set.Apply(opts.overrides); err != nil {
		return false, err
	}

	sess, err := a.pipeline().Run(logger.WithContext(ctx, log), review.Input{
		Rows:     st.Rows,
		Mappings: set.Mappings(),
		Account:  opts.account,
		Kind:     opts.kind,
	})
	if err != nil {
		return false, err
	}
	for _, i := range opts.skip {
		if err := sess.SetSelected(i, false); err != nil {
			return false, err
		}
	}

	fmt.Fprintf(w, "== %s ==\n", f.Name)
	if err := printReview(w, sess); err != nil {
		return false, err
	}
	if opts.out != "" {
		if err := writeBatch(opts.out, sess); err != nil {
			return false, err
		}
	}

	sum := sess.Summary()
	entry := runlog.Entry{
		Timestamp:  time.Now().UTC(),
		RunID:      runlog.NewRunID(),
		Source:     f.Name,
		Kind:       opts.kind,
		Rows:       len(st.Rows),
		Kept:       sum.Total,
		Dropped:    sum.Dropped,
		Duplicates: sum.Duplicates,
		Status:     runlog.StatusReviewed,
	}

	if sink == nil {
		return false, runlog.Append(a.root, []runlog.Entry{entry})
	}

	n, err := sess.Import(ctx, sink)
	switch {
	case errors.Is(err, review.ErrNothingSelected):
		fmt.Fprintln(w, "Nothing selected, skipping import")
		entry.Details = err.Error()
		return false, runlog.Append(a.root, []runlog.Entry{entry})
	case err != nil:
		entry.Status = runlog.StatusFailed
		entry.Details = err.Error()
		if logErr := runlog.Append(a.root, []runlog.Entry{entry}); logErr != nil {
			log.Error().Err(logErr).Msg("writing import log")
		}
		return false, err
	}

	entry.Status = runlog.StatusImported
	entry.Imported = n
	hash, err := a.commitJournal(ctx, fmt.Sprintf("import: %d %s transactions from %s", n, opts.kind, f.Name))
	if err != nil {
		log.Warn().Err(err).Msg("journal commit failed")
		entry.Details = "commit failed: " + err.Error()
	}
	entry.CommitHash = hash
	if err := runlog.Append(a.root, []runlog.Entry{entry}); err != nil {
		return true, err
	}

	fmt.Fprintf(w, "Imported %d transactions\n", n)
	return true, nil
}

type batchFile struct {
	Kind         model.Kind          `json:"kind"`
	Transactions []model.Transaction `json:"transactions"`
	Dropped      []transform.Drop    `json:"dropped"`
	Summary      review.Summary      `json:"summary"`
}

func writeBatch(path string, sess *review.Session) error {
	dropped := sess.Dropped()
	if dropped == nil {
		dropped = []transform.Drop{}
	}
	data, err := json.MarshalIndent(batchFile{
		Kind:         sess.Kind(),
		Transactions: sess.Transactions(),
		Dropped:      dropped,
		Summary:      sess.Summary(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding batch: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing batch: %w", err)
	}
	return nil
}
