package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/stmtimport/internal/api"
	"github.com/cleared-dev/stmtimport/internal/importer"
	"github.com/cleared-dev/stmtimport/internal/logger"
	"github.com/cleared-dev/stmtimport/internal/model"
	"github.com/cleared-dev/stmtimport/internal/review"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the import pipeline over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			sink, closeSink, err := a.sink()
			if err != nil {
				return err
			}
			defer closeSink()

			srv := api.NewServer(
				importer.DefaultRegistry(),
				a.pipeline(),
				&committingSink{app: a, next: sink},
				a.log,
				api.Options{AllowedOrigins: a.cfg.Server.AllowedOrigins, Root: a.root},
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")

	return cmd
}

// committingSink commits the CSV journal after every successful API import.
type committingSink struct {
	app  *app
	next review.Sink
}

func (s *committingSink) Import(ctx context.Context, txns []model.Transaction, kind model.Kind) error {
	if err := s.next.Import(ctx, txns, kind); err != nil {
		return err
	}
	hash, err := s.app.commitJournal(ctx, fmt.Sprintf("import: %d %s transactions via api", len(txns), kind))
	log := logger.FromContext(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("journal commit failed")
	} else if hash != "" {
		log.Info().Str("commit", hash).Msg("journal committed")
	}
	return nil
}
