package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cleared-dev/stmtimport/internal/config"
	"github.com/cleared-dev/stmtimport/internal/dedup"
	"github.com/cleared-dev/stmtimport/internal/fxrate"
	"github.com/cleared-dev/stmtimport/internal/gitops"
	"github.com/cleared-dev/stmtimport/internal/journal"
	"github.com/cleared-dev/stmtimport/internal/ledger"
	"github.com/cleared-dev/stmtimport/internal/model"
	"github.com/cleared-dev/stmtimport/internal/review"
)

func (a *app) pipeline() *review.Pipeline {
	rates := fxrate.NewClient(a.cfg.Rates.BaseURL, a.cfg.Rates.Timeout)
	dups := dedup.NewClient(a.cfg.Duplicates.URL, a.cfg.Duplicates.Token(), a.cfg.Duplicates.Timeout)
	return review.NewPipeline(
		fxrate.NewConverter(rates, a.cfg.Rates.Concurrency),
		dedup.NewReconciler(dups),
	)
}

// kind returns the flag value when set, otherwise the configured default.
func (a *app) kind(flag string) (model.Kind, error) {
	if flag == "" {
		flag = a.cfg.Kind
	}
	if flag == "" {
		return model.KindSpending, nil
	}
	return model.ParseKind(flag)
}

// sink opens the configured ledger. The returned close func is never nil.
func (a *app) sink() (review.Sink, func() error, error) {
	path := a.resolve(a.cfg.Ledger.Path)
	switch a.cfg.Ledger.Driver {
	case config.DriverSQLite:
		store, err := ledger.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.DriverCSV:
		return journal.NewService(path), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger driver %q", a.cfg.Ledger.Driver)
	}
}

// commitJournal commits the CSV journal when auto-commit is on. It returns an
// empty hash when there is nothing to do.
func (a *app) commitJournal(ctx context.Context, message string) (string, error) {
	if a.cfg.Ledger.Driver != config.DriverCSV || !a.cfg.Git.AutoCommit || !gitops.IsRepo(a.root) {
		return "", nil
	}
	rel, err := filepath.Rel(a.root, a.resolve(a.cfg.Ledger.Path))
	if err != nil {
		return "", fmt.Errorf("resolving journal path: %w", err)
	}
	author := gitops.Author{Name: a.cfg.Git.AuthorName, Email: a.cfg.Git.AuthorEmail}
	hash, err := gitops.Commit(ctx, a.root, message, author, rel)
	if errors.Is(err, gitops.ErrNothingToCommit) {
		return "", nil
	}
	return hash, err
}
