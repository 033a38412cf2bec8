package journal

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cleared-dev/stmtimport/internal/id"
	"github.com/cleared-dev/stmtimport/internal/logger"
	"github.com/cleared-dev/stmtimport/internal/model"
)

// Service appends imported transactions to monthly journal files.
type Service struct {
	root string
}

// NewService creates a journal Service rooted at root.
func NewService(root string) *Service {
	return &Service{root: root}
}

type monthKey struct{ year, month int }

// Import implements review.Sink. Transactions are grouped by month, numbered
// after the month's last entry, validated together with the existing entries
// and appended. Nothing is written when any month fails validation.
func (s *Service) Import(ctx context.Context, txns []model.Transaction, kind model.Kind) error {
	_, err := s.Append(ctx, txns, kind)
	return err
}

// Append is Import returning the journal files it wrote, relative to the root.
func (s *Service) Append(ctx context.Context, txns []model.Transaction, kind model.Kind) ([]string, error) {
	byMonth := make(map[monthKey][]model.Transaction)
	for i, tx := range txns {
		if tx.Kind() != kind {
			return nil, fmt.Errorf("transaction %d is %s, batch is %s", i, tx.Kind(), kind)
		}
		e, err := NewEntry("", tx)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		k := monthKey{e.Date.Year(), int(e.Date.Month())}
		byMonth[k] = append(byMonth[k], tx)
	}

	months := make([]monthKey, 0, len(byMonth))
	for k := range byMonth {
		months = append(months, k)
	}
	sort.Slice(months, func(i, j int) bool {
		if months[i].year != months[j].year {
			return months[i].year < months[j].year
		}
		return months[i].month < months[j].month
	})

	// Build and validate every month before touching disk.
	pending := make(map[monthKey][]Entry, len(months))
	for _, k := range months {
		existing, err := s.ReadMonth(k.year, k.month)
		if err != nil {
			return nil, err
		}
		seq := nextSeq(existing)

		var added []Entry
		for _, tx := range byMonth[k] {
			e, err := NewEntry(id.FormatEntryID(k.year, k.month, seq), tx)
			if err != nil {
				return nil, err
			}
			added = append(added, e)
			seq++
		}

		all := append(existing, added...)
		if verrs := ValidateEntries(all, k.year, k.month); len(verrs) > 0 {
			msgs := make([]string, len(verrs))
			for i, ve := range verrs {
				msgs[i] = ve.Error()
			}
			return nil, fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
		}
		pending[k] = added
	}

	var written []string
	for _, k := range months {
		if err := s.appendMonth(k.year, k.month, pending[k]); err != nil {
			return written, err
		}
		rel, _ := filepath.Rel(s.root, s.monthPath(k.year, k.month))
		written = append(written, rel)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Int("entries", len(txns)).
		Strs("files", written).
		Msg("journal updated")
	return written, nil
}

func (s *Service) appendMonth(year, month int, entries []Entry) error {
	journalPath := s.monthPath(year, month)
	if err := os.MkdirAll(filepath.Dir(journalPath), 0o755); err != nil {
		return fmt.Errorf("creating journal dir: %w", err)
	}

	isNew := false
	if _, err := os.Stat(journalPath); errors.Is(err, fs.ErrNotExist) {
		isNew = true
	}

	f, err := os.OpenFile(journalPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer f.Close()

	if isNew {
		if _, err := fmt.Fprintln(f, Header); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	if err := AppendEntries(f, entries); err != nil {
		return fmt.Errorf("appending entries: %w", err)
	}
	return nil
}

// ReadMonth reads all entries for a given year/month.
func (s *Service) ReadMonth(year, month int) ([]Entry, error) {
	path := s.monthPath(year, month)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}
	defer f.Close()

	entries, err := ReadEntries(f)
	if err != nil {
		return nil, fmt.Errorf("reading journal %s: %w", path, err)
	}
	return entries, nil
}

func nextSeq(entries []Entry) int {
	maxSeq := 0
	for _, e := range entries {
		_, _, seq, err := id.ParseEntryID(e.ID)
		if err != nil {
			continue
		}
		if seq > maxSeq {
			maxSeq = seq
		}
	}
	return maxSeq + 1
}

func (s *Service) monthPath(year, month int) string {
	return filepath.Join(s.root, fmt.Sprintf("%04d", year), fmt.Sprintf("%02d", month), "journal.csv")
}
