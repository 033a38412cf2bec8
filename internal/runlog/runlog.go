// Package runlog keeps an append-only CSV record of import runs in logs/import-log.csv.
package runlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cleared-dev/stmtimport/internal/model"
)

// Status is the outcome of a run.
type Status string

const (
	StatusReviewed Status = "reviewed" // pipeline ran, nothing imported
	StatusImported Status = "imported"
	StatusFailed   Status = "failed"
)

// Entry is one row in the import log.
type Entry struct {
	Timestamp  time.Time
	RunID      string
	Source     string // file name, or "api"
	Kind       model.Kind
	Rows       int
	Kept       int
	Dropped    int
	Duplicates int
	Imported   int
	Status     Status
	Details    string
	CommitHash string
}

// Header is the CSV header for import-log.csv.
const Header = "timestamp,run_id,source,kind,rows,kept,dropped,duplicates,imported,status,details,commit_hash"

const (
	numFields     = 12
	logDir        = "logs"
	logFile       = "logs/import-log.csv"
	colTimestamp  = 0
	colRunID      = 1
	colSource     = 2
	colKind       = 3
	colRows       = 4
	colKept       = 5
	colDropped    = 6
	colDuplicates = 7
	colImported   = 8
	colStatus     = 9
	colDetails    = 10
	colCommitHash = 11
)

// NewRunID returns a fresh run identifier.
func NewRunID() string { return uuid.NewString() }

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colRunID] = e.RunID
	row[colSource] = e.Source
	row[colKind] = string(e.Kind)
	row[colRows] = strconv.Itoa(e.Rows)
	row[colKept] = strconv.Itoa(e.Kept)
	row[colDropped] = strconv.Itoa(e.Dropped)
	row[colDuplicates] = strconv.Itoa(e.Duplicates)
	row[colImported] = strconv.Itoa(e.Imported)
	row[colStatus] = string(e.Status)
	row[colDetails] = e.Details
	row[colCommitHash] = e.CommitHash
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}
	if _, err := uuid.Parse(record[colRunID]); err != nil {
		return Entry{}, fmt.Errorf("parsing run_id %q: %w", record[colRunID], err)
	}

	counts := make([]int, 0, 5)
	for _, col := range []int{colRows, colKept, colDropped, colDuplicates, colImported} {
		n, err := strconv.Atoi(record[col])
		if err != nil {
			return Entry{}, fmt.Errorf("parsing count %q: %w", record[col], err)
		}
		counts = append(counts, n)
	}

	return Entry{
		Timestamp:  ts,
		RunID:      record[colRunID],
		Source:     record[colSource],
		Kind:       model.Kind(record[colKind]),
		Rows:       counts[0],
		Kept:       counts[1],
		Dropped:    counts[2],
		Duplicates: counts[3],
		Imported:   counts[4],
		Status:     Status(record[colStatus]),
		Details:    record[colDetails],
		CommitHash: record[colCommitHash],
	}, nil
}

// Append writes entries to <root>/logs/import-log.csv, creating the file and header if needed.
func Append(root string, entries []Entry) error {
	dir := filepath.Join(root, logDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := filepath.Join(root, logFile)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening import log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	return cw.Error()
}

// Read returns all entries from <root>/logs/import-log.csv.
// Returns an empty slice if the file does not exist.
func Read(root string) ([]Entry, error) {
	path := filepath.Join(root, logFile)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening import log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading import log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
