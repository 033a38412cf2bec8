package importer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cleared-dev/stmtimport/internal/mapping"
	"github.com/cleared-dev/stmtimport/internal/model"
)

// PreviewRows is the number of leading rows included in Structure.Preview.
const PreviewRows = 5

// Table is the header line and data rows read from a statement file.
type Table struct {
	Headers []string
	Rows    []model.RawRow
}

// Reader reads one statement file format into a Table.
type Reader interface {
	Read(r io.Reader) (Table, error)
	Format() string
}

// Structure describes an analyzed statement file.
type Structure struct {
	Format            string                `json:"format"`
	Headers           []string              `json:"headers"`
	Rows              []model.RawRow        `json:"rows"`
	Preview           []model.RawRow        `json:"preview"`
	SuggestedMappings []model.ColumnMapping `json:"suggestedMappings"`
	TotalRows         int                   `json:"totalRows"`
}

// Registry holds readers keyed by format, which is also the file extension.
type Registry struct {
	readers map[string]Reader
}

// FileInfo describes a statement file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty reader registry.
func NewRegistry() *Registry {
	return &Registry{readers: make(map[string]Reader)}
}

// Register adds a reader. Panics on duplicate format.
func (r *Registry) Register(rd Reader) {
	key := strings.ToLower(rd.Format())
	if _, ok := r.readers[key]; ok {
		panic("duplicate reader format: " + key)
	}
	r.readers[key] = rd
}

// Get returns the reader for format, or nil.
func (r *Registry) Get(format string) Reader {
	return r.readers[strings.ToLower(strings.TrimPrefix(format, "."))]
}

// ForFile returns the reader matching the file's extension, or nil.
func (r *Registry) ForFile(name string) Reader {
	return r.Get(filepath.Ext(name))
}

// Formats lists the registered formats in sorted order.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.readers))
	for k := range r.readers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Analyze reads src with the reader registered for format and suggests mappings for kind.
func (r *Registry) Analyze(src io.Reader, format string, kind model.Kind) (Structure, error) {
	rd := r.Get(format)
	if rd == nil {
		return Structure{}, fmt.Errorf("unsupported file format %q (supported: %s)", format, strings.Join(r.Formats(), ", "))
	}
	tbl, err := rd.Read(src)
	if err != nil {
		return Structure{}, err
	}
	return newStructure(rd.Format(), tbl, kind), nil
}

// AnalyzeFile opens path and analyzes it by extension.
func (r *Registry) AnalyzeFile(path string, kind model.Kind) (Structure, error) {
	f, err := os.Open(path)
	if err != nil {
		return Structure{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	s, err := r.Analyze(f, filepath.Ext(path), kind)
	if err != nil {
		return Structure{}, fmt.Errorf("analyzing %s: %w", filepath.Base(path), err)
	}
	return s, nil
}

func newStructure(format string, tbl Table, kind model.Kind) Structure {
	rows := tbl.Rows
	if rows == nil {
		rows = []model.RawRow{}
	}
	n := min(len(rows), PreviewRows)
	return Structure{
		Format:            format,
		Headers:           tbl.Headers,
		Rows:              rows,
		Preview:           rows[:n],
		SuggestedMappings: mapping.Suggest(tbl.Headers, kind),
		TotalRows:         len(rows),
	}
}

// DefaultRegistry returns a registry with all built-in readers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&CSVReader{})
	r.Register(&XLSXReader{})
	return r
}

// importDir is the subdirectory for statement files awaiting import.
const importDir = "import"

// processedDir is the subdirectory for imported statement files.
const processedDir = "import/processed"

// ImportDir returns <root>/import.
func ImportDir(root string) string { return filepath.Join(root, importDir) }

// ProcessedDir returns <root>/import/processed.
func ProcessedDir(root string) string { return filepath.Join(root, processedDir) }

// Scan returns the files in <root>/import/ that a registered reader can handle.
func (r *Registry) Scan(root string) ([]FileInfo, error) {
	dir := ImportDir(root)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if r.ForFile(e.Name()) == nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from import/ to import/processed/.
func MarkProcessed(root, fileName string) error {
	src := filepath.Join(ImportDir(root), fileName)
	dstDir := ProcessedDir(root)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
