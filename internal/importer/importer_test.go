package importer

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/cleared-dev/stmtimport/internal/model"
)

const revolutCSV = "\ufeffDate,Description,Amount,Currency\n" +
	"\"21 November 2025 , 02:37am\",Carrefour Paris,45.90,EUR\n" +
	"22/11/2025,\"Netflix, Inc\",9.99,EUR\n" +
	",,,\n" +
	"2025-11-23,Amazon,30.00,USD\n"

func TestCSVReader_Read(t *testing.T) {
	tbl, err := (&CSVReader{}).Read(strings.NewReader(revolutCSV))
	require.NoError(t, err)

	assert.Equal(t, []string{"Date", "Description", "Amount", "Currency"}, tbl.Headers)
	require.Len(t, tbl.Rows, 3, "blank line skipped")
	assert.Equal(t, "21 November 2025 , 02:37am", tbl.Rows[0].Text("Date"))
	assert.Equal(t, "Netflix, Inc", tbl.Rows[1].Text("Description"))
	assert.Equal(t, "USD", tbl.Rows[2].Text("Currency"))
}

func TestCSVReader_Semicolons(t *testing.T) {
	tbl, err := (&CSVReader{}).Read(strings.NewReader("Date;Libellé;Montant\n01/02/2025;Loyer;1,200.00\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Date", "Libellé", "Montant"}, tbl.Headers)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "1,200.00", tbl.Rows[0].Text("Montant"))
}

func TestCSVReader_RaggedRows(t *testing.T) {
	tbl, err := (&CSVReader{}).Read(strings.NewReader("a,b,c\n1\n1,2,3,4\n"))
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "", tbl.Rows[0].Text("c"))
	assert.Equal(t, "3", tbl.Rows[1].Text("c"))
}

func TestCSVReader_Empty(t *testing.T) {
	tbl, err := (&CSVReader{}).Read(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, tbl.Headers)
	assert.Nil(t, tbl.Rows)
}

func workbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	cells := map[string]any{
		"A1": "Date", "B1": "Source", "C1": "Montant", "D1": "Valeur",
		"A2": "2025-11-21", "B2": "ACME", "C2": 100.5, "D2": "USD",
		"A4": "2025-11-22", "B4": "Globex", "C4": "1,000.00", "D4": "EUR",
	}
	for ref, v := range cells {
		require.NoError(t, f.SetCellValue("Sheet1", ref, v))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestXLSXReader_Read(t *testing.T) {
	tbl, err := (&XLSXReader{}).Read(bytes.NewReader(workbook(t)))
	require.NoError(t, err)

	assert.Equal(t, []string{"Date", "Source", "Montant", "Valeur"}, tbl.Headers)
	require.Len(t, tbl.Rows, 2)

	amt, ok := tbl.Rows[0].Get("Montant")
	require.True(t, ok)
	assert.True(t, amt.IsNumber())
	assert.Equal(t, "100.5", amt.String())
	assert.Equal(t, "ACME", tbl.Rows[0].Text("Source"))

	txt, ok := tbl.Rows[1].Get("Montant")
	require.True(t, ok)
	assert.False(t, txt.IsNumber(), "string cells stay text")
	assert.Equal(t, "1,000.00", txt.String())
}

func TestXLSXReader_NotAWorkbook(t *testing.T) {
	_, err := (&XLSXReader{}).Read(strings.NewReader("Date,Amount\n"))
	assert.Error(t, err)
}

func TestRegistry_Analyze(t *testing.T) {
	s, err := DefaultRegistry().Analyze(strings.NewReader(revolutCSV), ".CSV", model.KindSpending)
	require.NoError(t, err)

	assert.Equal(t, "csv", s.Format)
	assert.Equal(t, 3, s.TotalRows)
	assert.Len(t, s.Rows, 3)
	assert.Len(t, s.Preview, 3)
	require.Len(t, s.SuggestedMappings, 4)
	assert.Equal(t, model.ColumnMapping{Source: "Date", Target: model.TargetDate, Confidence: 1}, s.SuggestedMappings[0])
}

func TestRegistry_AnalyzePreviewCapped(t *testing.T) {
	var b strings.Builder
	b.WriteString("Date,Description,Amount\n")
	for range 8 {
		b.WriteString("2025-01-01,x,1.00\n")
	}
	s, err := DefaultRegistry().Analyze(strings.NewReader(b.String()), "csv", model.KindSpending)
	require.NoError(t, err)
	assert.Equal(t, 8, s.TotalRows)
	assert.Len(t, s.Preview, PreviewRows)
}

func TestRegistry_AnalyzeUnsupported(t *testing.T) {
	_, err := DefaultRegistry().Analyze(strings.NewReader("x"), "pdf", model.KindSpending)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv, xlsx")
}

func TestRegistry_AnalyzeFileXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "income.xlsx")
	require.NoError(t, os.WriteFile(path, workbook(t), 0o644))

	s, err := DefaultRegistry().AnalyzeFile(path, model.KindRevenue)
	require.NoError(t, err)
	assert.Equal(t, "xlsx", s.Format)
	assert.Equal(t, 2, s.TotalRows)
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("nonexistent"))
}

func TestRegistry_CaseInsensitive(t *testing.T) {
	r := NewRegistry()
	r.Register(&CSVReader{})
	assert.NotNil(t, r.Get("CSV"))
	assert.NotNil(t, r.ForFile("statement.Csv"))
	assert.Nil(t, r.ForFile("statement.xlsx"))
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(&CSVReader{})
	assert.Panics(t, func() { r.Register(&CSVReader{}) })
}

func TestScan_FindsStatements(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	require.NoError(t, os.MkdirAll(importDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(importDir, "bank.csv"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "income.xlsx"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "other.txt"), []byte("data"), 0o644))

	files, err := DefaultRegistry().Scan(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "bank.csv", files[0].Name)
	assert.Equal(t, "income.xlsx", files[1].Name)
}

func TestScan_IgnoresProcessedDir(t *testing.T) {
	dir := t.TempDir()
	processedDir := filepath.Join(dir, "import", "processed")
	require.NoError(t, os.MkdirAll(processedDir, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "import", "new.csv"), []byte("data"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(processedDir, "old.csv"), []byte("data"), 0o644))

	files, err := DefaultRegistry().Scan(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, "new.csv", files[0].Name)
}

func TestScan_MissingDir(t *testing.T) {
	files, err := DefaultRegistry().Scan(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestMarkProcessed(t *testing.T) {
	dir := t.TempDir()
	importDir := filepath.Join(dir, "import")
	require.NoError(t, os.MkdirAll(importDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(importDir, "bank.csv"), []byte("data"), 0o644))

	require.NoError(t, MarkProcessed(dir, "bank.csv"))

	_, err := os.Stat(filepath.Join(importDir, "bank.csv"))
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(filepath.Join(dir, "import", "processed", "bank.csv"))
	assert.NoError(t, err)
}
