package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Account = "Revolut"
	cfg.Kind = "revenue"
	cfg.Rates.Concurrency = 4
	cfg.Ledger = LedgerConfig{Driver: DriverCSV, Path: "books"}
	cfg.Git.AutoCommit = true

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "spending", cfg.Kind)
	assert.Equal(t, "https://api.frankfurter.app", cfg.Rates.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Rates.Timeout)
	assert.Equal(t, 1, cfg.Rates.Concurrency)
	assert.Equal(t, DriverSQLite, cfg.Ledger.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Git.AutoCommit)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("account: Visa\nrates:\n  timeout: 3s\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Visa", cfg.Account)
	assert.Equal(t, 3*time.Second, cfg.Rates.Timeout)
	assert.Equal(t, "https://api.frankfurter.app", cfg.Rates.BaseURL)
	assert.Equal(t, DriverSQLite, cfg.Ledger.Driver)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"kind", "kind: transfer\n"},
		{"driver", "ledger:\n  driver: postgres\n"},
		{"log format", "log:\n  format: xml\n"},
		{"concurrency", "rates:\n  concurrency: -1\n"},
		{"syntax", "rates: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestDuplicatesToken(t *testing.T) {
	t.Setenv("TEST_DUP_TOKEN", "s3cret")
	d := DuplicatesConfig{TokenEnv: "TEST_DUP_TOKEN"}
	assert.Equal(t, "s3cret", d.Token())
	assert.Empty(t, DuplicatesConfig{}.Token())
}

func TestYAMLFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, Default()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "base_url: https://api.frankfurter.app")
	assert.Contains(t, contents, "timeout: 10s")
	assert.Contains(t, contents, "driver: sqlite")
	assert.Contains(t, contents, "token_env: STMTIMPORT_DUPLICATES_TOKEN")
}
