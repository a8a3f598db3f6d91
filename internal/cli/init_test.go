package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"balances/internal/config"
)

func TestOverridesApply(t *testing.T) {
	tests := []struct {
		name       string
		o          Overrides
		wantSource string
		wantURL    string
		wantFile   string
	}{
		{"empty keeps config", Overrides{}, config.SourceHTTP, "http://localhost:8000/balances", "./data/balances.json"},
		{"url selects http", Overrides{URL: "https://example.test/balances"}, config.SourceHTTP, "https://example.test/balances", "./data/balances.json"},
		{"file selects file", Overrides{File: "fixture.json"}, config.SourceFile, "http://localhost:8000/balances", "fixture.json"},
		{"explicit source wins", Overrides{Source: config.SourceHTTP, File: "fixture.json"}, config.SourceHTTP, "http://localhost:8000/balances", "fixture.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				Source:       config.SourceHTTP,
				BalancesURL:  "http://localhost:8000/balances",
				BalancesFile: "./data/balances.json",
			}
			tt.o.Apply(cfg)
			assert.Equal(t, tt.wantSource, cfg.Source)
			assert.Equal(t, tt.wantURL, cfg.BalancesURL)
			assert.Equal(t, tt.wantFile, cfg.BalancesFile)
		})
	}
}

func TestLoadAndValidateConfig(t *testing.T) {
	t.Setenv("BALANCES_SOURCE", "ftp")
	_, err := LoadAndValidateConfig(Overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid balances source")

	cfg, err := LoadAndValidateConfig(Overrides{File: "fixture.json"})
	require.NoError(t, err)
	assert.Equal(t, config.SourceFile, cfg.Source)
}

func TestLoadEnvFileDoesNotOverrideEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("BALANCES_TEST_FROM_FILE=file\nBALANCES_TEST_PRESET=file\n"), 0o600))
	t.Setenv("BALANCES_TEST_PRESET", "env")
	t.Setenv("BALANCES_TEST_FROM_FILE", "")
	require.NoError(t, os.Unsetenv("BALANCES_TEST_FROM_FILE"))

	LoadEnvFile(path, filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, "file", os.Getenv("BALANCES_TEST_FROM_FILE"))
	assert.Equal(t, "env", os.Getenv("BALANCES_TEST_PRESET"))
}

func TestSetupLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger(&config.Config{LogLevel: "warn", LogFormat: "json"}, &buf)

	logger.Info("dropped")
	logger.Warn("kept", "k", "v")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "app", rec["component"])
}

func TestNewViewModelFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "balances.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
	  "asOf": "2025-04-05T06:07:08Z",
	  "accounts": [{"person": "Ann", "account": "ISA", "displayCurrency": "GBP", "total": 10}],
	  "summary": {"grand": {"total_gbp": 10}, "byPerson": {"Ann": {"total_gbp": 10}}},
	  "grandTotals": {"GBP": 10}
	}`), 0o600))

	cfg := &config.Config{Source: config.SourceFile, BalancesFile: path, DisplayTimezone: "UTC"}
	vm, cleanup, err := NewViewModel(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer cleanup()

	require.NoError(t, vm.LoadSnapshot(context.Background()))
	s := vm.Surface()
	require.Len(t, s.People, 1)
	assert.Equal(t, "As of 05/04/2025, 06:07:08", s.AsOf)
	assert.Equal(t, "£10.00", s.GrandTotal)
}

func TestNewViewModelRejectsUnknownSource(t *testing.T) {
	_, _, err := NewViewModel(context.Background(), &config.Config{Source: "ftp"}, nil)
	assert.Error(t, err)
}

func TestOverridesPort(t *testing.T) {
	cfg := &config.Config{Port: "8081"}
	Overrides{}.Apply(cfg)
	assert.Equal(t, "8081", cfg.Port)
	Overrides{Port: "9090"}.Apply(cfg)
	assert.Equal(t, "9090", cfg.Port)
}
