package source

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"balances/internal/config"
	"balances/internal/core"
)

func writeFixture(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "balances.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestFileFetcherReadsEveryCall(t *testing.T) {
	path := writeFixture(t, okBody)
	f := NewFileFetcher(path, nil)

	snap, err := f.FetchSnapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Accounts, 1)

	require.NoError(t, os.WriteFile(path, []byte(`{"accounts": []}`), 0o600))
	snap, err = f.FetchSnapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Accounts)
}

func TestFileFetcherErrors(t *testing.T) {
	_, err := NewFileFetcher(filepath.Join(t.TempDir(), "missing.json"), nil).FetchSnapshot(context.Background())
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, OpRead, le.Op)
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	_, err = NewFileFetcher(writeFixture(t, "[]"), nil).FetchSnapshot(context.Background())
	require.True(t, errors.As(err, &le))
	assert.Equal(t, OpDecode, le.Op)
	assert.True(t, errors.Is(err, core.ErrMalformedSnapshot))
}

func TestNewSelectsSource(t *testing.T) {
	f, err := New(&config.Config{Source: config.SourceHTTP, BalancesURL: "http://localhost:8000/balances"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &HTTPFetcher{}, f)

	f, err = New(&config.Config{Source: config.SourceFile, BalancesFile: "x.json"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileFetcher{}, f)

	_, err = New(&config.Config{Source: "carrier-pigeon"}, nil)
	assert.Error(t, err)

	_, err = New(nil, nil)
	assert.Error(t, err)
}
