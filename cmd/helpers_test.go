package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrisense/maizeguard/internal/config"
	"github.com/agrisense/maizeguard/internal/store"
)

func TestInitStoreSQLite(t *testing.T) {
	cfg := &config.Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = filepath.Join(t.TempDir(), "scans.db")

	st, err := initStore(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	// migration already ran, listing an empty store works
	scans, err := st.ListScans(context.Background(), store.ScanFilter{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, scans)
}

func TestInitStoreUnknownDriver(t *testing.T) {
	cfg := &config.Config{}
	cfg.Store.Driver = "oracle"

	_, err := initStore(context.Background(), cfg)
	assert.Error(t, err)
}

func TestFmtFloat(t *testing.T) {
	assert.Equal(t, "-", fmtFloat(nil))
	v := 23.456789
	assert.Equal(t, "23.4568", fmtFloat(&v))
}
