// Copyright 2026 Clearo Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	b := &BlobStoreBadger{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := prometheus.NewRegistry()
	opts := []BlobStoreBadgerOptionFunc{
		WithDataDir("/tmp/clearo"),
		WithBlockCacheSize(1 << 20),
		WithIndexCacheSize(1 << 19),
		WithValueLogFileSize(1 << 24),
		WithMemTableSize(1 << 22),
		WithLogger(logger),
		WithPromRegistry(registry),
		WithGc(true),
	}
	for _, opt := range opts {
		opt(b)
	}
	assert.Equal(t, "/tmp/clearo", b.dataDir)
	assert.Equal(t, uint64(1<<20), b.blockCacheSize)
	assert.Equal(t, uint64(1<<19), b.indexCacheSize)
	assert.Equal(t, int64(1<<24), b.valueLogFileSize)
	assert.Equal(t, int64(1<<22), b.memTableSize)
	assert.Same(t, logger, b.logger)
	assert.Equal(t, prometheus.Registerer(registry), b.promRegistry)
	assert.True(t, b.gcEnabled)
}

func TestOnDiskStoreReopens(t *testing.T) {
	dir := t.TempDir()
	store, err := New(
		WithDataDir(dir),
		WithGc(false),
		WithValueLogFileSize(1<<20),
		WithMemTableSize(1<<20),
	)
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(dir, "blob"))
	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("key"), []byte("value")))
	require.NoError(t, txn.Commit())
	require.NoError(t, store.Close())

	store, err = New(
		WithDataDir(dir),
		WithGc(false),
		WithValueLogFileSize(1<<20),
		WithMemTableSize(1<<20),
	)
	require.NoError(t, err)
	defer store.Close()
	readTxn := store.NewTransaction(false)
	defer readTxn.Rollback() //nolint:errcheck
	val, err := store.Get(readTxn, []byte("key"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), val)
}
