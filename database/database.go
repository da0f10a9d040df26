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

package database

import (
	"errors"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/clearo-labs/clearo/database/plugin/blob"
	"github.com/clearo-labs/clearo/database/plugin/blob/badger"
	"github.com/clearo-labs/clearo/database/plugin/metadata"
	"github.com/clearo-labs/clearo/database/plugin/metadata/sqlite"
)

// Config holds the storage settings
type Config struct {
	PromRegistry  prometheus.Registerer
	Logger        *slog.Logger
	DataDir       string
	BlobCacheSize uint64
}

// Database pairs the badger record store with the sqlite metadata store.
// Both are written through a single Txn so they commit together.
type Database struct {
	logger   *slog.Logger
	blob     blob.BlobStore
	metadata metadata.MetadataStore
	dataDir  string
}

// Blob returns the underling blob store instance
func (d *Database) Blob() blob.BlobStore {
	return d.blob
}

// DataDir returns the path to the data directory used for storage
func (d *Database) DataDir() string {
	return d.dataDir
}

// Logger returns the logger instance
func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Metadata returns the underlying metadata store instance
func (d *Database) Metadata() metadata.MetadataStore {
	return d.metadata
}

// Transaction starts a new database transaction and returns a handle to it
func (d *Database) Transaction(readWrite bool) *Txn {
	return NewTxn(d, readWrite)
}

// Close cleans up the database connections
func (d *Database) Close() error {
	var err error
	if d.metadata != nil {
		err = errors.Join(err, d.metadata.Close())
	}
	if d.blob != nil {
		err = errors.Join(err, d.blob.Close())
	}
	return err
}

func (d *Database) init() error {
	// Check commit timestamp
	if err := d.checkCommitTimestamp(); err != nil {
		return err
	}
	return nil
}

// New creates a new database instance with optional persistence using the
// provided data directory
func New(cfg *Config) (*Database, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	metadataDb, err := sqlite.New(
		sqlite.WithDataDir(cfg.DataDir),
		sqlite.WithLogger(logger),
		sqlite.WithPromRegistry(cfg.PromRegistry),
	)
	if err != nil {
		if metadataDb != nil {
			_ = metadataDb.Close()
		}
		return nil, err
	}
	blobOpts := []badger.BlobStoreBadgerOptionFunc{
		badger.WithDataDir(cfg.DataDir),
		badger.WithLogger(logger),
		badger.WithPromRegistry(cfg.PromRegistry),
	}
	if cfg.BlobCacheSize > 0 {
		blobOpts = append(blobOpts, badger.WithBlockCacheSize(cfg.BlobCacheSize))
	}
	blobDb, err := badger.New(blobOpts...)
	if err != nil {
		_ = metadataDb.Close()
		if blobDb != nil {
			_ = blobDb.Close()
		}
		return nil, err
	}
	db := &Database{
		logger:   logger,
		blob:     blobDb,
		metadata: metadataDb,
		dataDir:  cfg.DataDir,
	}
	if err := db.init(); err != nil {
		// Database is available for recovery, so return it with error
		return db, err
	}
	return db, nil
}
