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
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/clearo-labs/clearo/database/types"
)

// Txn is a wrapper that coordinates both metadata and blob transactions.
// Metadata and blob are first-class siblings, not nested.
type Txn struct {
	db          *Database
	blobTxn     types.Txn
	metadataTxn types.Txn
	lock        sync.Mutex
	finished    bool
	readWrite   bool
	// Record writes in first-touch order, replayed backwards if the
	// metadata commit fails after the blob commit
	blobWrites     map[string]*blobWrite
	blobWriteOrder []string
}

type blobWrite struct {
	prev    []byte
	written []byte
	existed bool
	deleted bool
}

func NewTxn(db *Database, readWrite bool) *Txn {
	t := &Txn{db: db, readWrite: readWrite}
	// The blob transaction is opened first so its read snapshot predates
	// any wait on the metadata connection
	if bs := db.Blob(); bs != nil {
		t.blobTxn = bs.NewTransaction(readWrite)
	}
	if ms := db.Metadata(); ms != nil {
		t.metadataTxn = ms.Transaction()
	}
	return t
}

func NewBlobOnlyTxn(db *Database, readWrite bool) *Txn {
	t := &Txn{db: db, readWrite: readWrite}
	if bs := db.Blob(); bs != nil {
		t.blobTxn = bs.NewTransaction(readWrite)
	}
	return t
}

func NewMetadataOnlyTxn(db *Database, readWrite bool) *Txn {
	t := &Txn{db: db, readWrite: readWrite}
	if ms := db.Metadata(); ms != nil {
		t.metadataTxn = ms.Transaction()
	}
	return t
}

func (t *Txn) DB() *Database {
	return t.db
}

// Metadata returns the underlying metadata transaction handle
func (t *Txn) Metadata() types.Txn {
	return t.metadataTxn
}

// Blob returns the blob transaction handle
func (t *Txn) Blob() types.Txn {
	return t.blobTxn
}

func (t *Txn) ReadWrite() bool {
	return t.readWrite
}

// Do executes the specified function in the context of the transaction. Any errors returned will result
// in the transaction being rolled back
func (t *Txn) Do(fn func(*Txn) error) error {
	if err := fn(t); err != nil {
		if err2 := t.Rollback(); err2 != nil {
			return fmt.Errorf(
				"rollback failed: %w: original error: %w",
				err2,
				err,
			)
		}
		return err
	}
	if err := t.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

// trackBlobWrite remembers the value a key held before this transaction
// first touched it and the value it holds now
func (t *Txn) trackBlobWrite(key, prev []byte, existed bool, written []byte) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.blobWrites == nil {
		t.blobWrites = make(map[string]*blobWrite)
	}
	k := string(key)
	w, ok := t.blobWrites[k]
	if !ok {
		w = &blobWrite{
			prev:    bytes.Clone(prev),
			existed: existed,
		}
		t.blobWrites[k] = w
		t.blobWriteOrder = append(t.blobWriteOrder, k)
	}
	w.written = bytes.Clone(written)
	w.deleted = written == nil
}

func (t *Txn) Commit() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.finished {
		return nil
	}
	// Fail fast if neither store is available for a read-write transaction
	if t.readWrite && t.blobTxn == nil && t.metadataTxn == nil {
		t.finished = true
		return types.ErrNoStoreAvailable
	}
	// No need to commit for read-only, but we do want to free up resources
	if !t.readWrite {
		return t.rollback()
	}
	// Update the commit timestamp in both DBs if using both
	if t.blobTxn != nil && t.metadataTxn != nil {
		commitTimestamp := time.Now().UnixMilli()
		if err := t.db.updateCommitTimestamp(t, commitTimestamp); err != nil {
			_ = t.blobTxn.Rollback()
			_ = t.metadataTxn.Rollback()
			t.finished = true
			return fmt.Errorf("failed to update commit timestamp: %w", err)
		}
	}
	// Commit blob transaction first (so if this fails, metadata never commits)
	if t.blobTxn != nil {
		if err := t.blobTxn.Commit(); err != nil {
			if t.metadataTxn != nil {
				_ = t.metadataTxn.Rollback()
			}
			t.finished = true
			return fmt.Errorf("blob commit failed: %w", err)
		}
	}
	if t.metadataTxn != nil {
		if err := t.metadataTxn.Commit(); err != nil {
			_ = t.metadataTxn.Rollback()
			t.finished = true
			if t.blobTxn == nil {
				return fmt.Errorf("metadata commit failed: %w", err)
			}
			if revertErr := t.db.revertBlobWrites(t); revertErr != nil {
				t.db.logger.Error(
					"partial commit: blob committed, metadata failed",
					"component", "database",
					"error", err,
					"revert_error", revertErr,
				)
				return fmt.Errorf(
					"partial commit: metadata commit failed after blob commit: %w",
					errors.Join(err, revertErr),
				)
			}
			t.db.logger.Warn(
				"metadata commit failed, record store changes reverted",
				"component", "database",
				"error", err,
				"records", len(t.blobWriteOrder),
			)
			return fmt.Errorf(
				"metadata commit failed, record store changes reverted: %w",
				err,
			)
		}
	}
	t.finished = true
	return nil
}

// revertBlobWrites restores every record t wrote and realigns the blob
// commit timestamp with the metadata store. A record changed again by a
// later transaction is left alone.
func (d *Database) revertBlobWrites(t *Txn) error {
	rt := NewBlobOnlyTxn(d, true)
	for i := len(t.blobWriteOrder) - 1; i >= 0; i-- {
		key := []byte(t.blobWriteOrder[i])
		w := t.blobWrites[t.blobWriteOrder[i]]
		cur, err := d.Blob().Get(rt.Blob(), key)
		present := true
		if err != nil {
			if !errors.Is(err, types.ErrBlobKeyNotFound) {
				rt.Release()
				return err
			}
			present = false
		}
		if w.deleted == present || (present && !bytes.Equal(cur, w.written)) {
			d.logger.Warn(
				"record changed after failed commit, not reverting",
				"component", "database",
			)
			continue
		}
		if w.existed {
			err = d.Blob().Set(rt.Blob(), key, w.prev)
		} else {
			err = d.Blob().Delete(rt.Blob(), key)
		}
		if err != nil {
			rt.Release()
			return err
		}
	}
	ts, err := d.Metadata().GetCommitTimestamp()
	if err != nil {
		rt.Release()
		return err
	}
	if ts > 0 {
		if err := d.Blob().SetCommitTimestamp(ts, rt.Blob()); err != nil {
			rt.Release()
			return err
		}
	}
	return rt.Commit()
}

func (t *Txn) Rollback() error {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.rollback()
}

func (t *Txn) rollback() error {
	if t.finished {
		return nil
	}
	var errs []error
	if t.blobTxn != nil {
		if err := t.blobTxn.Rollback(); err != nil {
			errs = append(errs, fmt.Errorf("blob rollback: %w", err))
		}
	}
	if t.metadataTxn != nil {
		if err := t.metadataTxn.Rollback(); err != nil {
			errs = append(errs, fmt.Errorf("metadata rollback: %w", err))
		}
	}
	t.finished = true
	return errors.Join(errs...)
}

// Release releases transaction resources. For read-only transactions, this
// releases locks and resources. For read-write transactions, this is equivalent
// to Rollback. Use this in defer statements for clean resource cleanup.
// Errors are logged but not returned, making this safe for deferred calls.
func (t *Txn) Release() {
	if err := t.Rollback(); err != nil {
		t.db.logger.Debug(
			"transaction release failed",
			"component", "database",
			"error", err,
			"read_write", t.readWrite,
		)
	}
}

// Update runs fn in a new read-write transaction that is also reachable
// from the context passed to fn. The transaction commits when fn returns
// nil and is discarded otherwise.
func (d *Database) Update(
	ctx context.Context,
	fn func(context.Context, *Txn) error,
) error {
	txn := d.Transaction(true)
	return txn.Do(func(txn *Txn) error {
		return fn(WithTxn(ctx, txn), txn)
	})
}

// UpdateRecords runs fn in a read-write transaction on the record store
// alone. It never waits on the metadata writer, so stake writes inside fn
// fail with ErrNoMetadataTxn.
func (d *Database) UpdateRecords(
	ctx context.Context,
	fn func(context.Context, *Txn) error,
) error {
	txn := NewBlobOnlyTxn(d, true)
	return txn.Do(func(txn *Txn) error {
		return fn(WithTxn(ctx, txn), txn)
	})
}

// View runs fn in a read-only transaction on the record store
func (d *Database) View(
	ctx context.Context,
	fn func(context.Context, *Txn) error,
) error {
	txn := NewBlobOnlyTxn(d, false)
	defer txn.Release()
	return fn(WithTxn(ctx, txn), txn)
}
