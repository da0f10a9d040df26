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
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearo-labs/clearo/address"
	"github.com/clearo-labs/clearo/database/models"
	"github.com/clearo-labs/clearo/database/plugin/metadata"
	"github.com/clearo-labs/clearo/database/types"
)

var errMetadataCommit = errors.New("metadata commit failed")

// failingCommitStore fails metadata commits while fail is set
type failingCommitStore struct {
	metadata.MetadataStore
	fail atomic.Bool
}

type failingCommitTxn struct {
	types.Txn
	store *failingCommitStore
}

func (t *failingCommitTxn) Commit() error {
	if t.store.fail.Load() {
		_ = t.Txn.Rollback()
		return errMetadataCommit
	}
	return t.Txn.Commit()
}

func unwrapTxn(txn types.Txn) types.Txn {
	if w, ok := txn.(*failingCommitTxn); ok {
		return w.Txn
	}
	return txn
}

func (s *failingCommitStore) Transaction() types.Txn {
	return &failingCommitTxn{Txn: s.MetadataStore.Transaction(), store: s}
}

func (s *failingCommitStore) SetCommitTimestamp(ts int64, txn types.Txn) error {
	return s.MetadataStore.SetCommitTimestamp(ts, unwrapTxn(txn))
}

func (s *failingCommitStore) GetStakeAccount(
	identity []byte,
	txn types.Txn,
) (*models.StakeAccount, error) {
	return s.MetadataStore.GetStakeAccount(identity, unwrapTxn(txn))
}

func (s *failingCommitStore) SetStakeBalance(
	identity []byte,
	balance uint64,
	updatedAt int64,
	txn types.Txn,
) error {
	return s.MetadataStore.SetStakeBalance(identity, balance, updatedAt, unwrapTxn(txn))
}

func (s *failingCommitStore) AddStakeBurn(burn *models.StakeBurn, txn types.Txn) error {
	return s.MetadataStore.AddStakeBurn(burn, unwrapTxn(txn))
}

func (s *failingCommitStore) AddStakeTransfer(
	transfer *models.StakeTransfer,
	txn types.Txn,
) error {
	return s.MetadataStore.AddStakeTransfer(transfer, unwrapTxn(txn))
}

func TestMetadataCommitFailureRevertsRecords(t *testing.T) {
	db, err := New(&Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	store := &failingCommitStore{MetadataStore: db.metadata}
	db.metadata = store

	program := address.ProgramIDFromName("voting")
	existing, _ := address.Derive(program, address.KindVote, []byte("existing"))
	created, _ := address.Derive(program, address.KindVote, []byte("created"))
	removed, _ := address.Derive(program, address.KindVote, []byte("removed"))
	voter := make([]byte, 32)
	voter[0] = 7
	ctx := context.Background()
	require.NoError(t, db.Update(ctx, func(_ context.Context, txn *Txn) error {
		if err := db.CreateRecord(address.KindVote, existing, []byte("up"), txn); err != nil {
			return err
		}
		if err := db.CreateRecord(address.KindVote, removed, []byte("gone"), txn); err != nil {
			return err
		}
		return db.CreditStake(voter, 5_000_000, 1, txn)
	}))

	store.fail.Store(true)
	err = db.Update(ctx, func(_ context.Context, txn *Txn) error {
		if err := db.UpdateRecord(address.KindVote, existing, []byte("down"), txn); err != nil {
			return err
		}
		if err := db.UpdateRecord(address.KindVote, existing, []byte("up again"), txn); err != nil {
			return err
		}
		if err := db.CreateRecord(address.KindVote, created, []byte("new"), txn); err != nil {
			return err
		}
		if err := db.DeleteRecord(address.KindVote, removed, txn); err != nil {
			return err
		}
		return db.BurnStake(voter, 1_000_000, 2, txn)
	})
	require.ErrorIs(t, err, errMetadataCommit)
	assert.Contains(t, err.Error(), "reverted")
	store.fail.Store(false)

	val, err := db.GetRecord(address.KindVote, existing, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("up"), val)
	_, err = db.GetRecord(address.KindVote, created, nil)
	require.ErrorIs(t, err, ErrRecordNotFound)
	val, err = db.GetRecord(address.KindVote, removed, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("gone"), val)
	balance, err := db.GetStakeBalance(voter, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000_000), balance)
	require.NoError(t, db.checkCommitTimestamp())

	// The store keeps working once the metadata side recovers
	require.NoError(t, db.Update(ctx, func(_ context.Context, txn *Txn) error {
		return db.CreateRecord(address.KindVote, created, []byte("new"), txn)
	}))
	require.NoError(t, db.checkCommitTimestamp())
}

func TestDeleteRecord(t *testing.T) {
	db, err := New(&Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	addr, _ := address.Derive(address.ProgramIDFromName("registry"), address.KindProject, []byte("a"))
	ctx := context.Background()
	err = db.Update(ctx, func(_ context.Context, txn *Txn) error {
		return db.DeleteRecord(address.KindProject, addr, txn)
	})
	require.ErrorIs(t, err, ErrRecordNotFound)
	require.NoError(t, db.Update(ctx, func(_ context.Context, txn *Txn) error {
		return db.CreateRecord(address.KindProject, addr, []byte("p"), txn)
	}))
	require.NoError(t, db.Update(ctx, func(_ context.Context, txn *Txn) error {
		return db.DeleteRecord(address.KindProject, addr, txn)
	}))
	exists, err := db.RecordExists(address.KindProject, addr, nil)
	require.NoError(t, err)
	assert.False(t, exists)
}
