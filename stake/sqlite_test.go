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

package stake_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearo-labs/clearo/auth"
	"github.com/clearo-labs/clearo/database"
	"github.com/clearo-labs/clearo/stake"
)

var errAbort = errors.New("abort")

func newTestLedger(
	t *testing.T,
	reg prometheus.Registerer,
) (*stake.SqliteLedger, *database.Database) {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	ledger, err := stake.NewSqliteLedger(stake.SqliteLedgerConfig{
		Database:     db,
		PromRegistry: reg,
	})
	require.NoError(t, err)
	return ledger, db
}

func identity(b byte) auth.Identity {
	var ret auth.Identity
	ret[0] = b
	return ret
}

func TestMintAndConsume(t *testing.T) {
	reg := prometheus.NewRegistry()
	ledger, _ := newTestLedger(t, reg)
	ctx := context.Background()
	alice := identity(1)

	require.NoError(t, ledger.Mint(ctx, alice, 3_000_000))
	require.NoError(t, ledger.Consume(ctx, alice, 1_000_000))
	balance, err := ledger.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000_000), balance)

	err = ledger.Consume(ctx, alice, 5_000_000)
	require.ErrorIs(t, err, stake.ErrInsufficientBalance)
	balance, err = ledger.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000_000), balance)

	expected := `
# HELP clearo_stake_consumed_total stake burned by votes
# TYPE clearo_stake_consumed_total counter
clearo_stake_consumed_total 1e+06
`
	require.NoError(t, testutil.GatherAndCompare(
		reg,
		strings.NewReader(expected),
		"clearo_stake_consumed_total",
	))
}

func TestZeroAmountRejected(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	ctx := context.Background()
	require.ErrorIs(t, ledger.Mint(ctx, identity(1), 0), stake.ErrInvalidAmount)
	require.ErrorIs(t, ledger.Consume(ctx, identity(1), 0), stake.ErrInvalidAmount)
	require.ErrorIs(
		t,
		ledger.Transfer(ctx, identity(1), identity(2), 0, "memo"),
		stake.ErrInvalidAmount,
	)
}

func TestTransfer(t *testing.T) {
	ledger, _ := newTestLedger(t, nil)
	ctx := context.Background()
	owner := identity(1)
	treasury := identity(2)

	require.NoError(t, ledger.Mint(ctx, owner, 10_000_000))
	require.NoError(t, ledger.Transfer(ctx, owner, treasury, 7_500_000, "a1b2c3d4e5f60718"))
	ownerBalance, err := ledger.Balance(ctx, owner)
	require.NoError(t, err)
	treasuryBalance, err := ledger.Balance(ctx, treasury)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_500_000), ownerBalance)
	assert.Equal(t, uint64(7_500_000), treasuryBalance)

	err = ledger.Transfer(ctx, owner, treasury, 2_500_001, "memo")
	require.ErrorIs(t, err, stake.ErrInsufficientBalance)
}

func TestLedgerJoinsContextTxn(t *testing.T) {
	ledger, db := newTestLedger(t, nil)
	ctx := context.Background()
	voter := identity(3)
	require.NoError(t, ledger.Mint(ctx, voter, 2_000_000))

	// A burn inside an aborted operation is rolled back with it
	err := db.Update(ctx, func(ctx context.Context, _ *database.Txn) error {
		if err := ledger.Consume(ctx, voter, 1_000_000); err != nil {
			return err
		}
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)
	balance, err := ledger.Balance(ctx, voter)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000_000), balance)

	err = db.Update(ctx, func(ctx context.Context, _ *database.Txn) error {
		return ledger.Consume(ctx, voter, 1_000_000)
	})
	require.NoError(t, err)
	balance, err = ledger.Balance(ctx, voter)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), balance)
}

func TestConsumptionError(t *testing.T) {
	assert.NoError(t, stake.ConsumptionError(nil))
	err := stake.ConsumptionError(stake.ErrInsufficientBalance)
	require.ErrorIs(t, err, stake.ErrConsumptionFailed)
	require.ErrorIs(t, err, stake.ErrInsufficientBalance)
	// Wrapping is idempotent
	assert.Equal(t, err, stake.ConsumptionError(err))
}

func TestLedgerInsideReadOnlyTxn(t *testing.T) {
	ledger, db := newTestLedger(t, nil)
	ctx := context.Background()
	alice := identity(3)
	require.NoError(t, ledger.Mint(ctx, alice, 2_000_000))

	err := db.View(ctx, func(ctx context.Context, _ *database.Txn) error {
		balance, err := ledger.Balance(ctx, alice)
		if err != nil {
			return err
		}
		assert.Equal(t, uint64(2_000_000), balance)
		return ledger.Consume(ctx, alice, 1_000_000)
	})
	require.ErrorIs(t, err, database.ErrReadOnly)
	balance, err := ledger.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000_000), balance)
}

func TestLedgerInsideRecordsOnlyTxn(t *testing.T) {
	ledger, db := newTestLedger(t, nil)
	ctx := context.Background()
	alice := identity(4)
	require.NoError(t, ledger.Mint(ctx, alice, 2_000_000))

	err := db.UpdateRecords(ctx, func(ctx context.Context, _ *database.Txn) error {
		return ledger.Consume(ctx, alice, 1_000_000)
	})
	require.ErrorIs(t, err, database.ErrNoMetadataTxn)
	balance, err := ledger.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000_000), balance)
}
