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

package verification_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearo-labs/clearo/address"
	"github.com/clearo-labs/clearo/auth"
	"github.com/clearo-labs/clearo/database"
	"github.com/clearo-labs/clearo/event"
	"github.com/clearo-labs/clearo/keystore"
	"github.com/clearo-labs/clearo/stake"
	"github.com/clearo-labs/clearo/verification"
)

var testProgram = address.ProgramIDFromName("verification")

type testEnv struct {
	db        *database.Database
	ledger    *stake.SqliteLedger
	challenge *verification.Challenge
	eventBus  *event.EventBus
	now       time.Time
	owner     *keystore.Key
	other     *keystore.Key
	treasury  auth.Identity
}

func testKey(t *testing.T, b byte) *keystore.Key {
	t.Helper()
	key, err := keystore.NewKeyFromSeed(bytes.Repeat([]byte{b}, 32))
	require.NoError(t, err)
	return key
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		now:   time.Unix(1_700_000_000, 0),
		owner: testKey(t, 1),
		other: testKey(t, 2),
	}
	env.treasury[0] = 0xee
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	env.db = db
	env.eventBus = event.NewEventBus(nil, nil)
	t.Cleanup(func() {
		env.eventBus.Close()
		_ = db.Close()
	})
	clock := func() time.Time { return env.now }
	env.ledger, err = stake.NewSqliteLedger(stake.SqliteLedgerConfig{
		Database: db,
		Clock:    clock,
	})
	require.NoError(t, err)
	env.challenge, err = verification.New(verification.Config{
		Database: db,
		Guard:    auth.NewGuard(auth.Principals{}),
		Ledger:   env.ledger,
		EventBus: env.eventBus,
		Clock:    clock,
		Treasury: env.treasury,
		Program:  testProgram,
	})
	require.NoError(t, err)
	require.NoError(t, env.ledger.Mint(context.Background(), env.owner.Identity(), 200_000_000))
	return env
}

func (env *testEnv) initialize(t *testing.T, key *keystore.Key, projectID string) (*verification.Record, error) {
	t.Helper()
	c, err := auth.Sign(auth.RoleOwner, key, verification.InitializeMessage(testProgram, projectID))
	require.NoError(t, err)
	return env.challenge.Initialize(context.Background(), c, projectID)
}

func (env *testEnv) verify(t *testing.T, key *keystore.Key, projectID string, amount uint64) error {
	t.Helper()
	c, err := auth.Sign(auth.RoleOwner, key, verification.VerifyOwnershipMessage(testProgram, projectID, amount))
	require.NoError(t, err)
	return env.challenge.VerifyOwnership(context.Background(), c, projectID, amount)
}

func (env *testEnv) balance(t *testing.T, id auth.Identity) uint64 {
	t.Helper()
	balance, err := env.ledger.Balance(context.Background(), id)
	require.NoError(t, err)
	return balance
}

func TestGenerateCode(t *testing.T) {
	ts := time.Unix(1_700_000_000, 0)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1_700_000_000)
	digest := sha256.Sum256(buf[:])
	expected := hex.EncodeToString(digest[:8])

	code := verification.GenerateCode(ts)
	assert.Equal(t, expected, code)
	assert.Len(t, code, verification.CodeLength)
	assert.Equal(t, strings.ToLower(code), code)
	assert.Equal(t, code, verification.GenerateCode(ts))
	assert.NotEqual(t, code, verification.GenerateCode(ts.Add(time.Second)))
}

func TestInitialize(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	state, err := env.challenge.State(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, verification.StateUninitialized, state)

	rec, err := env.initialize(t, env.owner, "acme")
	require.NoError(t, err)
	assert.Equal(t, verification.GenerateCode(env.now), rec.Code)
	assert.Equal(t, env.owner.Identity(), rec.Owner)

	stored, err := env.challenge.GetVerification(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, rec.Code, stored.Code)
	assert.False(t, stored.Verified)
	state, err = env.challenge.State(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, verification.StateInitialized, state)

	// A project id can be initialized once, by anyone
	env.now = env.now.Add(time.Hour)
	_, err = env.initialize(t, env.other, "acme")
	require.ErrorIs(t, err, database.ErrAddressCollision)
	stored, err = env.challenge.GetVerification(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, rec.Code, stored.Code)
	assert.Equal(t, env.owner.Identity(), stored.Owner)
}

func TestInitializeProjectIDBudget(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.initialize(t, env.owner, strings.Repeat("p", verification.MaxProjectIDLength+1))
	require.ErrorIs(t, err, verification.ErrFieldTooLong)
	_, err = env.initialize(t, env.owner, strings.Repeat("p", verification.MaxProjectIDLength))
	require.NoError(t, err)
}

func TestVerifyOwnershipBounds(t *testing.T) {
	testDefs := []struct {
		amount uint64
		err    error
	}{
		{amount: 4_999_999, err: verification.ErrInvalidAmount},
		{amount: 50_000_001, err: verification.ErrInvalidAmount},
		{amount: 0, err: verification.ErrInvalidAmount},
		{amount: 5_000_000},
		{amount: 50_000_000},
		{amount: 12_345_678},
	}
	for _, testDef := range testDefs {
		env := newTestEnv(t)
		_, err := env.initialize(t, env.owner, "acme")
		require.NoError(t, err)
		err = env.verify(t, env.owner, "acme", testDef.amount)
		rec, getErr := env.challenge.GetVerification(context.Background(), "acme")
		require.NoError(t, getErr)
		if testDef.err != nil {
			require.ErrorIs(t, err, testDef.err, "amount %d", testDef.amount)
			assert.False(t, rec.Verified)
			assert.Equal(t, uint64(200_000_000), env.balance(t, env.owner.Identity()))
			continue
		}
		require.NoError(t, err, "amount %d", testDef.amount)
		assert.True(t, rec.Verified)
		assert.Equal(t, env.now.Unix(), rec.VerifiedAt)
		assert.Equal(t, testDef.amount, env.balance(t, env.treasury))
		assert.Equal(t, 200_000_000-testDef.amount, env.balance(t, env.owner.Identity()))
	}
}

func TestVerifyOwnershipMonotonic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, verifiedCh := env.eventBus.Subscribe(verification.VerifiedEventType)
	_, err := env.initialize(t, env.owner, "acme")
	require.NoError(t, err)
	require.NoError(t, env.verify(t, env.owner, "acme", 5_000_000))
	first, err := env.challenge.GetVerification(ctx, "acme")
	require.NoError(t, err)

	select {
	case evt := <-verifiedCh:
		data, ok := evt.Data.(verification.VerifiedEvent)
		require.True(t, ok)
		assert.Equal(t, "acme", data.Record.ProjectID)
	case <-time.After(time.Second):
		t.Fatal("verified event not published")
	}

	env.now = env.now.Add(time.Hour)
	err = env.verify(t, env.owner, "acme", 5_000_000)
	require.ErrorIs(t, err, verification.ErrAlreadyVerified)
	second, err := env.challenge.GetVerification(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, first.VerifiedAt, second.VerifiedAt)
	// Only the first proof moved stake
	assert.Equal(t, uint64(5_000_000), env.balance(t, env.treasury))

	state, err := env.challenge.State(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, verification.StateVerified, state)
}

func TestVerifyOwnershipNotInitialized(t *testing.T) {
	env := newTestEnv(t)
	err := env.verify(t, env.owner, "missing", 5_000_000)
	require.ErrorIs(t, err, verification.ErrNotInitialized)
}

func TestVerifyOwnershipRequiresRecordOwner(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.ledger.Mint(context.Background(), env.other.Identity(), 10_000_000))
	_, err := env.initialize(t, env.owner, "acme")
	require.NoError(t, err)
	before, err := env.db.GetRecord(address.KindVerification, mustAddress(env, "acme"), nil)
	require.NoError(t, err)

	err = env.verify(t, env.other, "acme", 5_000_000)
	require.ErrorIs(t, err, auth.ErrUnauthorized)
	after, err := env.db.GetRecord(address.KindVerification, mustAddress(env, "acme"), nil)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, uint64(10_000_000), env.balance(t, env.other.Identity()))
}

func TestVerifyOwnershipLedgerDecline(t *testing.T) {
	env := newTestEnv(t)
	poor := testKey(t, 9)
	require.NoError(t, env.ledger.Mint(context.Background(), poor.Identity(), 1_000_000))
	_, err := env.initialize(t, poor, "poor")
	require.NoError(t, err)

	err = env.verify(t, poor, "poor", 5_000_000)
	require.ErrorIs(t, err, stake.ErrConsumptionFailed)
	require.ErrorIs(t, err, stake.ErrInsufficientBalance)
	rec, err := env.challenge.GetVerification(context.Background(), "poor")
	require.NoError(t, err)
	assert.False(t, rec.Verified)
	assert.Equal(t, uint64(1_000_000), env.balance(t, poor.Identity()))
}

type failingLedger struct{}

var errLedgerDown = errors.New("ledger unavailable")

func (failingLedger) Consume(context.Context, auth.Identity, uint64) error {
	return errLedgerDown
}

func (failingLedger) Transfer(context.Context, auth.Identity, auth.Identity, uint64, string) error {
	return errLedgerDown
}

func TestVerifyOwnershipExternalLedgerFailure(t *testing.T) {
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	defer db.Close()
	var treasury auth.Identity
	treasury[0] = 1
	challenge, err := verification.New(verification.Config{
		Database: db,
		Guard:    auth.NewGuard(auth.Principals{}),
		Ledger:   failingLedger{},
		Treasury: treasury,
		Program:  testProgram,
	})
	require.NoError(t, err)
	owner := testKey(t, 1)
	c, err := auth.Sign(auth.RoleOwner, owner, verification.InitializeMessage(testProgram, "acme"))
	require.NoError(t, err)
	_, err = challenge.Initialize(context.Background(), c, "acme")
	require.NoError(t, err)

	c, err = auth.Sign(auth.RoleOwner, owner, verification.VerifyOwnershipMessage(testProgram, "acme", 5_000_000))
	require.NoError(t, err)
	err = challenge.VerifyOwnership(context.Background(), c, "acme", 5_000_000)
	require.ErrorIs(t, err, stake.ErrConsumptionFailed)
	require.ErrorIs(t, err, errLedgerDown)
	state, err := challenge.State(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, verification.StateInitialized, state)
}

func mustAddress(env *testEnv, projectID string) address.Address {
	addr, _ := env.challenge.Address(projectID)
	return addr
}

type projectOwners map[address.Address]auth.Identity

func (p projectOwners) ProjectOwner(_ context.Context, project address.Address) (auth.Identity, error) {
	owner, ok := p[project]
	if !ok {
		return auth.Identity{}, errProjectMissing
	}
	return owner, nil
}

var errProjectMissing = errors.New("project missing")

func TestInitializeRegistryProjectOwner(t *testing.T) {
	env := newTestEnv(t)
	owned := address.Address{1}
	projects := projectOwners{owned: env.owner.Identity()}
	challenge, err := verification.New(verification.Config{
		Database: env.db,
		Guard:    auth.NewGuard(auth.Principals{}),
		Ledger:   env.ledger,
		Clock:    func() time.Time { return env.now },
		Treasury: env.treasury,
		Program:  testProgram,
		Projects: projects,
	})
	require.NoError(t, err)
	env.challenge = challenge

	// Someone else cannot open a challenge on the owner's project
	_, err = env.initialize(t, env.other, owned.String())
	require.ErrorIs(t, err, auth.ErrUnauthorized)
	state, err := challenge.State(context.Background(), owned.String())
	require.NoError(t, err)
	assert.Equal(t, verification.StateUninitialized, state)

	// Unknown registry addresses are refused
	_, err = env.initialize(t, env.owner, address.Address{2}.String())
	require.ErrorIs(t, err, errProjectMissing)

	// Free-form project ids are not looked up
	_, err = env.initialize(t, env.other, "acme")
	require.NoError(t, err)

	rec, err := env.initialize(t, env.owner, owned.String())
	require.NoError(t, err)
	assert.Equal(t, env.owner.Identity(), rec.Owner)
}
