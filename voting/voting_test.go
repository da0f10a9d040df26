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

package voting_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearo-labs/clearo/address"
	"github.com/clearo-labs/clearo/auth"
	"github.com/clearo-labs/clearo/database"
	"github.com/clearo-labs/clearo/keystore"
	"github.com/clearo-labs/clearo/stake"
	"github.com/clearo-labs/clearo/voting"
)

var testProgram = address.ProgramIDFromName("voting")

type testEnv struct {
	db     *database.Database
	stake  *stake.SqliteLedger
	votes  *voting.Ledger
	now    time.Time
	voter  *keystore.Key
	other  *keystore.Key
	target address.Address
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
		voter: testKey(t, 1),
		other: testKey(t, 2),
	}
	env.target, _ = address.Derive(
		address.ProgramIDFromName("registry"),
		address.KindProject,
		[]byte("owner"),
		[]byte("Acme"),
	)
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	env.db = db
	t.Cleanup(func() {
		_ = db.Close()
	})
	clock := func() time.Time { return env.now }
	env.stake, err = stake.NewSqliteLedger(stake.SqliteLedgerConfig{
		Database: db,
		Clock:    clock,
	})
	require.NoError(t, err)
	env.votes, err = voting.New(voting.Config{
		Database: db,
		Guard:    auth.NewGuard(auth.Principals{}),
		Ledger:   env.stake,
		Clock:    clock,
		Program:  testProgram,
	})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, env.stake.Mint(ctx, env.voter.Identity(), 10_000_000))
	require.NoError(t, env.stake.Mint(ctx, env.other.Identity(), 10_000_000))
	return env
}

func (env *testEnv) vote(
	t *testing.T,
	key *keystore.Key,
	voteType voting.VoteType,
	amount uint64,
) (address.Address, error) {
	t.Helper()
	c, err := auth.Sign(auth.RoleVoter, key,
		voting.VoteMessage(testProgram, env.target, voteType, amount))
	require.NoError(t, err)
	return env.votes.Vote(context.Background(), c, env.target, voteType, amount)
}

func (env *testEnv) changeVote(
	t *testing.T,
	key *keystore.Key,
	vote address.Address,
	voteType voting.VoteType,
) error {
	t.Helper()
	c, err := auth.Sign(auth.RoleVoter, key,
		voting.ChangeVoteMessage(testProgram, vote, voteType))
	require.NoError(t, err)
	return env.votes.ChangeVote(context.Background(), c, vote, voteType)
}

func (env *testEnv) balance(t *testing.T, key *keystore.Key) uint64 {
	t.Helper()
	balance, err := env.stake.Balance(context.Background(), key.Identity())
	require.NoError(t, err)
	return balance
}

func TestVoteConsumesStakeOnce(t *testing.T) {
	env := newTestEnv(t)
	addr, err := env.vote(t, env.voter, voting.Upvote, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(9_000_000), env.balance(t, env.voter))

	expected, _ := env.votes.VoteAddress(env.voter.Identity(), env.target)
	assert.Equal(t, expected, addr)
	rec, err := env.votes.GetVote(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, voting.Upvote, rec.VoteType)
	assert.Equal(t, uint64(1_000_000), rec.Amount)
	assert.Equal(t, env.now.Unix(), rec.VotedAt)
	assert.Equal(t, env.target, rec.Project)

	// A second vote on the same project collides and burns nothing
	_, err = env.vote(t, env.voter, voting.Downvote, 2_000_000)
	require.ErrorIs(t, err, database.ErrAddressCollision)
	assert.Equal(t, uint64(9_000_000), env.balance(t, env.voter))

	// Another voter gets its own record
	otherAddr, err := env.vote(t, env.other, voting.Downvote, 3_000_000)
	require.NoError(t, err)
	assert.NotEqual(t, addr, otherAddr)
	assert.Equal(t, uint64(7_000_000), env.balance(t, env.other))
}

func TestVoteBelowMinimum(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.vote(t, env.voter, voting.Upvote, 999_999)
	require.ErrorIs(t, err, voting.ErrInsufficientTokens)
	_, err = env.vote(t, env.voter, voting.Upvote, 0)
	require.ErrorIs(t, err, voting.ErrInsufficientTokens)
	assert.Equal(t, uint64(10_000_000), env.balance(t, env.voter))

	addr, _ := env.votes.VoteAddress(env.voter.Identity(), env.target)
	exists, err := env.db.RecordExists(address.KindVote, addr, nil)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestVoteLedgerDeclineLeavesNoRecord(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.vote(t, env.voter, voting.Upvote, 10_000_001)
	require.ErrorIs(t, err, stake.ErrConsumptionFailed)
	assert.Equal(t, uint64(10_000_000), env.balance(t, env.voter))

	addr, _ := env.votes.VoteAddress(env.voter.Identity(), env.target)
	_, err = env.votes.GetVote(context.Background(), addr)
	require.ErrorIs(t, err, voting.ErrVoteNotFound)

	// The failed attempt does not block a later vote
	_, err = env.vote(t, env.voter, voting.Upvote, 10_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), env.balance(t, env.voter))
}

func TestChangeVoteIsFree(t *testing.T) {
	env := newTestEnv(t)
	addr, err := env.vote(t, env.voter, voting.Upvote, 2_000_000)
	require.NoError(t, err)
	votedAt := env.now.Unix()

	env.now = env.now.Add(time.Hour)
	require.NoError(t, env.changeVote(t, env.voter, addr, voting.Downvote))
	rec, err := env.votes.GetVote(context.Background(), addr)
	require.NoError(t, err)
	assert.Equal(t, voting.Downvote, rec.VoteType)
	assert.Equal(t, uint64(2_000_000), rec.Amount)
	assert.Equal(t, votedAt, rec.VotedAt)
	assert.Equal(t, env.now.Unix(), rec.UpdatedAt)
	assert.Equal(t, uint64(8_000_000), env.balance(t, env.voter))
}

func TestChangeVoteRequiresVoter(t *testing.T) {
	env := newTestEnv(t)
	addr, err := env.vote(t, env.voter, voting.Upvote, 1_000_000)
	require.NoError(t, err)
	before, err := env.db.GetRecord(address.KindVote, addr, nil)
	require.NoError(t, err)

	err = env.changeVote(t, env.other, addr, voting.Downvote)
	require.ErrorIs(t, err, auth.ErrUnauthorized)
	after, err := env.db.GetRecord(address.KindVote, addr, nil)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestChangeVoteMissing(t *testing.T) {
	env := newTestEnv(t)
	addr, _ := env.votes.VoteAddress(env.voter.Identity(), env.target)
	err := env.changeVote(t, env.voter, addr, voting.Downvote)
	require.ErrorIs(t, err, voting.ErrVoteNotFound)
}

func TestVoteTypes(t *testing.T) {
	for _, voteType := range []voting.VoteType{voting.Upvote, voting.Downvote} {
		parsed, err := voting.ParseVoteType(voteType.String())
		require.NoError(t, err)
		assert.Equal(t, voteType, parsed)
	}
	_, err := voting.ParseVoteType("sideways")
	require.ErrorIs(t, err, voting.ErrInvalidVoteType)
	assert.False(t, voting.VoteType(2).Valid())

	env := newTestEnv(t)
	_, err = env.vote(t, env.voter, voting.VoteType(7), 1_000_000)
	require.ErrorIs(t, err, voting.ErrInvalidVoteType)
}

func TestConcurrentVotesConflict(t *testing.T) {
	env := newTestEnv(t)
	const attempts = 4
	errs := make(chan error, attempts)
	for range attempts {
		go func() {
			c, err := auth.Sign(auth.RoleVoter, env.voter,
				voting.VoteMessage(testProgram, env.target, voting.Upvote, 1_000_000))
			if err != nil {
				errs <- err
				return
			}
			_, err = env.votes.Vote(context.Background(), c, env.target, voting.Upvote, 1_000_000)
			errs <- err
		}()
	}
	var succeeded int
	for range attempts {
		err := <-errs
		if err == nil {
			succeeded++
			continue
		}
		assert.True(
			t,
			isCollisionOrConflict(err),
			"unexpected error: %v", err,
		)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, uint64(9_000_000), env.balance(t, env.voter))
}

func isCollisionOrConflict(err error) bool {
	return errors.Is(err, database.ErrAddressCollision) ||
		errors.Is(err, database.ErrConflict)
}
