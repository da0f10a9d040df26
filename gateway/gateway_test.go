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

package gateway_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearo-labs/clearo/address"
	"github.com/clearo-labs/clearo/auth"
	"github.com/clearo-labs/clearo/database"
	"github.com/clearo-labs/clearo/event"
	"github.com/clearo-labs/clearo/gateway"
	"github.com/clearo-labs/clearo/keystore"
	"github.com/clearo-labs/clearo/registry"
	"github.com/clearo-labs/clearo/stake"
	"github.com/clearo-labs/clearo/verification"
)

var (
	registryProgram     = address.ProgramIDFromName("registry")
	verificationProgram = address.ProgramIDFromName("verification")
)

type testEnv struct {
	db        *database.Database
	eventBus  *event.EventBus
	registry  *registry.Registry
	challenge *verification.Challenge
	ledger    *stake.SqliteLedger
	promStats *prometheus.Registry
	owner     *keystore.Key
	verifier  *keystore.Key
	scorer    *keystore.Key
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
		owner:     testKey(t, 1),
		verifier:  testKey(t, 3),
		scorer:    testKey(t, 4),
		promStats: prometheus.NewRegistry(),
	}
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	env.db = db
	env.eventBus = event.NewEventBus(nil, nil)
	t.Cleanup(func() {
		env.eventBus.Close()
		_ = db.Close()
	})
	guard := auth.NewGuard(auth.Principals{
		VerificationAuthority: env.verifier.Identity(),
		ScoringAuthority:      env.scorer.Identity(),
	})
	env.registry, err = registry.New(registry.Config{
		Database: db,
		Guard:    guard,
		EventBus: env.eventBus,
		Program:  registryProgram,
	})
	require.NoError(t, err)
	env.ledger, err = stake.NewSqliteLedger(stake.SqliteLedgerConfig{Database: db})
	require.NoError(t, err)
	var treasury auth.Identity
	treasury[0] = 0xee
	env.challenge, err = verification.New(verification.Config{
		Database: db,
		Guard:    guard,
		Ledger:   env.ledger,
		EventBus: env.eventBus,
		Treasury: treasury,
		Program:  verificationProgram,
	})
	require.NoError(t, err)
	require.NoError(t, env.ledger.Mint(context.Background(), env.owner.Identity(), 100_000_000))
	return env
}

func (env *testEnv) register(t *testing.T, name string) address.Address {
	t.Helper()
	c, err := auth.Sign(auth.RoleOwner, env.owner,
		registry.RegisterProjectMessage(registryProgram, name, ""))
	require.NoError(t, err)
	addr, err := env.registry.RegisterProject(context.Background(), c, name, "")
	require.NoError(t, err)
	return addr
}

func (env *testEnv) proveOwnership(t *testing.T, projectID string) {
	t.Helper()
	env.proveOwnershipAs(t, env.owner, projectID)
}

func (env *testEnv) proveOwnershipAs(t *testing.T, key *keystore.Key, projectID string) {
	t.Helper()
	ctx := context.Background()
	c, err := auth.Sign(auth.RoleOwner, key,
		verification.InitializeMessage(verificationProgram, projectID))
	require.NoError(t, err)
	_, err = env.challenge.Initialize(ctx, c, projectID)
	require.NoError(t, err)
	c, err = auth.Sign(auth.RoleOwner, key,
		verification.VerifyOwnershipMessage(verificationProgram, projectID, verification.MinAmount))
	require.NoError(t, err)
	require.NoError(t, env.challenge.VerifyOwnership(ctx, c, projectID, verification.MinAmount))
}

func (env *testEnv) relay(t *testing.T, key *keystore.Key) *gateway.VerificationRelay {
	t.Helper()
	authority, err := gateway.NewAuthority(auth.RoleVerificationAuthority, key)
	require.NoError(t, err)
	relay, err := gateway.NewVerificationRelay(gateway.VerificationRelayConfig{
		EventBus:     env.eventBus,
		Registry:     env.registry,
		Authority:    authority,
		PromRegistry: env.promStats,
	})
	require.NoError(t, err)
	require.NoError(t, relay.Start(context.Background()))
	t.Cleanup(func() {
		_ = relay.Stop()
	})
	return relay
}

func TestAuthorityRoles(t *testing.T) {
	key := testKey(t, 3)
	_, err := gateway.NewAuthority(auth.RoleOwner, key)
	require.ErrorIs(t, err, gateway.ErrNotAuthorityRole)
	_, err = gateway.NewAuthority(auth.RoleVoter, key)
	require.ErrorIs(t, err, gateway.ErrNotAuthorityRole)

	authority, err := gateway.NewAuthority(auth.RoleScoringAuthority, key)
	require.NoError(t, err)
	msg := registry.UpdateScoreMessage(registryProgram, address.Address{1}, 9)
	c, err := authority.Authorize(msg)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleScoringAuthority, c.Role())
	assert.Equal(t, key.Identity(), c.Signer())
	assert.True(t, c.Covers(msg))

	_, err = gateway.NewScoreSubmitter(gateway.ScoreSubmitterConfig{
		Registry:  &registry.Registry{},
		Authority: authority,
	})
	require.NoError(t, err)
	eventBus := event.NewEventBus(nil, nil)
	defer eventBus.Close()
	_, err = gateway.NewVerificationRelay(gateway.VerificationRelayConfig{
		EventBus:  eventBus,
		Registry:  &registry.Registry{},
		Authority: authority,
	})
	require.Error(t, err)
}

func TestVerificationRelaySetsVerified(t *testing.T) {
	env := newTestEnv(t)
	env.relay(t, env.verifier)
	project := env.register(t, "Acme")

	env.proveOwnership(t, project.String())
	require.Eventually(t, func() bool {
		rec, err := env.registry.GetProject(context.Background(), project)
		return err == nil && rec.Verified
	}, 2*time.Second, 10*time.Millisecond)

	rec, err := env.registry.GetProject(context.Background(), project)
	require.NoError(t, err)
	assert.NotZero(t, rec.VerifiedAt)
	require.Eventually(t, func() bool {
		err := testutil.GatherAndCompare(env.promStats, strings.NewReader(`
# HELP clearo_gateway_submissions_total authority submissions by outcome
# TYPE clearo_gateway_submissions_total counter
clearo_gateway_submissions_total{gateway="verification",outcome="submitted"} 1
`), "clearo_gateway_submissions_total")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestVerificationRelayRejectsForeignProjectID(t *testing.T) {
	env := newTestEnv(t)
	relay := env.relay(t, env.verifier)

	err := relay.Relay(context.Background(), verification.Record{
		ProjectID: "not-an-address",
		Verified:  true,
	})
	require.Error(t, err)

	// Unverified records are ignored
	require.NoError(t, relay.Relay(context.Background(), verification.Record{
		ProjectID: "not-an-address",
	}))

	// Unknown project addresses are refused by the registry
	missing, _ := env.registry.ProjectAddress(env.owner.Identity(), "Missing")
	err = relay.Relay(context.Background(), verification.Record{
		ProjectID: missing.String(),
		Verified:  true,
	})
	require.ErrorIs(t, err, registry.ErrProjectNotFound)
}

func TestVerificationRelayRejectsOtherOwner(t *testing.T) {
	env := newTestEnv(t)
	env.relay(t, env.verifier)
	project := env.register(t, "Acme")
	mallory := testKey(t, 9)
	require.NoError(t, env.ledger.Mint(context.Background(), mallory.Identity(), verification.MinAmount))

	// The challenge itself succeeds, the relay must not act on it
	env.proveOwnershipAs(t, mallory, project.String())
	require.Eventually(t, func() bool {
		err := testutil.GatherAndCompare(env.promStats, strings.NewReader(`
# HELP clearo_gateway_submissions_total authority submissions by outcome
# TYPE clearo_gateway_submissions_total counter
clearo_gateway_submissions_total{gateway="verification",outcome="rejected"} 1
`), "clearo_gateway_submissions_total")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	rec, err := env.registry.GetProject(context.Background(), project)
	require.NoError(t, err)
	assert.False(t, rec.Verified)
}

func TestVerificationRelayOwnerMismatch(t *testing.T) {
	env := newTestEnv(t)
	relay := env.relay(t, env.verifier)
	project := env.register(t, "Acme")

	err := relay.Relay(context.Background(), verification.Record{
		ProjectID: project.String(),
		Owner:     testKey(t, 9).Identity(),
		Verified:  true,
	})
	require.ErrorIs(t, err, gateway.ErrOwnerMismatch)
	rec, err := env.registry.GetProject(context.Background(), project)
	require.NoError(t, err)
	assert.False(t, rec.Verified)

	require.NoError(t, relay.Relay(context.Background(), verification.Record{
		ProjectID: project.String(),
		Owner:     env.owner.Identity(),
		Verified:  true,
	}))
	rec, err = env.registry.GetProject(context.Background(), project)
	require.NoError(t, err)
	assert.True(t, rec.Verified)
}

func TestVerificationRelayContextCancel(t *testing.T) {
	env := newTestEnv(t)
	authority, err := gateway.NewAuthority(auth.RoleVerificationAuthority, env.verifier)
	require.NoError(t, err)
	relay, err := gateway.NewVerificationRelay(gateway.VerificationRelayConfig{
		EventBus:  env.eventBus,
		Registry:  env.registry,
		Authority: authority,
	})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, relay.Start(ctx))
	cancel()

	// More events than a subscriber queue holds
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 3 * event.EventQueueSize {
			env.eventBus.Publish(
				verification.VerifiedEventType,
				event.NewEvent(
					verification.VerifiedEventType,
					verification.VerifiedEvent{},
				),
			)
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked after the relay context was cancelled")
	}
	require.NoError(t, relay.Stop())
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		env.eventBus.Close()
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("event bus close blocked")
	}
}

func TestVerificationRelayWrongKey(t *testing.T) {
	env := newTestEnv(t)
	relay := env.relay(t, env.scorer)
	project := env.register(t, "Acme")
	before, err := env.db.GetRecord(address.KindProject, project, nil)
	require.NoError(t, err)

	err = relay.Relay(context.Background(), verification.Record{
		ProjectID: project.String(),
		Owner:     env.owner.Identity(),
		Verified:  true,
	})
	require.ErrorIs(t, err, auth.ErrUnauthorized)
	after, err := env.db.GetRecord(address.KindProject, project, nil)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestVerificationRelayStop(t *testing.T) {
	env := newTestEnv(t)
	relay := env.relay(t, env.verifier)
	require.NoError(t, relay.Stop())
	require.NoError(t, relay.Stop())

	project := env.register(t, "Acme")
	env.proveOwnership(t, project.String())
	rec, err := env.registry.GetProject(context.Background(), project)
	require.NoError(t, err)
	assert.False(t, rec.Verified)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, relay.Start(ctx))
}

func TestScoreSubmitter(t *testing.T) {
	env := newTestEnv(t)
	project := env.register(t, "Acme")
	authority, err := gateway.NewAuthority(auth.RoleScoringAuthority, env.scorer)
	require.NoError(t, err)
	submitter, err := gateway.NewScoreSubmitter(gateway.ScoreSubmitterConfig{
		Registry:     env.registry,
		Authority:    authority,
		PromRegistry: env.promStats,
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, submitter.Submit(ctx, project, 255))
	rec, err := env.registry.GetProject(ctx, project)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), rec.TransparencyScore)

	require.ErrorIs(t, submitter.Submit(ctx, project, 256), registry.ErrInvalidScore)
	require.ErrorIs(t, submitter.Submit(ctx, project, -1), registry.ErrInvalidScore)
	rec, err = env.registry.GetProject(ctx, project)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), rec.TransparencyScore)

	require.NoError(t, testutil.GatherAndCompare(env.promStats, strings.NewReader(`
# HELP clearo_gateway_submissions_total authority submissions by outcome
# TYPE clearo_gateway_submissions_total counter
clearo_gateway_submissions_total{gateway="score",outcome="invalid"} 2
clearo_gateway_submissions_total{gateway="score",outcome="submitted"} 1
`), "clearo_gateway_submissions_total"))
}
