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

// Package clearo assembles the project registry, the ownership challenge
// and the voting ledger on top of a shared record store.
package clearo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/clearo-labs/clearo/auth"
	"github.com/clearo-labs/clearo/database"
	"github.com/clearo-labs/clearo/event"
	"github.com/clearo-labs/clearo/gateway"
	"github.com/clearo-labs/clearo/registry"
	"github.com/clearo-labs/clearo/stake"
	"github.com/clearo-labs/clearo/verification"
	"github.com/clearo-labs/clearo/voting"
)

var ErrNotStarted = errors.New("node has not been started")

type Node struct {
	eventBus      *event.EventBus
	db            *database.Database
	sqliteLedger  *stake.SqliteLedger
	stakeLedger   stake.Ledger
	registry      *registry.Registry
	verification  *verification.Challenge
	voting        *voting.Ledger
	relay         *gateway.VerificationRelay
	shutdownFuncs []func(context.Context) error
	config        Config
	done          chan struct{}
	startOnce     sync.Once
	shutdownOnce  sync.Once
	startErr      error
}

func New(cfg Config) (*Node, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	eventBus := event.NewEventBus(cfg.promRegistry, cfg.logger)
	n := &Node{
		config:   cfg,
		eventBus: eventBus,
		done:     make(chan struct{}),
	}
	return n, nil
}

// Start opens the database and wires every component. It is safe to call
// more than once.
func (n *Node) Start(ctx context.Context) error {
	n.startOnce.Do(func() {
		n.startErr = n.start(ctx)
	})
	return n.startErr
}

func (n *Node) start(ctx context.Context) error {
	// Configure tracing
	if n.config.tracing {
		if err := n.setupTracing(ctx); err != nil {
			return err
		}
	}
	// Load database
	db, err := database.New(&database.Config{
		DataDir:       n.config.dataDir,
		Logger:        n.config.logger,
		PromRegistry:  n.config.promRegistry,
		BlobCacheSize: n.config.blobCacheSize,
	})
	if db == nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	n.db = db
	if err != nil {
		var dbErr database.CommitTimestampError
		if !errors.As(err, &dbErr) {
			return fmt.Errorf("failed to open database: %w", err)
		}
		// Records and stake diverged after a partial commit
		n.config.logger.Error(
			"database commit timestamps disagree",
			"component", "node",
			"error", err,
		)
		return err
	}
	// Stake ledger
	n.stakeLedger = n.config.stakeLedger
	if n.stakeLedger == nil {
		n.sqliteLedger, err = stake.NewSqliteLedger(stake.SqliteLedgerConfig{
			Database:     n.db,
			Logger:       n.config.logger,
			PromRegistry: n.config.promRegistry,
			Clock:        n.config.clock,
		})
		if err != nil {
			return fmt.Errorf("failed to load stake ledger: %w", err)
		}
		n.stakeLedger = n.sqliteLedger
	}
	guard := auth.NewGuard(n.config.principals)
	// Registry
	n.registry, err = registry.New(registry.Config{
		Database:     n.db,
		Guard:        guard,
		EventBus:     n.eventBus,
		Logger:       n.config.logger,
		PromRegistry: n.config.promRegistry,
		Clock:        n.config.clock,
		Program:      n.config.programs.Registry,
	})
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	// Ownership challenge
	n.verification, err = verification.New(verification.Config{
		Database:     n.db,
		Guard:        guard,
		Ledger:       n.stakeLedger,
		EventBus:     n.eventBus,
		Logger:       n.config.logger,
		PromRegistry: n.config.promRegistry,
		Clock:        n.config.clock,
		Treasury:     n.config.treasury,
		Program:      n.config.programs.Verification,
		Projects:     n.registry,
	})
	if err != nil {
		return fmt.Errorf("failed to load verification: %w", err)
	}
	// Voting
	n.voting, err = voting.New(voting.Config{
		Database:     n.db,
		Guard:        guard,
		Ledger:       n.stakeLedger,
		EventBus:     n.eventBus,
		Logger:       n.config.logger,
		PromRegistry: n.config.promRegistry,
		Clock:        n.config.clock,
		Program:      n.config.programs.Voting,
	})
	if err != nil {
		return fmt.Errorf("failed to load voting: %w", err)
	}
	// Relay completed ownership proofs to the registry
	if n.config.verificationAuthority != nil {
		authority, err := gateway.NewAuthority(
			auth.RoleVerificationAuthority,
			n.config.verificationAuthority,
		)
		if err != nil {
			return err
		}
		n.relay, err = gateway.NewVerificationRelay(gateway.VerificationRelayConfig{
			EventBus:     n.eventBus,
			Registry:     n.registry,
			Authority:    authority,
			Logger:       n.config.logger,
			PromRegistry: n.config.promRegistry,
		})
		if err != nil {
			return fmt.Errorf("failed to create verification relay: %w", err)
		}
		if err := n.relay.Start(ctx); err != nil {
			return err
		}
	}
	n.config.logger.Info(
		"node started",
		"component", "node",
		"registry_program", n.config.programs.Registry.String(),
		"verification_program", n.config.programs.Verification.String(),
		"voting_program", n.config.programs.Voting.String(),
	)
	return nil
}

// Run starts the node and blocks until ctx is done or Stop is called
func (n *Node) Run(ctx context.Context) error {
	if err := n.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-n.done:
	}
	return nil
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	// Create shutdown context with timeout (default 30s if not configured)
	shutdownTimeout := 30 * time.Second
	if n.config.shutdownTimeout > 0 {
		shutdownTimeout = n.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error

	n.config.logger.Debug("starting graceful shutdown", "component", "node")

	// Stop accepting decisions before the store goes away
	if n.relay != nil {
		if stopErr := n.relay.Stop(); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("relay shutdown: %w", stopErr))
		}
	}

	if n.eventBus != nil {
		n.eventBus.Close()
	}

	if n.db != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}

	// Call registered shutdown functions
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil

	n.config.logger.Debug("graceful shutdown complete", "component", "node")
	close(n.done)
	return err
}

func (n *Node) EventBus() *event.EventBus {
	return n.eventBus
}

func (n *Node) Registry() (*registry.Registry, error) {
	if n.registry == nil {
		return nil, ErrNotStarted
	}
	return n.registry, nil
}

func (n *Node) Verification() (*verification.Challenge, error) {
	if n.verification == nil {
		return nil, ErrNotStarted
	}
	return n.verification, nil
}

func (n *Node) Voting() (*voting.Ledger, error) {
	if n.voting == nil {
		return nil, ErrNotStarted
	}
	return n.voting, nil
}

// StakeLedger returns the built-in sqlite ledger. It is nil when a ledger
// was supplied with WithStakeLedger.
func (n *Node) StakeLedger() (*stake.SqliteLedger, error) {
	if n.db == nil {
		return nil, ErrNotStarted
	}
	if n.sqliteLedger == nil {
		return nil, errors.New("node uses an external stake ledger")
	}
	return n.sqliteLedger, nil
}

func (n *Node) Programs() ProgramIDs {
	return n.config.programs
}

func (n *Node) Principals() auth.Principals {
	return n.config.principals
}
