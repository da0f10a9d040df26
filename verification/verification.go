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

// Package verification runs the ownership challenge: a code is issued for
// a project id and a bounded stake transfer marks the project verified.
package verification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/clearo-labs/clearo/address"
	"github.com/clearo-labs/clearo/auth"
	"github.com/clearo-labs/clearo/database"
	"github.com/clearo-labs/clearo/event"
	"github.com/clearo-labs/clearo/stake"
)

const VerifiedEventType event.EventType = "verification.verified"

var (
	ErrAlreadyVerified = errors.New("project is already verified")
	ErrInvalidAmount   = errors.New("verification amount out of range")
	ErrNotInitialized  = errors.New("verification not initialized")
	ErrFieldTooLong    = errors.New("field exceeds its byte budget")
)

// VerifiedEvent is published after a challenge completes
type VerifiedEvent struct {
	Address address.Address
	Record  Record
}

// ProjectOwners resolves the registered owner of a registry project
type ProjectOwners interface {
	ProjectOwner(ctx context.Context, project address.Address) (auth.Identity, error)
}

type Config struct {
	Database     *database.Database
	Guard        *auth.Guard
	Ledger       stake.Ledger
	EventBus     *event.EventBus
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// Clock defaults to time.Now
	Clock func() time.Time
	// Treasury receives the stake of every ownership proof
	Treasury auth.Identity
	Program  address.ProgramID
	// Projects is optional. When set, a challenge for a registry address
	// can only be opened by the project owner.
	Projects ProjectOwners
}

type Challenge struct {
	db       *database.Database
	guard    *auth.Guard
	ledger   stake.Ledger
	eventBus *event.EventBus
	logger   *slog.Logger
	clock    func() time.Time
	metrics  *challengeMetrics
	treasury auth.Identity
	program  address.ProgramID
	projects ProjectOwners
}

type challengeMetrics struct {
	operations *prometheus.CounterVec
	staked     prometheus.Counter
}

func New(cfg Config) (*Challenge, error) {
	if cfg.Database == nil {
		return nil, errors.New("verification requires a database")
	}
	if cfg.Guard == nil {
		return nil, errors.New("verification requires an authorization guard")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("verification requires a stake ledger")
	}
	if cfg.Treasury.IsZero() {
		return nil, errors.New("verification requires a treasury identity")
	}
	if cfg.Program.IsZero() {
		return nil, errors.New("verification requires a program id")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	c := &Challenge{
		db:       cfg.Database,
		guard:    cfg.Guard,
		ledger:   cfg.Ledger,
		eventBus: cfg.EventBus,
		logger:   cfg.Logger.With("component", "verification"),
		clock:    cfg.Clock,
		treasury: cfg.Treasury,
		program:  cfg.Program,
		projects: cfg.Projects,
	}
	if cfg.PromRegistry != nil {
		promautoFactory := promauto.With(cfg.PromRegistry)
		c.metrics = &challengeMetrics{
			operations: promautoFactory.NewCounterVec(
				prometheus.CounterOpts{
					Name: "clearo_verification_operations_total",
					Help: "verification operations by outcome",
				},
				[]string{"operation", "outcome"},
			),
			staked: promautoFactory.NewCounter(prometheus.CounterOpts{
				Name: "clearo_verification_staked_total",
				Help: "stake transferred by ownership proofs",
			}),
		}
	}
	return c, nil
}

func (c *Challenge) Program() address.ProgramID {
	return c.program
}

// Address derives the record address for projectID
func (c *Challenge) Address(projectID string) (address.Address, uint8) {
	return address.Derive(c.program, address.KindVerification, []byte(projectID))
}

func (c *Challenge) observe(op auth.Operation, err error) {
	if c.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.metrics.operations.WithLabelValues(op.String(), outcome).Inc()
}

// Initialize issues a challenge for projectID owned by the capability
// signer and returns the stored record
func (c *Challenge) Initialize(
	ctx context.Context,
	capability auth.Capability,
	projectID string,
) (rec *Record, err error) {
	defer func() { c.observe(auth.OpInitializeVerification, err) }()
	if len(projectID) > MaxProjectIDLength {
		return nil, fmt.Errorf(
			"%w: project id is %d bytes, limit %d",
			ErrFieldTooLong,
			len(projectID),
			MaxProjectIDLength,
		)
	}
	owner := capability.Signer()
	if err := c.guard.Check(capability, InitializeMessage(c.program, projectID), owner); err != nil {
		return nil, err
	}
	if err := c.checkProjectOwner(ctx, projectID, owner); err != nil {
		return nil, err
	}
	addr, bump := c.Address(projectID)
	rec = &Record{
		ProjectID: projectID,
		Owner:     owner,
		Code:      GenerateCode(c.clock()),
		Bump:      bump,
	}
	if len(rec.Code) > MaxCodeLength {
		return nil, fmt.Errorf("%w: verification code", ErrFieldTooLong)
	}
	data, err := database.EncodeRecord(rec)
	if err != nil {
		return nil, err
	}
	err = c.db.UpdateRecords(ctx, func(_ context.Context, txn *database.Txn) error {
		return c.db.CreateRecord(address.KindVerification, addr, data, txn)
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info(
		"verification initialized",
		"project_id", projectID,
		"owner", owner.String(),
		"code", rec.Code,
	)
	return rec, nil
}

// checkProjectOwner refuses a registry address owned by someone else.
// Project ids that are not registry addresses are left to the relay.
func (c *Challenge) checkProjectOwner(
	ctx context.Context,
	projectID string,
	signer auth.Identity,
) error {
	if c.projects == nil {
		return nil
	}
	project, err := address.Parse(projectID)
	if err != nil {
		return nil
	}
	owner, err := c.projects.ProjectOwner(ctx, project)
	if err != nil {
		return err
	}
	if owner != signer {
		return fmt.Errorf(
			"%w: %s does not own %s",
			auth.ErrUnauthorized,
			signer.String(),
			projectID,
		)
	}
	return nil
}

// VerifyOwnership completes the challenge for projectID. The owner's
// amount is transferred to the treasury in the same commit as the state
// change. Only the amount is checked, the code travels as the transfer
// memo.
func (c *Challenge) VerifyOwnership(
	ctx context.Context,
	capability auth.Capability,
	projectID string,
	amount uint64,
) (err error) {
	defer func() { c.observe(auth.OpVerifyOwnership, err) }()
	msg := VerifyOwnershipMessage(c.program, projectID, amount)
	addr, _ := c.Address(projectID)
	var rec *Record
	err = c.db.Update(ctx, func(ctx context.Context, txn *database.Txn) error {
		var err error
		rec, err = c.load(addr, txn)
		if err != nil {
			return err
		}
		if err := c.guard.Check(capability, msg, rec.Owner); err != nil {
			return err
		}
		if rec.Verified {
			return fmt.Errorf("%w: %s", ErrAlreadyVerified, projectID)
		}
		if amount < MinAmount || amount > MaxAmount {
			return fmt.Errorf(
				"%w: %d not in [%d, %d]",
				ErrInvalidAmount,
				amount,
				MinAmount,
				MaxAmount,
			)
		}
		if err := c.ledger.Transfer(ctx, rec.Owner, c.treasury, amount, rec.Code); err != nil {
			return stake.ConsumptionError(err)
		}
		rec.Verified = true
		rec.VerifiedAt = c.clock().Unix()
		data, err := database.EncodeRecord(rec)
		if err != nil {
			return err
		}
		return c.db.UpdateRecord(address.KindVerification, addr, data, txn)
	})
	if err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.staked.Add(float64(amount))
	}
	c.logger.Info(
		"project ownership verified",
		"project_id", projectID,
		"amount", amount,
	)
	if c.eventBus != nil {
		c.eventBus.Publish(
			VerifiedEventType,
			event.NewEvent(VerifiedEventType, VerifiedEvent{Address: addr, Record: *rec}),
		)
	}
	return nil
}

// GetVerification returns the record for projectID
func (c *Challenge) GetVerification(
	ctx context.Context,
	projectID string,
) (*Record, error) {
	addr, _ := c.Address(projectID)
	var rec *Record
	err := c.db.View(ctx, func(_ context.Context, txn *database.Txn) error {
		var err error
		rec, err = c.load(addr, txn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// State reports where projectID is in the challenge
func (c *Challenge) State(ctx context.Context, projectID string) (State, error) {
	rec, err := c.GetVerification(ctx, projectID)
	if err != nil {
		if errors.Is(err, ErrNotInitialized) {
			return StateUninitialized, nil
		}
		return StateUninitialized, err
	}
	return rec.State(), nil
}

func (c *Challenge) load(addr address.Address, txn *database.Txn) (*Record, error) {
	data, err := c.db.GetRecord(address.KindVerification, addr, txn)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotInitialized, addr.String())
		}
		return nil, err
	}
	var rec Record
	if err := database.DecodeRecord(data, &rec); err != nil {
		return nil, err
	}
	if err := address.Verify(
		addr,
		c.program,
		address.KindVerification,
		rec.Bump,
		[]byte(rec.ProjectID),
	); err != nil {
		return nil, err
	}
	return &rec, nil
}
