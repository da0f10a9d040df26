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

// Package voting keeps one stake-weighted vote per voter and project.
// Casting burns stake, changing direction is free.
package voting

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

const (
	VoteCastEventType    event.EventType = "voting.vote_cast"
	VoteChangedEventType event.EventType = "voting.vote_changed"
)

var (
	ErrInsufficientTokens = errors.New("insufficient tokens for voting")
	ErrVoteNotFound       = errors.New("vote not found")
	ErrInvalidVoteType    = errors.New("invalid vote type")
)

// VoteEvent carries a vote after a committed change
type VoteEvent struct {
	Address address.Address
	Record  Record
}

type Config struct {
	Database     *database.Database
	Guard        *auth.Guard
	Ledger       stake.Ledger
	EventBus     *event.EventBus
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// Clock defaults to time.Now
	Clock   func() time.Time
	Program address.ProgramID
}

type Ledger struct {
	db          *database.Database
	guard       *auth.Guard
	stakeLedger stake.Ledger
	eventBus    *event.EventBus
	logger      *slog.Logger
	clock       func() time.Time
	metrics     *votingMetrics
	program     address.ProgramID
}

type votingMetrics struct {
	operations *prometheus.CounterVec
	votes      *prometheus.CounterVec
	burned     prometheus.Counter
}

func New(cfg Config) (*Ledger, error) {
	if cfg.Database == nil {
		return nil, errors.New("voting requires a database")
	}
	if cfg.Guard == nil {
		return nil, errors.New("voting requires an authorization guard")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("voting requires a stake ledger")
	}
	if cfg.Program.IsZero() {
		return nil, errors.New("voting requires a program id")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	l := &Ledger{
		db:          cfg.Database,
		guard:       cfg.Guard,
		stakeLedger: cfg.Ledger,
		eventBus:    cfg.EventBus,
		logger:      cfg.Logger.With("component", "voting"),
		clock:       cfg.Clock,
		program:     cfg.Program,
	}
	if cfg.PromRegistry != nil {
		l.initMetrics(cfg.PromRegistry)
	}
	return l, nil
}

func (l *Ledger) initMetrics(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	l.metrics = &votingMetrics{
		operations: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clearo_voting_operations_total",
				Help: "voting operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		votes: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clearo_voting_votes_cast_total",
				Help: "votes cast by type",
			},
			[]string{"type"},
		),
		burned: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "clearo_voting_stake_burned_total",
			Help: "stake burned by votes",
		}),
	}
}

func (l *Ledger) observe(op auth.Operation, err error) {
	if l.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	l.metrics.operations.WithLabelValues(op.String(), outcome).Inc()
}

func (l *Ledger) Program() address.ProgramID {
	return l.program
}

// VoteAddress derives the address of voter's vote on project
func (l *Ledger) VoteAddress(
	voter auth.Identity,
	project address.Address,
) (address.Address, uint8) {
	return address.Derive(l.program, address.KindVote, voter[:], project[:])
}

// Vote records the signer's vote on project and burns amount of its
// stake. The vote and the burn commit together or not at all.
func (l *Ledger) Vote(
	ctx context.Context,
	capability auth.Capability,
	project address.Address,
	voteType VoteType,
	amount uint64,
) (addr address.Address, err error) {
	defer func() { l.observe(auth.OpVote, err) }()
	if amount < MinStake {
		return address.Address{}, fmt.Errorf(
			"%w: %d below minimum %d",
			ErrInsufficientTokens,
			amount,
			MinStake,
		)
	}
	if !voteType.Valid() {
		return address.Address{}, fmt.Errorf(
			"%w: %d",
			ErrInvalidVoteType,
			uint8(voteType),
		)
	}
	voter := capability.Signer()
	msg := VoteMessage(l.program, project, voteType, amount)
	if err := l.guard.Check(capability, msg, voter); err != nil {
		return address.Address{}, err
	}
	addr, bump := l.VoteAddress(voter, project)
	now := l.clock().Unix()
	rec := Record{
		Voter:     voter,
		Project:   project,
		VoteType:  voteType,
		Amount:    amount,
		VotedAt:   now,
		UpdatedAt: now,
		Bump:      bump,
	}
	data, err := database.EncodeRecord(&rec)
	if err != nil {
		return address.Address{}, err
	}
	err = l.db.Update(ctx, func(ctx context.Context, txn *database.Txn) error {
		if err := l.db.CreateRecord(address.KindVote, addr, data, txn); err != nil {
			return err
		}
		if err := l.stakeLedger.Consume(ctx, voter, amount); err != nil {
			return stake.ConsumptionError(err)
		}
		return nil
	})
	if err != nil {
		return address.Address{}, err
	}
	if l.metrics != nil {
		l.metrics.votes.WithLabelValues(voteType.String()).Inc()
		l.metrics.burned.Add(float64(amount))
	}
	l.logger.Info(
		"vote cast",
		"vote", addr.String(),
		"project", project.String(),
		"type", voteType.String(),
		"amount", amount,
	)
	l.publish(VoteCastEventType, VoteEvent{Address: addr, Record: rec})
	return addr, nil
}

// ChangeVote redirects an existing vote. The burned amount is neither
// charged again nor refunded.
func (l *Ledger) ChangeVote(
	ctx context.Context,
	capability auth.Capability,
	vote address.Address,
	voteType VoteType,
) (err error) {
	defer func() { l.observe(auth.OpChangeVote, err) }()
	if !voteType.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidVoteType, uint8(voteType))
	}
	msg := ChangeVoteMessage(l.program, vote, voteType)
	var rec *Record
	err = l.db.UpdateRecords(ctx, func(_ context.Context, txn *database.Txn) error {
		var err error
		rec, err = l.load(vote, txn)
		if err != nil {
			return err
		}
		if err := l.guard.Check(capability, msg, rec.Voter); err != nil {
			return err
		}
		rec.VoteType = voteType
		rec.UpdatedAt = l.clock().Unix()
		data, err := database.EncodeRecord(rec)
		if err != nil {
			return err
		}
		return l.db.UpdateRecord(address.KindVote, vote, data, txn)
	})
	if err != nil {
		return err
	}
	l.logger.Info(
		"vote changed",
		"vote", vote.String(),
		"type", voteType.String(),
	)
	l.publish(VoteChangedEventType, VoteEvent{Address: vote, Record: *rec})
	return nil
}

// GetVote reads the vote stored at addr
func (l *Ledger) GetVote(ctx context.Context, addr address.Address) (*Record, error) {
	var rec *Record
	err := l.db.View(ctx, func(_ context.Context, txn *database.Txn) error {
		var err error
		rec, err = l.load(addr, txn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (l *Ledger) load(addr address.Address, txn *database.Txn) (*Record, error) {
	data, err := l.db.GetRecord(address.KindVote, addr, txn)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrVoteNotFound, addr.String())
		}
		return nil, err
	}
	var rec Record
	if err := database.DecodeRecord(data, &rec); err != nil {
		return nil, err
	}
	if err := address.Verify(
		addr,
		l.program,
		address.KindVote,
		rec.Bump,
		rec.Voter[:],
		rec.Project[:],
	); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (l *Ledger) publish(eventType event.EventType, data any) {
	if l.eventBus == nil {
		return
	}
	l.eventBus.Publish(eventType, event.NewEvent(eventType, data))
}
