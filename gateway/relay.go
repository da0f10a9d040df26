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

package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/clearo-labs/clearo/address"
	"github.com/clearo-labs/clearo/auth"
	"github.com/clearo-labs/clearo/event"
	"github.com/clearo-labs/clearo/registry"
	"github.com/clearo-labs/clearo/verification"
)

// ErrOwnerMismatch is returned when a challenge was completed by someone
// other than the registered owner of the project
var ErrOwnerMismatch = errors.New("challenge owner is not the project owner")

// ProjectVerifier is the registry surface the relay submits to
type ProjectVerifier interface {
	Program() address.ProgramID
	GetProject(
		ctx context.Context,
		project address.Address,
	) (*registry.ProjectRecord, error)
	SetVerified(
		ctx context.Context,
		c auth.Capability,
		project address.Address,
		verified bool,
	) error
}

type VerificationRelayConfig struct {
	EventBus     *event.EventBus
	Registry     ProjectVerifier
	Authority    *Authority
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
}

// VerificationRelay forwards completed ownership challenges to the
// registry as the verification authority. The challenge project id must
// be the registry address of the project and the challenge owner must be
// the project owner.
type VerificationRelay struct {
	eventBus  *event.EventBus
	registry  ProjectVerifier
	authority *Authority
	logger    *slog.Logger
	metrics   *gatewayMetrics
	mu        sync.Mutex
	cancel    context.CancelFunc
	loopWg    sync.WaitGroup
	subId     event.EventSubscriberId
	running   bool
}

func NewVerificationRelay(cfg VerificationRelayConfig) (*VerificationRelay, error) {
	if cfg.EventBus == nil {
		return nil, errors.New("verification relay requires an event bus")
	}
	if cfg.Registry == nil {
		return nil, errors.New("verification relay requires a registry")
	}
	if cfg.Authority == nil {
		return nil, errors.New("verification relay requires an authority")
	}
	if cfg.Authority.Role() != auth.RoleVerificationAuthority {
		return nil, fmt.Errorf(
			"verification relay cannot sign as %s",
			cfg.Authority.Role().String(),
		)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &VerificationRelay{
		eventBus:  cfg.EventBus,
		registry:  cfg.Registry,
		authority: cfg.Authority,
		logger:    cfg.Logger.With("component", "gateway"),
		metrics:   newGatewayMetrics(cfg.PromRegistry, "verification"),
	}, nil
}

// Start subscribes to verification events. Cancelling ctx stops the relay
// and releases its subscription so publishers never block on it.
func (r *VerificationRelay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("verification relay: context already done: %w", err)
	}
	childCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	var evtCh <-chan event.Event
	r.subId, evtCh = r.eventBus.Subscribe(verification.VerifiedEventType)
	r.running = true
	subId := r.subId
	r.loopWg.Add(1)
	go func() {
		defer r.loopWg.Done()
		r.loop(childCtx, evtCh)
		if childCtx.Err() == nil {
			// Channel closed by Stop
			return
		}
		// Unsubscribing waits for in-flight deliveries, keep draining
		// until the bus closes the channel
		go r.detach(subId)
		for range evtCh {
		}
	}()
	r.logger.Info(
		"verification relay started",
		"authority", r.authority.Identity().String(),
	)
	return nil
}

// Stop unsubscribes and waits until queued events have been relayed
func (r *VerificationRelay) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		// A detached loop may still be draining
		r.loopWg.Wait()
		return nil
	}
	r.eventBus.Unsubscribe(verification.VerifiedEventType, r.subId)
	r.running = false
	r.subId = 0
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()
	// Unsubscribe closed the channel, the loop exits once it is drained
	r.loopWg.Wait()
	cancel()
	r.logger.Info("verification relay stopped")
	return nil
}

// detach drops the subscription of a relay whose context was cancelled
func (r *VerificationRelay) detach(subId event.EventSubscriberId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running || r.subId != subId {
		return
	}
	r.eventBus.Unsubscribe(verification.VerifiedEventType, subId)
	r.running = false
	r.subId = 0
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.logger.Info("verification relay detached")
}

func (r *VerificationRelay) loop(ctx context.Context, evtCh <-chan event.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-evtCh:
			if !ok {
				return
			}
			verified, ok := evt.Data.(verification.VerifiedEvent)
			if !ok {
				r.logger.Warn(
					"unexpected event payload",
					"type", evt.Type,
				)
				continue
			}
			// Failures are already logged and counted
			_ = r.Relay(ctx, verified.Record)
		}
	}
}

// Relay submits SetVerified(true) for the project named by rec
func (r *VerificationRelay) Relay(
	ctx context.Context,
	rec verification.Record,
) error {
	if !rec.Verified {
		return nil
	}
	project, err := address.Parse(rec.ProjectID)
	if err != nil {
		r.metrics.observe(outcomeInvalid)
		r.logger.Warn(
			"verified project id is not a registry address",
			"project_id", rec.ProjectID,
			"error", err,
		)
		return err
	}
	proj, err := r.registry.GetProject(ctx, project)
	if err != nil {
		r.metrics.observe(outcomeRejected)
		r.logger.Error(
			"failed to load verified project",
			"project", project.String(),
			"error", err,
		)
		return err
	}
	if proj.Owner != rec.Owner {
		r.metrics.observe(outcomeRejected)
		r.logger.Warn(
			"challenge owner does not own the project",
			"project", project.String(),
			"owner", proj.Owner.String(),
			"challenger", rec.Owner.String(),
		)
		return fmt.Errorf("%w: %s", ErrOwnerMismatch, project.String())
	}
	msg := registry.SetVerifiedMessage(r.registry.Program(), project, true)
	c, err := r.authority.Authorize(msg)
	if err != nil {
		r.metrics.observe(outcomeRejected)
		r.logger.Error(
			"failed to sign verification decision",
			"project", project.String(),
			"error", err,
		)
		return err
	}
	if err := r.registry.SetVerified(ctx, c, project, true); err != nil {
		r.metrics.observe(outcomeRejected)
		r.logger.Error(
			"registry rejected verification decision",
			"project", project.String(),
			"error", err,
		)
		return err
	}
	r.metrics.observe(outcomeSubmitted)
	r.logger.Info(
		"verification decision submitted",
		"project", project.String(),
	)
	return nil
}
