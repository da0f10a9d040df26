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

	"github.com/prometheus/client_golang/prometheus"

	"github.com/clearo-labs/clearo/address"
	"github.com/clearo-labs/clearo/auth"
	"github.com/clearo-labs/clearo/registry"
)

// ProjectScorer is the registry surface the score submitter uses
type ProjectScorer interface {
	Program() address.ProgramID
	UpdateScore(
		ctx context.Context,
		c auth.Capability,
		project address.Address,
		score uint8,
	) error
}

type ScoreSubmitterConfig struct {
	Registry     ProjectScorer
	Authority    *Authority
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
}

// ScoreSubmitter publishes transparency scores as the scoring authority
type ScoreSubmitter struct {
	registry  ProjectScorer
	authority *Authority
	logger    *slog.Logger
	metrics   *gatewayMetrics
}

func NewScoreSubmitter(cfg ScoreSubmitterConfig) (*ScoreSubmitter, error) {
	if cfg.Registry == nil {
		return nil, errors.New("score submitter requires a registry")
	}
	if cfg.Authority == nil {
		return nil, errors.New("score submitter requires an authority")
	}
	if cfg.Authority.Role() != auth.RoleScoringAuthority {
		return nil, fmt.Errorf(
			"score submitter cannot sign as %s",
			cfg.Authority.Role().String(),
		)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &ScoreSubmitter{
		registry:  cfg.Registry,
		authority: cfg.Authority,
		logger:    cfg.Logger.With("component", "gateway"),
		metrics:   newGatewayMetrics(cfg.PromRegistry, "score"),
	}, nil
}

// Submit stores score on project. Values that do not fit the one byte
// score field never reach the registry.
func (s *ScoreSubmitter) Submit(
	ctx context.Context,
	project address.Address,
	score int,
) error {
	value, err := registry.ScoreFromInt(score)
	if err != nil {
		s.metrics.observe(outcomeInvalid)
		return err
	}
	msg := registry.UpdateScoreMessage(s.registry.Program(), project, value)
	c, err := s.authority.Authorize(msg)
	if err != nil {
		s.metrics.observe(outcomeRejected)
		return err
	}
	if err := s.registry.UpdateScore(ctx, c, project, value); err != nil {
		s.metrics.observe(outcomeRejected)
		s.logger.Error(
			"registry rejected score",
			"project", project.String(),
			"score", value,
			"error", err,
		)
		return err
	}
	s.metrics.observe(outcomeSubmitted)
	return nil
}
