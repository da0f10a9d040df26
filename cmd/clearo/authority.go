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

package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/clearo-labs/clearo"
	"github.com/clearo-labs/clearo/address"
	"github.com/clearo-labs/clearo/auth"
	"github.com/clearo-labs/clearo/gateway"
	"github.com/clearo-labs/clearo/internal/config"
	"github.com/clearo-labs/clearo/registry"
)

func authorityCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authority",
		Short: "Submit decisions as the verification or scoring authority",
	}
	cmd.AddCommand(authoritySetVerifiedCommand())
	cmd.AddCommand(authorityScoreCommand())
	return cmd
}

func authoritySetVerifiedCommand() *cobra.Command {
	var verified bool
	cmd := &cobra.Command{
		Use:   "set-verified <project>",
		Short: "Set the verification flag of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				return errors.New("no config found in context")
			}
			project, err := address.Parse(args[0])
			if err != nil {
				return err
			}
			key, err := authorityKey(cmd, cfg.VerificationAuthorityKey)
			if err != nil {
				return err
			}
			authority, err := gateway.NewAuthority(auth.RoleVerificationAuthority, key)
			if err != nil {
				return err
			}
			return withNode(cmd, func(ctx context.Context, n *clearo.Node) error {
				reg, err := n.Registry()
				if err != nil {
					return err
				}
				c, err := authority.Authorize(
					registry.SetVerifiedMessage(reg.Program(), project, verified),
				)
				if err != nil {
					return err
				}
				return reg.SetVerified(ctx, c, project, verified)
			})
		},
	}
	cmd.Flags().String(keyFlag, "", "verification authority key file, defaults to the configured key")
	cmd.Flags().BoolVar(&verified, "verified", true, "verification flag to set")
	return cmd
}

func authorityScoreCommand() *cobra.Command {
	var score int
	cmd := &cobra.Command{
		Use:   "score <project>",
		Short: "Set the transparency score of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				return errors.New("no config found in context")
			}
			project, err := address.Parse(args[0])
			if err != nil {
				return err
			}
			key, err := authorityKey(cmd, cfg.ScoringAuthorityKey)
			if err != nil {
				return err
			}
			authority, err := gateway.NewAuthority(auth.RoleScoringAuthority, key)
			if err != nil {
				return err
			}
			return withNode(cmd, func(ctx context.Context, n *clearo.Node) error {
				reg, err := n.Registry()
				if err != nil {
					return err
				}
				submitter, err := gateway.NewScoreSubmitter(gateway.ScoreSubmitterConfig{
					Registry:  reg,
					Authority: authority,
					Logger:    clientLogger(),
				})
				if err != nil {
					return err
				}
				return submitter.Submit(ctx, project, score)
			})
		},
	}
	cmd.Flags().String(keyFlag, "", "scoring authority key file, defaults to the configured key")
	cmd.Flags().IntVar(&score, "score", 0, "transparency score, 0 to 255")
	_ = cmd.MarkFlagRequired("score")
	return cmd
}
