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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clearo-labs/clearo"
	"github.com/clearo-labs/clearo/address"
	"github.com/clearo-labs/clearo/auth"
	"github.com/clearo-labs/clearo/voting"
)

func voteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vote",
		Short: "Stake-weighted voting commands",
	}
	cmd.AddCommand(voteCastCommand())
	cmd.AddCommand(voteChangeCommand())
	cmd.AddCommand(voteShowCommand())
	return cmd
}

func voteCastCommand() *cobra.Command {
	var voteTypeName string
	var amount uint64
	cmd := &cobra.Command{
		Use:   "cast <project>",
		Short: "Vote on a project, burning stake",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := address.Parse(args[0])
			if err != nil {
				return err
			}
			voteType, err := voting.ParseVoteType(voteTypeName)
			if err != nil {
				return err
			}
			key, err := loadKeyFlag(cmd)
			if err != nil {
				return err
			}
			return withNode(cmd, func(ctx context.Context, n *clearo.Node) error {
				votes, err := n.Voting()
				if err != nil {
					return err
				}
				c, err := auth.Sign(
					auth.RoleVoter,
					key,
					voting.VoteMessage(votes.Program(), project, voteType, amount),
				)
				if err != nil {
					return err
				}
				addr, err := votes.Vote(ctx, c, project, voteType, amount)
				if err != nil {
					return err
				}
				fmt.Println(addr.String())
				return nil
			})
		},
	}
	addKeyFlag(cmd, "voter signing key file")
	cmd.Flags().StringVar(&voteTypeName, "type", "up", "vote direction, up or down")
	cmd.Flags().Uint64Var(&amount, "amount", voting.MinStake, "stake to burn")
	return cmd
}

func voteChangeCommand() *cobra.Command {
	var voteTypeName string
	cmd := &cobra.Command{
		Use:   "change <vote>",
		Short: "Change the direction of an existing vote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vote, err := address.Parse(args[0])
			if err != nil {
				return err
			}
			voteType, err := voting.ParseVoteType(voteTypeName)
			if err != nil {
				return err
			}
			key, err := loadKeyFlag(cmd)
			if err != nil {
				return err
			}
			return withNode(cmd, func(ctx context.Context, n *clearo.Node) error {
				votes, err := n.Voting()
				if err != nil {
					return err
				}
				c, err := auth.Sign(
					auth.RoleVoter,
					key,
					voting.ChangeVoteMessage(votes.Program(), vote, voteType),
				)
				if err != nil {
					return err
				}
				return votes.ChangeVote(ctx, c, vote, voteType)
			})
		},
	}
	addKeyFlag(cmd, "voter signing key file")
	cmd.Flags().StringVar(&voteTypeName, "type", "", "new vote direction, up or down")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func voteShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <vote>",
		Short: "Show a vote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vote, err := address.Parse(args[0])
			if err != nil {
				return err
			}
			return withNode(cmd, func(ctx context.Context, n *clearo.Node) error {
				votes, err := n.Voting()
				if err != nil {
					return err
				}
				rec, err := votes.GetVote(ctx, vote)
				if err != nil {
					return err
				}
				fmt.Printf("Address:  %s\n", vote.String())
				fmt.Printf("Voter:    %s\n", rec.Voter.String())
				fmt.Printf("Project:  %s\n", rec.Project.String())
				fmt.Printf("Type:     %s\n", rec.VoteType.String())
				fmt.Printf("Amount:   %d\n", rec.Amount)
				fmt.Printf("Voted:    %s\n", formatTime(rec.VotedAt))
				fmt.Printf("Updated:  %s\n", formatTime(rec.UpdatedAt))
				return nil
			})
		},
	}
	return cmd
}
