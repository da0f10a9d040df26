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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clearo-labs/clearo"
	"github.com/clearo-labs/clearo/auth"
	"github.com/clearo-labs/clearo/verification"
)

func verificationCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verification",
		Short: "Ownership challenge commands",
	}
	cmd.AddCommand(verificationInitCommand())
	cmd.AddCommand(verificationVerifyCommand())
	cmd.AddCommand(verificationShowCommand())
	return cmd
}

func verificationInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init <project-id>",
		Short: "Issue a verification code for a project id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := args[0]
			key, err := loadKeyFlag(cmd)
			if err != nil {
				return err
			}
			return withNode(cmd, func(ctx context.Context, n *clearo.Node) error {
				challenge, err := n.Verification()
				if err != nil {
					return err
				}
				c, err := auth.Sign(
					auth.RoleOwner,
					key,
					verification.InitializeMessage(challenge.Program(), projectID),
				)
				if err != nil {
					return err
				}
				rec, err := challenge.Initialize(ctx, c, projectID)
				if err != nil {
					return err
				}
				fmt.Println(rec.Code)
				return nil
			})
		},
	}
	addKeyFlag(cmd, "owner signing key file")
	return cmd
}

func verificationVerifyCommand() *cobra.Command {
	var amount uint64
	cmd := &cobra.Command{
		Use:   "verify <project-id>",
		Short: "Prove ownership by transferring stake to the treasury",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := args[0]
			key, err := loadKeyFlag(cmd)
			if err != nil {
				return err
			}
			return withNode(cmd, func(ctx context.Context, n *clearo.Node) error {
				challenge, err := n.Verification()
				if err != nil {
					return err
				}
				c, err := auth.Sign(
					auth.RoleOwner,
					key,
					verification.VerifyOwnershipMessage(challenge.Program(), projectID, amount),
				)
				if err != nil {
					return err
				}
				return challenge.VerifyOwnership(ctx, c, projectID, amount)
			})
		},
	}
	addKeyFlag(cmd, "owner signing key file")
	cmd.Flags().Uint64Var(
		&amount,
		"amount",
		verification.MinAmount,
		fmt.Sprintf(
			"stake to transfer, between %d and %d",
			verification.MinAmount,
			verification.MaxAmount,
		),
	)
	return cmd
}

func verificationShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show the challenge state of a project id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := args[0]
			return withNode(cmd, func(ctx context.Context, n *clearo.Node) error {
				challenge, err := n.Verification()
				if err != nil {
					return err
				}
				rec, err := challenge.GetVerification(ctx, projectID)
				if err != nil {
					if errors.Is(err, verification.ErrNotInitialized) {
						fmt.Printf("State:     %s\n", verification.StateUninitialized.String())
						return nil
					}
					return err
				}
				addr, _ := challenge.Address(projectID)
				fmt.Printf("Address:   %s\n", addr.String())
				fmt.Printf("State:     %s\n", rec.State().String())
				fmt.Printf("Owner:     %s\n", rec.Owner.String())
				fmt.Printf("Code:      %s\n", rec.Code)
				fmt.Printf("Verified:  %s\n", formatTime(rec.VerifiedAt))
				return nil
			})
		},
	}
	return cmd
}
