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
	"github.com/clearo-labs/clearo/auth"
)

func stakeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stake",
		Short: "Built-in stake ledger commands",
	}
	cmd.AddCommand(stakeMintCommand())
	cmd.AddCommand(stakeBalanceCommand())
	return cmd
}

func stakeMintCommand() *cobra.Command {
	var amount uint64
	cmd := &cobra.Command{
		Use:   "mint <identity>",
		Short: "Credit stake to an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := auth.ParseIdentity(args[0])
			if err != nil {
				return err
			}
			return withNode(cmd, func(ctx context.Context, n *clearo.Node) error {
				ledger, err := n.StakeLedger()
				if err != nil {
					return err
				}
				return ledger.Mint(ctx, account, amount)
			})
		},
	}
	cmd.Flags().Uint64Var(&amount, "amount", 0, "stake to credit in minor units")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func stakeBalanceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance <identity>",
		Short: "Show the stake balance of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := auth.ParseIdentity(args[0])
			if err != nil {
				return err
			}
			return withNode(cmd, func(ctx context.Context, n *clearo.Node) error {
				ledger, err := n.StakeLedger()
				if err != nil {
					return err
				}
				balance, err := ledger.Balance(ctx, account)
				if err != nil {
					return err
				}
				fmt.Println(balance)
				return nil
			})
		},
	}
	return cmd
}
