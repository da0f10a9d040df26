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
	"github.com/clearo-labs/clearo/internal/config"
	"github.com/clearo-labs/clearo/internal/node"
	"github.com/clearo-labs/clearo/keystore"
)

const keyFlag = "key"

// withNode opens the configured store for the duration of fn
func withNode(
	cmd *cobra.Command,
	fn func(ctx context.Context, n *clearo.Node) error,
) (err error) {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return errors.New("no config found in context")
	}
	n, err := node.New(cfg, clientLogger(), nil)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, n.Stop())
	}()
	if err := n.Start(cmd.Context()); err != nil {
		return err
	}
	return fn(cmd.Context(), n)
}

func addKeyFlag(cmd *cobra.Command, usage string) {
	cmd.Flags().String(keyFlag, "", usage)
	_ = cmd.MarkFlagRequired(keyFlag)
}

func loadKeyFlag(cmd *cobra.Command) (*keystore.Key, error) {
	path, err := cmd.Flags().GetString(keyFlag)
	if err != nil {
		return nil, err
	}
	key, err := keystore.LoadKeyFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading signing key: %w", err)
	}
	return key, nil
}

// authorityKey returns the --key flag when given, otherwise the key file
// configured for the authority
func authorityKey(cmd *cobra.Command, configured string) (*keystore.Key, error) {
	if path, _ := cmd.Flags().GetString(keyFlag); path != "" {
		return loadKeyFlag(cmd)
	}
	if configured == "" {
		return nil, errors.New("no authority key given or configured")
	}
	key, err := keystore.LoadKeyFile(configured)
	if err != nil {
		return nil, fmt.Errorf("loading authority key: %w", err)
	}
	return key, nil
}
