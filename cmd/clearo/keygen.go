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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clearo-labs/clearo/keystore"
)

func keygenCommand() *cobra.Command {
	var outPath, description string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a signing key file and print its identity",
		// Skip config loading
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := keystore.GenerateKey()
			if err != nil {
				return err
			}
			if err := keystore.SaveKeyFile(outPath, key, description); err != nil {
				return err
			}
			fmt.Println(key.Identity().String())
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "path of the key file to create")
	cmd.Flags().StringVar(&description, "description", "", "description stored in the key file")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
