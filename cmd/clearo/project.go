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
	"time"

	"github.com/spf13/cobra"

	"github.com/clearo-labs/clearo"
	"github.com/clearo-labs/clearo/address"
	"github.com/clearo-labs/clearo/auth"
	"github.com/clearo-labs/clearo/registry"
)

func formatTime(ts int64) string {
	if ts == 0 {
		return "-"
	}
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

func projectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Project registry commands",
	}
	cmd.AddCommand(projectRegisterCommand())
	cmd.AddCommand(projectUpdateCommand())
	cmd.AddCommand(projectShowCommand())
	return cmd
}

func projectRegisterCommand() *cobra.Command {
	var name, description string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a project owned by the signing key",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := loadKeyFlag(cmd)
			if err != nil {
				return err
			}
			return withNode(cmd, func(ctx context.Context, n *clearo.Node) error {
				reg, err := n.Registry()
				if err != nil {
					return err
				}
				c, err := auth.Sign(
					auth.RoleOwner,
					key,
					registry.RegisterProjectMessage(reg.Program(), name, description),
				)
				if err != nil {
					return err
				}
				addr, err := reg.RegisterProject(ctx, c, name, description)
				if err != nil {
					return err
				}
				fmt.Println(addr.String())
				return nil
			})
		},
	}
	addKeyFlag(cmd, "owner signing key file")
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&description, "description", "", "project description")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func projectUpdateCommand() *cobra.Command {
	var name, description string
	cmd := &cobra.Command{
		Use:   "update <project>",
		Short: "Change the name or description of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := address.Parse(args[0])
			if err != nil {
				return err
			}
			// Unset flags leave the field unchanged
			var namePtr, descriptionPtr *string
			if cmd.Flags().Changed("name") {
				namePtr = &name
			}
			if cmd.Flags().Changed("description") {
				descriptionPtr = &description
			}
			key, err := loadKeyFlag(cmd)
			if err != nil {
				return err
			}
			return withNode(cmd, func(ctx context.Context, n *clearo.Node) error {
				reg, err := n.Registry()
				if err != nil {
					return err
				}
				c, err := auth.Sign(
					auth.RoleOwner,
					key,
					registry.UpdateProjectMessage(
						reg.Program(),
						project,
						namePtr,
						descriptionPtr,
					),
				)
				if err != nil {
					return err
				}
				return reg.UpdateProject(ctx, c, project, namePtr, descriptionPtr)
			})
		},
	}
	addKeyFlag(cmd, "owner signing key file")
	cmd.Flags().StringVar(&name, "name", "", "new project name")
	cmd.Flags().StringVar(&description, "description", "", "new project description")
	return cmd
}

func projectShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <project>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := address.Parse(args[0])
			if err != nil {
				return err
			}
			return withNode(cmd, func(ctx context.Context, n *clearo.Node) error {
				reg, err := n.Registry()
				if err != nil {
					return err
				}
				rec, err := reg.GetProject(ctx, project)
				if err != nil {
					return err
				}
				fmt.Printf("Address:      %s\n", project.String())
				fmt.Printf("Owner:        %s\n", rec.Owner.String())
				fmt.Printf("Name:         %s\n", rec.Name)
				fmt.Printf("Description:  %s\n", rec.Description)
				fmt.Printf("Verified:     %t (%s)\n", rec.Verified, formatTime(rec.VerifiedAt))
				fmt.Printf("Score:        %d (%s)\n", rec.TransparencyScore, formatTime(rec.ScoreUpdatedAt))
				fmt.Printf("Created:      %s\n", formatTime(rec.CreatedAt))
				fmt.Printf("Updated:      %s\n", formatTime(rec.UpdatedAt))
				return nil
			})
		},
	}
	return cmd
}

func documentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "document",
		Short: "Project document commands",
	}
	cmd.AddCommand(documentAddCommand())
	cmd.AddCommand(documentShowCommand())
	return cmd
}

func documentAddCommand() *cobra.Command {
	var docType, hash, url string
	cmd := &cobra.Command{
		Use:   "add <project>",
		Short: "Attach a document reference to a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := address.Parse(args[0])
			if err != nil {
				return err
			}
			parsedType, err := registry.ParseDocumentType(docType)
			if err != nil {
				return err
			}
			key, err := loadKeyFlag(cmd)
			if err != nil {
				return err
			}
			return withNode(cmd, func(ctx context.Context, n *clearo.Node) error {
				reg, err := n.Registry()
				if err != nil {
					return err
				}
				c, err := auth.Sign(
					auth.RoleOwner,
					key,
					registry.AddDocumentMessage(reg.Program(), project, parsedType, hash, url),
				)
				if err != nil {
					return err
				}
				addr, err := reg.AddDocument(ctx, c, project, parsedType, hash, url)
				if err != nil {
					return err
				}
				fmt.Println(addr.String())
				return nil
			})
		},
	}
	addKeyFlag(cmd, "project owner signing key file")
	cmd.Flags().StringVar(&docType, "type", "", "document type, e.g. Whitepaper, AuditReport or GitHub")
	cmd.Flags().StringVar(&hash, "hash", "", "content hash")
	cmd.Flags().StringVar(&url, "url", "", "document location")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("hash")
	return cmd
}

func documentShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <document>",
		Short: "Show a document reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := address.Parse(args[0])
			if err != nil {
				return err
			}
			return withNode(cmd, func(ctx context.Context, n *clearo.Node) error {
				reg, err := n.Registry()
				if err != nil {
					return err
				}
				rec, err := reg.GetDocument(ctx, doc)
				if err != nil {
					return err
				}
				fmt.Printf("Address:   %s\n", doc.String())
				fmt.Printf("Project:   %s\n", rec.Project.String())
				fmt.Printf("Type:      %s\n", rec.DocType.String())
				fmt.Printf("Hash:      %s\n", rec.Hash)
				fmt.Printf("URL:       %s\n", rec.URL)
				fmt.Printf("Uploaded:  %s\n", formatTime(rec.UploadedAt))
				return nil
			})
		},
	}
	return cmd
}
