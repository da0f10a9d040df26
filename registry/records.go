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

package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/clearo-labs/clearo/address"
	"github.com/clearo-labs/clearo/auth"
)

// Byte budgets for persisted strings
const (
	MaxNameLength        = 64
	MaxDescriptionLength = 128
	MaxHashLength        = 64
	MaxURLLength         = 256
)

var (
	ErrProjectNotFound     = errors.New("project not found")
	ErrDocumentNotFound    = errors.New("document not found")
	ErrFieldTooLong        = errors.New("field exceeds its byte budget")
	ErrInvalidScore        = errors.New("score must be between 0 and 255")
	ErrInvalidDocumentType = errors.New("invalid document type")
)

// DocumentType classifies a project document
type DocumentType uint8

const (
	DocumentWhitepaper DocumentType = iota
	DocumentRoadmap
	DocumentTokenomics
	DocumentMonthlyReport
	DocumentFinancialTransparency
	DocumentAuditReport
	DocumentTeamIntroduction
	DocumentGitHub
)

var documentTypeNames = []string{
	"Whitepaper",
	"Roadmap",
	"Tokenomics",
	"MonthlyReport",
	"FinancialTransparency",
	"AuditReport",
	"TeamIntroduction",
	"GitHub",
}

func (d DocumentType) Valid() bool {
	return int(d) < len(documentTypeNames)
}

func (d DocumentType) String() string {
	if !d.Valid() {
		return fmt.Sprintf("DocumentType(%d)", uint8(d))
	}
	return documentTypeNames[d]
}

// ParseDocumentType accepts a document type name, case-insensitively
func ParseDocumentType(s string) (DocumentType, error) {
	for i, name := range documentTypeNames {
		if strings.EqualFold(name, s) {
			return DocumentType(i), nil //nolint:gosec // G115: bounded by the name table
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDocumentType, s)
}

// ProjectRecord is the registry entry for one project. Owner and SeedName
// are fixed at registration and seed the address.
type ProjectRecord struct {
	_                 struct{} `cbor:",toarray"`
	Owner             auth.Identity
	SeedName          string
	Name              string
	Description       string
	Verified          bool
	VerifiedAt        int64
	TransparencyScore uint8
	ScoreUpdatedAt    int64
	CreatedAt         int64
	UpdatedAt         int64
	Bump              uint8
}

// AliasRecord reserves a project name that differs from the seed name of
// the project carrying it
type AliasRecord struct {
	_       struct{} `cbor:",toarray"`
	Owner   auth.Identity
	Name    string
	Project address.Address
	Bump    uint8
}

// DocumentRecord is an append-only document reference
type DocumentRecord struct {
	_          struct{} `cbor:",toarray"`
	Project    address.Address
	DocType    DocumentType
	Hash       string
	URL        string
	UploadedAt int64
	Bump       uint8
}

// ScoreFromInt converts a wider integer to the one-byte score field
func ScoreFromInt(score int) (uint8, error) {
	if score < 0 || score > 255 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidScore, score)
	}
	return uint8(score), nil //nolint:gosec // G115: range checked above
}

func checkBudget(field string, value string, limit int) error {
	if len(value) > limit {
		return fmt.Errorf(
			"%w: %s is %d bytes, limit %d",
			ErrFieldTooLong,
			field,
			len(value),
			limit,
		)
	}
	return nil
}
