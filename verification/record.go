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

package verification

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/clearo-labs/clearo/address"
	"github.com/clearo-labs/clearo/auth"
)

const (
	// Inclusive stake band for an ownership proof, in minor units
	MinAmount uint64 = 5_000_000
	MaxAmount uint64 = 50_000_000

	MaxProjectIDLength = 64
	MaxCodeLength      = 32
	// CodeLength is the length of a generated code
	CodeLength = 16
)

// State is the position of a project in the challenge
type State uint8

const (
	StateUninitialized State = iota
	StateInitialized
	StateVerified
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateVerified:
		return "verified"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Record is the challenge issued for one project id
type Record struct {
	_          struct{} `cbor:",toarray"`
	ProjectID  string
	Owner      auth.Identity
	Code       string
	Verified   bool
	VerifiedAt int64
	Bump       uint8
}

func (r *Record) State() State {
	if r == nil {
		return StateUninitialized
	}
	if r.Verified {
		return StateVerified
	}
	return StateInitialized
}

// GenerateCode derives the challenge code from a timestamp: the first 8
// bytes of SHA-256 over the little-endian unix seconds, as lowercase hex.
// The code is predictable from the issue time.
func GenerateCode(now time.Time) string {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(now.Unix())) //nolint:gosec // G115: two's complement bytes are intended
	digest := sha256.Sum256(buf[:])
	return hex.EncodeToString(digest[:CodeLength/2])
}

func InitializeMessage(program address.ProgramID, projectID string) auth.Message {
	return auth.NewMessage(
		auth.OpInitializeVerification,
		program,
		[]byte(projectID),
	)
}

func VerifyOwnershipMessage(
	program address.ProgramID,
	projectID string,
	amount uint64,
) auth.Message {
	return auth.NewMessage(
		auth.OpVerifyOwnership,
		program,
		[]byte(projectID),
		binary.BigEndian.AppendUint64(nil, amount),
	)
}
