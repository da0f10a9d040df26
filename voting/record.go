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

package voting

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/clearo-labs/clearo/address"
	"github.com/clearo-labs/clearo/auth"
)

// MinStake is the smallest vote, one whole token in minor units
const MinStake uint64 = 1_000_000

// VoteType is the direction of a vote
type VoteType uint8

const (
	Upvote VoteType = iota
	Downvote
)

func (v VoteType) Valid() bool {
	switch v {
	case Upvote, Downvote:
		return true
	default:
		return false
	}
}

func (v VoteType) String() string {
	switch v {
	case Upvote:
		return "Upvote"
	case Downvote:
		return "Downvote"
	default:
		return fmt.Sprintf("VoteType(%d)", uint8(v))
	}
}

func ParseVoteType(s string) (VoteType, error) {
	switch strings.ToLower(s) {
	case "upvote", "up":
		return Upvote, nil
	case "downvote", "down":
		return Downvote, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidVoteType, s)
	}
}

// Record is one voter's vote on one project. Amount is the stake burned
// when the vote was cast and never changes.
type Record struct {
	_         struct{} `cbor:",toarray"`
	Voter     auth.Identity
	Project   address.Address
	VoteType  VoteType
	Amount    uint64
	VotedAt   int64
	UpdatedAt int64
	Bump      uint8
}

func VoteMessage(
	program address.ProgramID,
	project address.Address,
	voteType VoteType,
	amount uint64,
) auth.Message {
	return auth.NewMessage(
		auth.OpVote,
		program,
		project.Bytes(),
		[]byte{byte(voteType)},
		binary.BigEndian.AppendUint64(nil, amount),
	)
}

func ChangeVoteMessage(
	program address.ProgramID,
	vote address.Address,
	voteType VoteType,
) auth.Message {
	return auth.NewMessage(
		auth.OpChangeVote,
		program,
		vote.Bytes(),
		[]byte{byte(voteType)},
	)
}
