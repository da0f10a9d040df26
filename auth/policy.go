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

package auth

import (
	"fmt"
)

// Role is the principal class a signer acts as
type Role uint8

const (
	RoleOwner Role = iota + 1
	RoleVerificationAuthority
	RoleScoringAuthority
	RoleVoter
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleVerificationAuthority:
		return "verification-authority"
	case RoleScoringAuthority:
		return "scoring-authority"
	case RoleVoter:
		return "voter"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

// Operation names a mutating state transition
type Operation uint8

const (
	OpRegisterProject Operation = iota + 1
	OpUpdateProject
	OpAddDocument
	OpSetVerified
	OpUpdateScore
	OpInitializeVerification
	OpVerifyOwnership
	OpVote
	OpChangeVote
)

func (o Operation) String() string {
	switch o {
	case OpRegisterProject:
		return "register_project"
	case OpUpdateProject:
		return "update_project"
	case OpAddDocument:
		return "add_document"
	case OpSetVerified:
		return "set_verified"
	case OpUpdateScore:
		return "update_score"
	case OpInitializeVerification:
		return "initialize_verification"
	case OpVerifyOwnership:
		return "verify_ownership"
	case OpVote:
		return "vote"
	case OpChangeVote:
		return "change_vote"
	default:
		return fmt.Sprintf("Operation(%d)", uint8(o))
	}
}

// RequiredRole returns the role a capability must carry for op
func RequiredRole(op Operation) (Role, error) {
	switch op {
	case OpRegisterProject,
		OpUpdateProject,
		OpAddDocument,
		OpInitializeVerification,
		OpVerifyOwnership:
		return RoleOwner, nil
	case OpSetVerified:
		return RoleVerificationAuthority, nil
	case OpUpdateScore:
		return RoleScoringAuthority, nil
	case OpVote, OpChangeVote:
		return RoleVoter, nil
	default:
		return 0, fmt.Errorf("%w: unknown operation %d", ErrUnauthorized, uint8(op))
	}
}
