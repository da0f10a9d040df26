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

// Principals are the configured authority identities
type Principals struct {
	VerificationAuthority Identity
	ScoringAuthority      Identity
}

// Guard enforces the operation to role matrix
type Guard struct {
	principals Principals
}

func NewGuard(principals Principals) *Guard {
	return &Guard{principals: principals}
}

func (g *Guard) Principals() Principals {
	return g.principals
}

// Check verifies that c authorizes msg. For owner and voter operations
// subject is the identity the record is bound to, for authority operations
// it is ignored in favor of the configured principal.
func (g *Guard) Check(c Capability, msg Message, subject Identity) error {
	role, err := RequiredRole(msg.op)
	if err != nil {
		return err
	}
	if c.role != role {
		return fmt.Errorf(
			"%w: %s requires role %s, got %s",
			ErrUnauthorized,
			msg.op.String(),
			role.String(),
			c.role.String(),
		)
	}
	if !c.Covers(msg) {
		return fmt.Errorf(
			"%w: capability was not issued for this %s",
			ErrUnauthorized,
			msg.op.String(),
		)
	}
	var expected Identity
	switch role {
	case RoleOwner, RoleVoter:
		expected = subject
	case RoleVerificationAuthority:
		expected = g.principals.VerificationAuthority
	case RoleScoringAuthority:
		expected = g.principals.ScoringAuthority
	default:
		return fmt.Errorf("%w: unknown role %d", ErrUnauthorized, uint8(role))
	}
	if expected.IsZero() || c.signer != expected {
		return fmt.Errorf(
			"%w: signer %s is not the %s",
			ErrUnauthorized,
			c.signer.String(),
			role.String(),
		)
	}
	return nil
}
