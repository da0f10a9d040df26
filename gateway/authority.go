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

// Package gateway submits decisions made outside the registry on behalf
// of the verification and scoring authorities.
package gateway

import (
	"errors"
	"fmt"

	"github.com/clearo-labs/clearo/auth"
)

var ErrNotAuthorityRole = errors.New("role is not an authority role")

// Authority signs messages as one of the external authorities
type Authority struct {
	signer auth.Signer
	role   auth.Role
}

func NewAuthority(role auth.Role, signer auth.Signer) (*Authority, error) {
	switch role {
	case auth.RoleVerificationAuthority, auth.RoleScoringAuthority:
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotAuthorityRole, role.String())
	}
	if signer == nil {
		return nil, errors.New("authority requires a signer")
	}
	return &Authority{signer: signer, role: role}, nil
}

func (a *Authority) Role() auth.Role {
	return a.role
}

func (a *Authority) Identity() auth.Identity {
	return a.signer.Identity()
}

// Authorize mints a capability for msg in the authority's role
func (a *Authority) Authorize(msg auth.Message) (auth.Capability, error) {
	return auth.Sign(a.role, a.signer, msg)
}
