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
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/clearo-labs/clearo/address"
	"golang.org/x/crypto/blake2b"
)

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidSignature = errors.New("invalid signature")
)

// DigestSize is the length of a message digest
const DigestSize = blake2b.Size256

// Message is the canonical content a signer commits to for one operation
type Message struct {
	program address.ProgramID
	params  [][]byte
	op      Operation
}

func NewMessage(
	op Operation,
	program address.ProgramID,
	params ...[]byte,
) Message {
	return Message{
		op:      op,
		program: program,
		params:  params,
	}
}

func (m Message) Operation() Operation {
	return m.op
}

// Digest is BLAKE2b-256 over the operation name, the program and each
// parameter, every field length prefixed
func (m Message) Digest() [DigestSize]byte {
	buf := make([]byte, 0, 128)
	buf = appendField(buf, []byte(m.op.String()))
	buf = appendField(buf, m.program[:])
	for _, param := range m.params {
		buf = appendField(buf, param)
	}
	return blake2b.Sum256(buf)
}

func appendField(buf []byte, field []byte) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(field)))
	return append(buf, field...)
}

// Signer produces ed25519 signatures for an identity
type Signer interface {
	Identity() Identity
	Sign(digest []byte) ([]byte, error)
}

// Capability proves that a signer authorized one message while acting
// in one role. It can only be obtained from Authorize or Sign.
type Capability struct {
	signer Identity
	digest [DigestSize]byte
	role   Role
}

func (c Capability) Signer() Identity {
	return c.signer
}

func (c Capability) Role() Role {
	return c.role
}

// Covers reports whether the capability was minted for msg
func (c Capability) Covers(msg Message) bool {
	return c.role != 0 && c.digest == msg.Digest()
}

// Authorize checks sig over msg and returns a capability for role
func Authorize(
	role Role,
	signer Identity,
	msg Message,
	sig []byte,
) (Capability, error) {
	digest := msg.Digest()
	if signer.IsZero() ||
		!ed25519.Verify(signer.PublicKey(), digest[:], sig) {
		return Capability{}, fmt.Errorf(
			"%w: %w for %s",
			ErrUnauthorized,
			ErrInvalidSignature,
			msg.op.String(),
		)
	}
	return Capability{
		signer: signer,
		role:   role,
		digest: digest,
	}, nil
}

// Sign signs msg with s and returns the resulting capability
func Sign(role Role, s Signer, msg Message) (Capability, error) {
	digest := msg.Digest()
	sig, err := s.Sign(digest[:])
	if err != nil {
		return Capability{}, fmt.Errorf("sign %s: %w", msg.op.String(), err)
	}
	return Authorize(role, s.Identity(), msg, sig)
}
