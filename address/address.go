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

// Package address computes the deterministic record addresses used to key
// every record in the registry.
//
// An address is the SHA-256 digest of a kind prefix, the caller supplied
// seeds, a one byte bump and the owning program identity. The bump is
// searched downwards from 255 until the digest does not decode as an
// ed25519 curve point, so no private key can ever sign for the address.
package address

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"

	"filippo.io/edwards25519"
	"github.com/btcsuite/btcd/btcutil/bech32"
)

const (
	AddressSize   = 32
	ProgramIDSize = 32

	addressHrp   = "clro"
	programHrp   = "clroprog"
	derivationID = "ProgramDerivedAddress"
)

var (
	ErrInvalidBump     = errors.New("bump does not produce an off-curve address")
	ErrAddressMismatch = errors.New("address does not match its seeds")
	ErrInvalidAddress  = errors.New("invalid address")
)

// Kind selects the seed namespace for a record type
type Kind uint8

const (
	KindProject Kind = iota + 1
	KindDocument
	KindVerification
	KindVote
	KindProjectName
)

func (k Kind) String() string {
	switch k {
	case KindProject:
		return "project"
	case KindDocument:
		return "document"
	case KindVerification:
		return "verification"
	case KindVote:
		return "vote"
	case KindProjectName:
		return "project-name"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the known kinds
func (k Kind) Valid() bool {
	switch k {
	case KindProject, KindDocument, KindVerification, KindVote, KindProjectName:
		return true
	default:
		return false
	}
}

func (k Kind) prefix() []byte {
	if !k.Valid() {
		panic(fmt.Sprintf("address: unknown kind %d", uint8(k)))
	}
	return []byte(k.String())
}

// Address is a derived record key
type Address [AddressSize]byte

func (a Address) Bytes() []byte {
	return bytes.Clone(a[:])
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) String() string {
	return encodeBech32(addressHrp, a[:])
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	tmp, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = tmp
	return nil
}

// Parse decodes the bech32 form produced by Address.String
func Parse(s string) (Address, error) {
	var ret Address
	data, err := decodeBech32(addressHrp, s, AddressSize)
	if err != nil {
		return ret, err
	}
	copy(ret[:], data)
	return ret, nil
}

// ProgramID identifies the component that owns a set of records. It is
// mixed into every derivation so the same seeds under two programs never
// share an address.
type ProgramID [ProgramIDSize]byte

// ProgramIDFromName returns a stable program identity for a component name
func ProgramIDFromName(name string) ProgramID {
	return ProgramID(sha256.Sum256([]byte("clearo/program/" + name)))
}

func (p ProgramID) IsZero() bool {
	return p == ProgramID{}
}

func (p ProgramID) String() string {
	return encodeBech32(programHrp, p[:])
}

func ParseProgramID(s string) (ProgramID, error) {
	var ret ProgramID
	data, err := decodeBech32(programHrp, s, ProgramIDSize)
	if err != nil {
		return ret, err
	}
	copy(ret[:], data)
	return ret, nil
}

// Derive returns the canonical address and bump for the given seeds.
// It is pure and defined for every input.
func Derive(program ProgramID, kind Kind, seeds ...[]byte) (Address, uint8) {
	prefix := kind.prefix()
	for bump := 255; bump >= 0; bump-- {
		candidate := candidateAddress(program, prefix, seeds, uint8(bump))
		if !onCurve(candidate) {
			return candidate, uint8(bump)
		}
	}
	// Every bump landing on the curve has probability 2^-256
	panic("address: no valid bump found")
}

// Create computes the address for a known bump. It fails when that bump
// yields a point on the curve.
func Create(
	program ProgramID,
	kind Kind,
	bump uint8,
	seeds ...[]byte,
) (Address, error) {
	candidate := candidateAddress(program, kind.prefix(), seeds, bump)
	if onCurve(candidate) {
		return Address{}, ErrInvalidBump
	}
	return candidate, nil
}

// Verify checks that addr and bump are the canonical derivation of seeds
func Verify(
	addr Address,
	program ProgramID,
	kind Kind,
	bump uint8,
	seeds ...[]byte,
) error {
	expected, expectedBump := Derive(program, kind, seeds...)
	if expected != addr || expectedBump != bump {
		return fmt.Errorf(
			"%w: %s %s",
			ErrAddressMismatch,
			kind.String(),
			addr.String(),
		)
	}
	return nil
}

func candidateAddress(
	program ProgramID,
	prefix []byte,
	seeds [][]byte,
	bump uint8,
) Address {
	h := sha256.New()
	writeSeed(h, prefix)
	for _, seed := range seeds {
		writeSeed(h, seed)
	}
	h.Write([]byte{bump})
	h.Write(program[:])
	h.Write([]byte(derivationID))
	var ret Address
	copy(ret[:], h.Sum(nil))
	return ret
}

// Seeds are length prefixed so that ("ab", "c") and ("a", "bc") differ
func writeSeed(h hash.Hash, seed []byte) {
	h.Write(binary.AppendUvarint(nil, uint64(len(seed))))
	h.Write(seed)
}

func onCurve(candidate Address) bool {
	_, err := new(edwards25519.Point).SetBytes(candidate[:])
	return err == nil
}

func encodeBech32(hrp string, data []byte) string {
	conv, err := bech32.ConvertBits(data, 8, 5, true)
	if err != nil {
		// Converting whole bytes with padding cannot fail
		panic(err)
	}
	ret, err := bech32.Encode(hrp, conv)
	if err != nil {
		panic(err)
	}
	return ret
}

func decodeBech32(hrp string, s string, size int) ([]byte, error) {
	gotHrp, data, err := bech32.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if gotHrp != hrp {
		return nil, fmt.Errorf(
			"%w: unexpected prefix %q, wanted %q",
			ErrInvalidAddress,
			gotHrp,
			hrp,
		)
	}
	conv, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if len(conv) != size {
		return nil, fmt.Errorf(
			"%w: decoded length %d, wanted %d",
			ErrInvalidAddress,
			len(conv),
			size,
		)
	}
	return conv, nil
}
