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
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

const identityHrp = "clrokey"

var ErrInvalidIdentity = errors.New("invalid identity")

// Identity is an ed25519 public key
type Identity [ed25519.PublicKeySize]byte

func IdentityFromPublicKey(pub ed25519.PublicKey) (Identity, error) {
	var ret Identity
	if len(pub) != ed25519.PublicKeySize {
		return ret, fmt.Errorf(
			"%w: public key length %d",
			ErrInvalidIdentity,
			len(pub),
		)
	}
	copy(ret[:], pub)
	return ret, nil
}

func (i Identity) PublicKey() ed25519.PublicKey {
	return ed25519.PublicKey(bytes.Clone(i[:]))
}

func (i Identity) Bytes() []byte {
	return bytes.Clone(i[:])
}

func (i Identity) IsZero() bool {
	return i == Identity{}
}

func (i Identity) String() string {
	conv, err := bech32.ConvertBits(i[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	ret, err := bech32.Encode(identityHrp, conv)
	if err != nil {
		panic(err)
	}
	return ret
}

func (i Identity) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

func (i *Identity) UnmarshalText(text []byte) error {
	tmp, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*i = tmp
	return nil
}

// ParseIdentity decodes the bech32 form produced by Identity.String
func ParseIdentity(s string) (Identity, error) {
	var ret Identity
	hrp, data, err := bech32.Decode(s)
	if err != nil {
		return ret, fmt.Errorf("%w: %w", ErrInvalidIdentity, err)
	}
	if hrp != identityHrp {
		return ret, fmt.Errorf(
			"%w: unexpected prefix %q",
			ErrInvalidIdentity,
			hrp,
		)
	}
	conv, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return ret, fmt.Errorf("%w: %w", ErrInvalidIdentity, err)
	}
	if len(conv) != len(ret) {
		return ret, fmt.Errorf(
			"%w: decoded length %d",
			ErrInvalidIdentity,
			len(conv),
		)
	}
	copy(ret[:], conv)
	return ret, nil
}
