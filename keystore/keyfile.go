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

package keystore

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// SigningKeyType is the envelope type of an ed25519 signing key file
const SigningKeyType = "SigningKeyEd25519_Clearo"

// keyFileEnvelope is the JSON structure of a key file
type keyFileEnvelope struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	CborHex     string `json:"cborHex"`
}

// loadKeyFromFile loads a signing key from path.
// Returns ErrInsecureFileMode if the file has group or other access.
//
// The file is opened first and permissions are checked on the open handle
// to avoid a TOCTOU race between the permission check and the read.
func loadKeyFromFile(path string) (*Key, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file %q: %w", path, err)
	}
	defer f.Close()

	if err := checkOpenFilePermissions(f); err != nil {
		return nil, err
	}

	// Valid key files are well under this size
	const maxKeyFileSize = 1 << 16
	data, err := io.ReadAll(io.LimitReader(f, maxKeyFileSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %q: %w", path, err)
	}
	key, err := parseKeyEnvelope(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key file %q: %w", path, err)
	}
	return key, nil
}

// parseKeyEnvelope parses a JSON key envelope
func parseKeyEnvelope(fileBytes []byte) (*Key, error) {
	var env keyFileEnvelope
	if err := json.Unmarshal(fileBytes, &env); err != nil {
		return nil, fmt.Errorf("could not parse key file envelope: %w", err)
	}
	if env.Type != SigningKeyType {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKeyType, env.Type)
	}
	cborData, err := hex.DecodeString(env.CborHex)
	if err != nil {
		return nil, fmt.Errorf("could not decode key from hex: %w", err)
	}
	seed, err := decodeSigningKey(cborData)
	if err != nil {
		return nil, err
	}
	key, err := NewKeyFromSeed(seed)
	if err != nil {
		return nil, err
	}
	key.description = env.Description
	return key, nil
}

// decodeSigningKey accepts either the bare seed or seed followed by the
// public key. The public key is always re-derived from the seed.
func decodeSigningKey(skeyBytes []byte) ([]byte, error) {
	var keyBytes []byte
	if err := cbor.Unmarshal(skeyBytes, &keyBytes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal signing key CBOR: %w", err)
	}
	switch len(keyBytes) {
	case ed25519.SeedSize:
		return keyBytes, nil
	case ed25519.SeedSize + ed25519.PublicKeySize:
		seed := keyBytes[:ed25519.SeedSize]
		derived := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
		if !derived.Equal(ed25519.PublicKey(keyBytes[ed25519.SeedSize:])) {
			return nil, errors.New(
				"signing key public half does not match its seed",
			)
		}
		return seed, nil
	default:
		return nil, fmt.Errorf(
			"invalid signing key bytes: expected %d or %d, got %d",
			ed25519.SeedSize,
			ed25519.SeedSize+ed25519.PublicKeySize,
			len(keyBytes),
		)
	}
}

func encodeKeyEnvelope(key *Key, description string) ([]byte, error) {
	cborData, err := cbor.Marshal(key.seed())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal signing key CBOR: %w", err)
	}
	env := keyFileEnvelope{
		Type:        SigningKeyType,
		Description: description,
		CborHex:     hex.EncodeToString(cborData),
	}
	return json.MarshalIndent(env, "", "    ")
}

// SaveKeyFile writes key to path with owner-only permissions. An existing
// file is never overwritten.
func SaveKeyFile(path string, key *Key, description string) error {
	data, err := encodeKeyEnvelope(key, description)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create key file %q: %w", path, err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write key file %q: %w", path, err)
	}
	return f.Close()
}

// LoadKeyFile reads a signing key written by SaveKeyFile
func LoadKeyFile(path string) (*Key, error) {
	return loadKeyFromFile(path)
}
