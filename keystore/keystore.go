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

// Package keystore manages the ed25519 signing keys used by owners,
// voters and the external authorities. Keys live in JSON envelope files
// that carry the CBOR encoded seed.
package keystore

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/clearo-labs/clearo/auth"
)

// Common errors returned by KeyStore operations.
var (
	ErrKeyNotLoaded     = errors.New("key not loaded")
	ErrUnknownKeyType   = errors.New("unknown key type")
	ErrInsecureFileMode = errors.New("insecure file permissions")
)

// Key is an ed25519 signing key. It implements auth.Signer.
type Key struct {
	private     ed25519.PrivateKey
	identity    auth.Identity
	description string
}

// GenerateKey creates a new random signing key
func GenerateKey() (*Key, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		return nil, fmt.Errorf("failed to read random seed: %w", err)
	}
	return NewKeyFromSeed(seed)
}

// NewKeyFromSeed builds the signing key for a 32 byte seed
func NewKeyFromSeed(seed []byte) (*Key, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf(
			"invalid seed size: expected %d, got %d",
			ed25519.SeedSize,
			len(seed),
		)
	}
	private := ed25519.NewKeyFromSeed(seed)
	identity, err := auth.IdentityFromPublicKey(
		private.Public().(ed25519.PublicKey),
	)
	if err != nil {
		return nil, err
	}
	return &Key{
		private:  private,
		identity: identity,
	}, nil
}

func (k *Key) Identity() auth.Identity {
	return k.identity
}

// Sign signs a message digest
func (k *Key) Sign(digest []byte) ([]byte, error) {
	return ed25519.Sign(k.private, digest), nil
}

func (k *Key) Description() string {
	return k.description
}

func (k *Key) seed() []byte {
	return k.private.Seed()
}

// KeyStoreConfig holds configuration for the KeyStore.
type KeyStoreConfig struct {
	Logger *slog.Logger
}

// KeyStore holds named signing keys loaded from key files
type KeyStore struct {
	logger *slog.Logger
	keys   map[string]*Key
	mu     sync.RWMutex
}

// NewKeyStore creates a new KeyStore with the given configuration.
func NewKeyStore(config KeyStoreConfig) *KeyStore {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &KeyStore{
		logger: config.Logger.With("component", "keystore"),
		keys:   make(map[string]*Key),
	}
}

// LoadFromFile loads the key at path under name, replacing any key
// previously loaded under that name
func (ks *KeyStore) LoadFromFile(name string, path string) error {
	key, err := loadKeyFromFile(path)
	if err != nil {
		return fmt.Errorf("failed to load %s key: %w", name, err)
	}
	ks.Add(name, key)
	return nil
}

// Add stores key under name
func (ks *KeyStore) Add(name string, key *Key) {
	ks.mu.Lock()
	ks.keys[name] = key
	ks.mu.Unlock()
	ks.logger.Info(
		"signing key loaded",
		"name", name,
		"identity", key.Identity().String(),
	)
}

// Signer returns the key loaded under name
func (ks *KeyStore) Signer(name string) (auth.Signer, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	key, ok := ks.keys[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotLoaded, name)
	}
	return key, nil
}

// IsLoaded reports whether a key exists under name
func (ks *KeyStore) IsLoaded(name string) bool {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	_, ok := ks.keys[name]
	return ok
}
